package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-dev/semindex/internal/chunker"
	"github.com/tessellate-dev/semindex/internal/embedder"
	"github.com/tessellate-dev/semindex/internal/store"
	"github.com/tessellate-dev/semindex/pkg/types"
)

const sampleGoFile = `package sample

import "fmt"

// Greet prints a greeting for the given name.
func Greet(name string) {
	fmt.Printf("hello, %s\n", name)
}

// Farewell prints a goodbye for the given name.
func Farewell(name string) {
	fmt.Printf("goodbye, %s\n", name)
}
`

const samplePyFile = `def handler(request):
    """Handle one request."""
    payload = request.json()
    return {"status": "ok", "payload": payload}


def shutdown(server):
    server.close()
    return True
`

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func newTestIndexer(t *testing.T) (*Indexer, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	emb := embedder.NewBatcher(embedder.NewHashBackend(64), embedder.NewCache(1024), 32)
	return New(chunker.New(chunker.DefaultOptions()), emb, st), st
}

func TestRun_BuildsAndPublishes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pkg/sample.go":     sampleGoFile,
		"scripts/server.py": samplePyFile,
		".git/config":       "not indexed",
		"vendor/dep.go":     sampleGoFile,
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "logo.png"), []byte{0x89, 0x50, 0x00, 0x47}, 0o644))

	idx, st := newTestIndexer(t)
	ctx := context.Background()

	stats, err := idx.Run(ctx, root, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, stats.UpToDate)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Zero(t, stats.FilesFailed)
	assert.Greater(t, stats.Chunks, 0)
	assert.Equal(t, stats.Chunks, stats.Vectors)
	assert.Equal(t, stats.Chunks, stats.CacheMisses)

	snap, err := st.Load(ctx)
	require.NoError(t, err)
	defer snap.Close()

	count, err := snap.Catalog.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Chunks, count)
	assert.Equal(t, stats.Chunks, snap.Graph.Len())

	assert.Contains(t, snap.Manifest.Files, "pkg/sample.go")
	assert.Contains(t, snap.Manifest.Files, "scripts/server.py")
	assert.NotContains(t, snap.Manifest.Files, "vendor/dep.go")
	assert.NotContains(t, snap.Manifest.Files, ".git/config")
}

func TestRun_UpToDateShortCircuit(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"pkg/sample.go": sampleGoFile})

	idx, st := newTestIndexer(t)
	ctx := context.Background()

	_, err := idx.Run(ctx, root, DefaultOptions())
	require.NoError(t, err)

	before, err := st.CurrentManifest()
	require.NoError(t, err)

	stats, err := idx.Run(ctx, root, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, stats.UpToDate)

	after, err := st.CurrentManifest()
	require.NoError(t, err)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
}

func TestRun_SkippedFilesStayUpToDate(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pkg/sample.go": sampleGoFile,
		"notes.txt":     "todo\n", // too short to yield a chunk
	})

	idx, st := newTestIndexer(t)
	ctx := context.Background()

	stats, err := idx.Run(ctx, root, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)

	// The skipped file is tracked with zero chunks so later runs do not
	// classify it as new.
	m, err := st.CurrentManifest()
	require.NoError(t, err)
	require.Contains(t, m.Files, "notes.txt")
	assert.Zero(t, m.Files["notes.txt"].Chunks)
	assert.NotEmpty(t, m.Files["notes.txt"].Hash)

	stats, err = idx.Run(ctx, root, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, stats.UpToDate, "unchanged tree must be reported up to date")

	after, err := st.CurrentManifest()
	require.NoError(t, err)
	assert.Equal(t, m.CreatedAt, after.CreatedAt)

	// Editing the skipped file still invalidates the short circuit.
	writeTree(t, root, map[string]string{"notes.txt": "todo\nmore notes\n"})
	stats, err = idx.Run(ctx, root, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, stats.UpToDate)
}

func TestRun_ForceRebuilds(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"pkg/sample.go": sampleGoFile})

	idx, _ := newTestIndexer(t)
	ctx := context.Background()

	_, err := idx.Run(ctx, root, DefaultOptions())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Force = true
	stats, err := idx.Run(ctx, root, opts)
	require.NoError(t, err)
	assert.False(t, stats.UpToDate)
	// Second build is served entirely from the embedding cache.
	assert.Zero(t, stats.CacheMisses)
	assert.Equal(t, stats.Chunks, stats.CacheHits)
}

func TestRun_DetectsModification(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"pkg/sample.go": sampleGoFile})

	idx, st := newTestIndexer(t)
	ctx := context.Background()

	_, err := idx.Run(ctx, root, DefaultOptions())
	require.NoError(t, err)

	writeTree(t, root, map[string]string{"pkg/extra.go": sampleGoFile})
	stats, err := idx.Run(ctx, root, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, stats.UpToDate)
	assert.Equal(t, 2, stats.FilesIndexed)

	m, err := st.CurrentManifest()
	require.NoError(t, err)
	assert.Contains(t, m.Files, "pkg/extra.go")
}

func TestRun_CancelledLeavesDiskUntouched(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"pkg/sample.go": sampleGoFile})

	idx, st := newTestIndexer(t)
	ctx := context.Background()

	_, err := idx.Run(ctx, root, DefaultOptions())
	require.NoError(t, err)

	before := listDir(t, st.Dir())
	beforeCurrent, err := os.ReadFile(filepath.Join(st.Dir(), "CURRENT"))
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	opts := DefaultOptions()
	opts.Force = true
	_, err = idx.Run(cancelled, root, opts)
	require.Error(t, err)

	after := listDir(t, st.Dir())
	afterCurrent, err := os.ReadFile(filepath.Join(st.Dir(), "CURRENT"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, beforeCurrent, afterCurrent)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRun_WriterBusy(t *testing.T) {
	idx, _ := newTestIndexer(t)
	require.True(t, idx.lock.TryAcquire())
	defer idx.lock.Release()

	_, err := idx.Run(context.Background(), t.TempDir(), DefaultOptions())
	assert.ErrorIs(t, err, types.ErrWriterBusy)
}

func TestRun_EmptyTree(t *testing.T) {
	idx, st := newTestIndexer(t)
	ctx := context.Background()

	stats, err := idx.Run(ctx, t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)

	snap, err := st.Load(ctx)
	require.NoError(t, err)
	defer snap.Close()
	assert.Zero(t, snap.Graph.Len())
}

func TestRun_DeterministicChunkIDs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b/second.go": sampleGoFile,
		"a/first.go":  sampleGoFile,
	})

	ctx := context.Background()
	opts := DefaultOptions()
	opts.Force = true

	var runs [][]int64
	for i := 0; i < 2; i++ {
		idx, st := newTestIndexer(t)
		_, err := idx.Run(ctx, root, opts)
		require.NoError(t, err)

		snap, err := st.Load(ctx)
		require.NoError(t, err)
		runs = append(runs, snap.Graph.ChunkIDs())

		// Chunk 1 always belongs to the lexically first path.
		ch, err := snap.Catalog.Chunk(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "a/first.go", ch.Path)
		snap.Close()
	}
	assert.Equal(t, runs[0], runs[1])
}

func TestScanTree_Filters(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":          sampleGoFile,
		"main_test.go":     sampleGoFile,
		"vendor/v.go":      sampleGoFile,
		".hidden/h.go":     sampleGoFile,
		"docs/readme.md":   "# readme\n\nSome documentation text here.\n",
		"build/output.bin": "xxxx",
	})

	opts := DefaultScanOptions()
	opts.IncludeTests = false
	opts.IgnoreDirs = []string{"docs"}

	files, err := ScanTree(context.Background(), root, opts)
	require.NoError(t, err)

	assert.Contains(t, files, "main.go")
	assert.NotContains(t, files, "main_test.go")
	assert.NotContains(t, files, "vendor/v.go")
	assert.NotContains(t, files, ".hidden/h.go")
	assert.NotContains(t, files, "docs/readme.md")
	assert.NotContains(t, files, "build/output.bin")

	f := files["main.go"]
	assert.NotEmpty(t, f.Hash)
	assert.Equal(t, int64(len(sampleGoFile)), f.Size)
}

func TestCheckStaleness(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.go":   sampleGoFile,
		"change.go": sampleGoFile,
		"remove.go": sampleGoFile,
	})

	idx, st := newTestIndexer(t)
	ctx := context.Background()
	_, err := idx.Run(ctx, root, DefaultOptions())
	require.NoError(t, err)

	writeTree(t, root, map[string]string{
		"change.go": sampleGoFile + "\n// changed\n",
		"added.go":  sampleGoFile,
	})
	require.NoError(t, os.Remove(filepath.Join(root, "remove.go")))

	m, err := st.CurrentManifest()
	require.NoError(t, err)

	r, err := CheckStaleness(ctx, root, m, DefaultScanOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.go"}, r.Unchanged)
	assert.Equal(t, []string{"change.go"}, r.Modified)
	assert.Equal(t, []string{"remove.go"}, r.Deleted)
	assert.Equal(t, []string{"added.go"}, r.New)
	assert.InDelta(t, 2.0/3.0, r.StaleRatio(), 1e-9)
}

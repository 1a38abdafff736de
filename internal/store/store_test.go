package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-dev/semindex/internal/hnsw"
	"github.com/tessellate-dev/semindex/pkg/types"
)

func testManifest(dim int) *Manifest {
	cfg := hnsw.DefaultConfig()
	return &Manifest{
		FormatVersion: ManifestFormatVersion,
		CreatedAt:     time.Now().UTC(),
		Root:          "/src/project",
		ModelID:       "hash/sha256-8",
		Dimension:     dim,
		Metric:        "cosine",
		Params: GraphParams{
			M:              cfg.M,
			EfConstruction: cfg.EfConstruction,
			EfSearch:       cfg.EfSearch,
			MaxLayer:       cfg.MaxLayer,
			Seed:           cfg.Seed,
		},
		Files: map[string]FileRecord{},
	}
}

func currentGenDir(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, currentFile))
	require.NoError(t, err)
	return filepath.Join(dir, strings.TrimSpace(string(data)))
}

func buildTestIndex(t *testing.T, dim, n int) (*hnsw.Graph, []types.SourceChunk) {
	t.Helper()
	graph := hnsw.New(dim, hnsw.DefaultConfig())
	chunks := make([]types.SourceChunk, n)
	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		vec[i%dim] = 1
		vec[(i+1)%dim] = float32(i) / float32(n)
		id := int64(i + 1)
		require.NoError(t, graph.Insert(id, vec))
		chunks[i] = types.SourceChunk{
			ID:        id,
			Path:      "pkg/file.go",
			Language:  "go",
			Kind:      types.ChunkFunction,
			StartLine: i*10 + 1,
			EndLine:   i*10 + 8,
			Content:   "func stub() {}",
		}
		chunks[i].ComputeHash()
	}
	graph.Seal()
	return graph, chunks
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	graph, chunks := buildTestIndex(t, 8, 20)
	m := testManifest(8)
	m.Files["pkg/file.go"] = FileRecord{Hash: "abc", SizeBytes: 100, ModTime: time.Now(), Chunks: 20}

	require.NoError(t, s.Save(ctx, graph, chunks, m))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	defer snap.Close()

	assert.Equal(t, 20, snap.Graph.Len())
	assert.Equal(t, 8, snap.Manifest.Dimension)
	assert.Equal(t, 20, snap.Manifest.ChunkCount)

	count, err := snap.Catalog.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, count)

	ch, err := snap.Catalog.Chunk(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "pkg/file.go", ch.Path)
	assert.Equal(t, types.ChunkFunction, ch.Kind)
	assert.Equal(t, chunks[0].Hash, ch.Hash)
}

func TestLoad_EmptyDir(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, types.ErrIndexAbsent)
}

func TestLoad_DanglingPointer(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, currentFile), []byte("gen-12345\n"), 0o644))

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, types.ErrIndexAbsent)
}

func TestLoad_CorruptManifest(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	graph, chunks := buildTestIndex(t, 8, 5)
	require.NoError(t, s.Save(ctx, graph, chunks, testManifest(8)))

	genDir := currentGenDir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(genDir, manifestFile), []byte("{not json"), 0o644))

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, types.ErrIndexAbsent)
}

func TestLoad_TruncatedGraph(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	graph, chunks := buildTestIndex(t, 8, 5)
	require.NoError(t, s.Save(ctx, graph, chunks, testManifest(8)))

	genDir := currentGenDir(t, dir)
	raw, err := os.ReadFile(filepath.Join(genDir, graphFile))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(genDir, graphFile), raw[:len(raw)/3], 0o644))

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, types.ErrIndexAbsent)
}

func TestLoad_FormatVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	graph, chunks := buildTestIndex(t, 8, 5)
	m := testManifest(8)
	require.NoError(t, s.Save(ctx, graph, chunks, m))

	genDir := currentGenDir(t, dir)
	m.FormatVersion = 99
	require.NoError(t, os.Remove(filepath.Join(genDir, manifestFile)))
	require.NoError(t, writeManifest(filepath.Join(genDir, manifestFile), m))

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, types.ErrIndexAbsent)
}

func TestSave_SupersedesPreviousGeneration(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	g1, c1 := buildTestIndex(t, 8, 5)
	require.NoError(t, s.Save(ctx, g1, c1, testManifest(8)))

	g2, c2 := buildTestIndex(t, 8, 12)
	require.NoError(t, s.Save(ctx, g2, c2, testManifest(8)))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	defer snap.Close()
	assert.Equal(t, 12, snap.Graph.Len())

	// Only the published generation remains on disk.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var gens int
	for _, e := range entries {
		if e.IsDir() {
			gens++
		}
	}
	assert.Equal(t, 1, gens)
}

func TestSave_CancelledContextLeavesDiskUntouched(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	g1, c1 := buildTestIndex(t, 8, 5)
	require.NoError(t, s.Save(ctx, g1, c1, testManifest(8)))

	before, err := os.ReadFile(filepath.Join(dir, currentFile))
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	g2, c2 := buildTestIndex(t, 8, 12)
	err = s.Save(cancelled, g2, c2, testManifest(8))
	require.Error(t, err)

	after, err := os.ReadFile(filepath.Join(dir, currentFile))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	defer snap.Close()
	assert.Equal(t, 5, snap.Graph.Len())
}

func TestHandle_SwapKeepsInFlightReaderAlive(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	g1, c1 := buildTestIndex(t, 8, 5)
	require.NoError(t, s.Save(ctx, g1, c1, testManifest(8)))
	snap1, err := s.Load(ctx)
	require.NoError(t, err)

	h := NewHandle()
	h.Swap(snap1)

	pinned, release, err := h.Current()
	require.NoError(t, err)
	assert.Equal(t, 5, pinned.Graph.Len())

	g2, c2 := buildTestIndex(t, 8, 12)
	require.NoError(t, s.Save(ctx, g2, c2, testManifest(8)))
	snap2, err := s.Load(ctx)
	require.NoError(t, err)
	h.Swap(snap2)

	// The pinned snapshot still answers queries after the swap.
	_, err = pinned.Catalog.Count(ctx)
	assert.NoError(t, err)
	release()

	cur, release2, err := h.Current()
	require.NoError(t, err)
	assert.Equal(t, 12, cur.Graph.Len())
	release2()

	h.Swap(nil)
	_, _, err = h.Current()
	assert.ErrorIs(t, err, types.ErrIndexAbsent)
}

func TestClassify(t *testing.T) {
	m := testManifest(8)
	m.Files = map[string]FileRecord{
		"a.go": {Hash: "h1"},
		"b.go": {Hash: "h2"},
		"c.go": {Hash: "h3"},
		"d.go": {Hash: "h4"},
	}

	live := map[string]string{
		"a.go": "h1",      // unchanged
		"b.go": "changed", // modified
		// c.go deleted
		"d.go": "h4",
		"e.go": "h5", // new
	}

	r := Classify(m, live)
	assert.Equal(t, []string{"a.go", "d.go"}, r.Unchanged)
	assert.Equal(t, []string{"b.go"}, r.Modified)
	assert.Equal(t, []string{"c.go"}, r.Deleted)
	assert.Equal(t, []string{"e.go"}, r.New)

	assert.InDelta(t, 0.5, r.StaleRatio(), 1e-9)

	stale := r.StalePaths()
	assert.True(t, stale["b.go"])
	assert.True(t, stale["c.go"])
	assert.False(t, stale["a.go"])
	assert.False(t, stale["e.go"])
}

func TestStaleRatio_EmptyManifest(t *testing.T) {
	r := Classify(testManifest(8), map[string]string{"new.go": "h"})
	assert.Equal(t, 0.0, r.StaleRatio())
	assert.Equal(t, []string{"new.go"}, r.New)
}

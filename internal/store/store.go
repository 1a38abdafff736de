package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tessellate-dev/semindex/internal/hnsw"
	"github.com/tessellate-dev/semindex/pkg/types"
)

const (
	currentFile  = "CURRENT"
	graphFile    = "graph.bin"
	catalogFile  = "catalog.db"
	manifestFile = "manifest.json"
	genPrefix    = "gen-"
)

// Store manages index generations under one directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "store"),
	}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Save stages a complete generation and atomically publishes it. The
// previously published generation stays valid until the CURRENT pointer
// rename succeeds; a crash before that leaves it untouched. On success
// superseded generations are pruned.
func (s *Store) Save(ctx context.Context, graph *hnsw.Graph, chunks []types.SourceChunk, manifest *Manifest) error {
	if manifest.FormatVersion == 0 {
		manifest.FormatVersion = ManifestFormatVersion
	}
	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = time.Now().UTC()
	}
	manifest.ChunkCount = len(chunks)
	manifest.VectorCount = graph.Len()
	if err := manifest.Validate(); err != nil {
		return fmt.Errorf("manifest invalid: %w", err)
	}

	genName := fmt.Sprintf("%s%d", genPrefix, time.Now().UnixNano())
	genDir := filepath.Join(s.dir, genName)
	if err := os.Mkdir(genDir, 0o755); err != nil {
		return fmt.Errorf("stage generation: %w", err)
	}
	// Anything staged but unpublished is garbage.
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(genDir)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.writeGraph(filepath.Join(genDir, graphFile), graph); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CreateCatalog(ctx, filepath.Join(genDir, catalogFile), chunks); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeManifest(filepath.Join(genDir, manifestFile), manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := syncDir(genDir); err != nil {
		return fmt.Errorf("sync generation: %w", err)
	}

	if err := s.publish(genName); err != nil {
		return err
	}
	published = true

	s.logger.Info("generation published",
		"generation", genName, "vectors", manifest.VectorCount, "chunks", manifest.ChunkCount)

	s.prune(genName)
	return nil
}

func (s *Store) writeGraph(path string, graph *hnsw.Graph) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	if err := graph.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("encode graph: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync graph file: %w", err)
	}
	return f.Close()
}

// publish points CURRENT at genName via write-temp, fsync, rename.
func (s *Store) publish(genName string) error {
	tmp, err := os.CreateTemp(s.dir, "current-*")
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(genName + "\n"); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publish: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publish: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publish: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, currentFile)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publish: %w", err)
	}
	return syncDir(s.dir)
}

// prune removes generation directories other than keep. Failures are
// logged only; stale generations are garbage, not corruption.
func (s *Store) prune(keep string) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), genPrefix) || e.Name() == keep {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			s.logger.Warn("prune failed", "generation", e.Name(), "err", err)
		}
	}
}

// Load opens the currently published generation. Every failure mode of
// an unusable index (nothing published, missing artifacts, corrupt or
// version-mismatched files) reports ErrIndexAbsent so callers have one
// recovery path.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrIndexAbsent
		}
		return nil, fmt.Errorf("%w: read pointer: %v", types.ErrIndexAbsent, err)
	}

	genName := strings.TrimSpace(string(data))
	if genName == "" || strings.Contains(genName, "/") || !strings.HasPrefix(genName, genPrefix) {
		return nil, fmt.Errorf("%w: malformed pointer %q", types.ErrIndexAbsent, genName)
	}
	genDir := filepath.Join(s.dir, genName)

	manifest, err := readManifest(filepath.Join(genDir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: manifest: %v", types.ErrIndexAbsent, types.ErrIndexCorrupt, err)
	}

	gf, err := os.Open(filepath.Join(genDir, graphFile))
	if err != nil {
		return nil, fmt.Errorf("%w: graph: %v", types.ErrIndexAbsent, err)
	}
	graph, err := hnsw.Decode(gf)
	gf.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %w: graph: %v", types.ErrIndexAbsent, types.ErrIndexCorrupt, err)
	}
	if graph.Dim() != manifest.Dimension {
		return nil, fmt.Errorf("%w: %w: graph dimension %d, manifest %d",
			types.ErrIndexAbsent, types.ErrIndexCorrupt, graph.Dim(), manifest.Dimension)
	}

	catalog, err := OpenCatalog(filepath.Join(genDir, catalogFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: catalog: %v", types.ErrIndexAbsent, types.ErrIndexCorrupt, err)
	}

	if err := ctx.Err(); err != nil {
		catalog.Close()
		return nil, err
	}

	return newSnapshot(genName, graph, catalog, manifest), nil
}

// CurrentManifest reads only the published manifest, without loading
// the graph or catalog. Used for staleness checks and status reporting.
func (s *Store) CurrentManifest() (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrIndexAbsent
		}
		return nil, fmt.Errorf("%w: read pointer: %v", types.ErrIndexAbsent, err)
	}
	genName := strings.TrimSpace(string(data))
	if genName == "" || strings.Contains(genName, "/") || !strings.HasPrefix(genName, genPrefix) {
		return nil, fmt.Errorf("%w: malformed pointer %q", types.ErrIndexAbsent, genName)
	}
	m, err := readManifest(filepath.Join(s.dir, genName, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: manifest: %v", types.ErrIndexAbsent, types.ErrIndexCorrupt, err)
	}
	return m, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	err = d.Sync()
	cerr := d.Close()
	if err != nil {
		return err
	}
	return cerr
}

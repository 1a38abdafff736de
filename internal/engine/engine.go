package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tessellate-dev/semindex/internal/chunker"
	"github.com/tessellate-dev/semindex/internal/embedder"
	"github.com/tessellate-dev/semindex/internal/indexer"
	"github.com/tessellate-dev/semindex/internal/searcher"
	"github.com/tessellate-dev/semindex/internal/store"
	"github.com/tessellate-dev/semindex/pkg/types"
)

// DefaultSearchTimeout bounds one query end to end. Warm-cache queries
// finish in milliseconds; the budget only matters when the query
// embedding has to reach a remote backend.
const DefaultSearchTimeout = 2 * time.Second

// Config assembles an Engine.
type Config struct {
	IndexDir      string
	Embedding     embedder.Config
	Indexing      indexer.Options
	SearchTimeout time.Duration
}

// Engine is the top-level facade over indexing and search.
type Engine struct {
	store         *store.Store
	handle        *store.Handle
	embedder      *embedder.Batcher
	indexer       *indexer.Indexer
	searcher      *searcher.Searcher
	indexing      indexer.Options
	searchTimeout time.Duration
	logger        *slog.Logger
}

// New builds an engine from config and loads the published generation
// if one exists. A missing index is not an error; searches will report
// it until the first build.
func New(cfg Config) (*Engine, error) {
	if cfg.IndexDir == "" {
		return nil, fmt.Errorf("index dir is required")
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = DefaultSearchTimeout
	}

	emb, err := embedder.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	st, err := store.New(cfg.IndexDir)
	if err != nil {
		emb.Close()
		return nil, err
	}

	e := &Engine{
		store:         st,
		handle:        store.NewHandle(),
		embedder:      emb,
		indexing:      cfg.Indexing,
		searchTimeout: cfg.SearchTimeout,
		logger:        slog.Default().With("component", "engine"),
	}
	e.indexer = indexer.New(chunker.New(cfg.Indexing.Chunker), emb, st)
	e.searcher = searcher.New(e.handle, emb)

	snap, err := st.Load(context.Background())
	switch {
	case err == nil:
		e.handle.Swap(snap)
		e.logger.Info("index loaded",
			"generation", snap.Generation, "vectors", snap.Graph.Len(), "model", snap.Manifest.ModelID)
	case errors.Is(err, types.ErrIndexAbsent):
		e.logger.Info("no index on disk yet")
	default:
		emb.Close()
		return nil, err
	}

	return e, nil
}

// Index builds and publishes a new generation for root, then makes it
// live for searches.
func (e *Engine) Index(ctx context.Context, root string, force bool) (*indexer.Stats, error) {
	opts := e.indexing
	opts.Force = force

	stats, err := e.indexer.Run(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	if stats.UpToDate {
		return stats, nil
	}

	snap, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload after build: %w", err)
	}
	e.handle.Swap(snap)
	e.searcher.InvalidateCache()
	return stats, nil
}

// Search runs a query under the engine's timeout budget.
func (e *Engine) Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.searchTimeout)
	defer cancel()
	return e.searcher.Search(ctx, req)
}

// Status describes the live index and its drift from the tree.
type Status struct {
	Loaded      bool
	Generation  string
	ModelID     string
	Dimension   int
	VectorCount int
	ChunkCount  int
	FileCount   int
	CreatedAt   time.Time

	Unchanged          int
	Modified           int
	Deleted            int
	New                int
	StaleRatio         float64
	RebuildRecommended bool
}

// Status reports index health. When root is non-empty the tree is
// rescanned to classify staleness; a ratio above the rebuild threshold
// flags the index for a full rebuild.
func (e *Engine) Status(ctx context.Context, root string) (*Status, error) {
	snap, release, err := e.handle.Current()
	if errors.Is(err, types.ErrIndexAbsent) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer release()

	m := snap.Manifest
	st := &Status{
		Loaded:      true,
		Generation:  snap.Generation,
		ModelID:     m.ModelID,
		Dimension:   m.Dimension,
		VectorCount: m.VectorCount,
		ChunkCount:  m.ChunkCount,
		FileCount:   len(m.Files),
		CreatedAt:   m.CreatedAt,
	}

	if root == "" {
		root = m.Root
	}
	report, err := indexer.CheckStaleness(ctx, root, m, e.indexing.Scan)
	if err != nil {
		return nil, fmt.Errorf("staleness check: %w", err)
	}
	st.Unchanged = len(report.Unchanged)
	st.Modified = len(report.Modified)
	st.Deleted = len(report.Deleted)
	st.New = len(report.New)
	st.StaleRatio = report.StaleRatio()
	st.RebuildRecommended = st.StaleRatio > indexer.DefaultRebuildThreshold

	return st, nil
}

// Close releases the live snapshot and the embedding backend.
func (e *Engine) Close() error {
	e.handle.Swap(nil)
	return e.embedder.Close()
}

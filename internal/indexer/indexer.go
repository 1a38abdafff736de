package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/tessellate-dev/semindex/internal/chunker"
	"github.com/tessellate-dev/semindex/internal/embedder"
	"github.com/tessellate-dev/semindex/internal/hnsw"
	"github.com/tessellate-dev/semindex/internal/store"
	"github.com/tessellate-dev/semindex/pkg/types"
)

// DefaultRebuildThreshold is the stale ratio above which callers should
// schedule a full rebuild rather than rely on query-time filtering.
const DefaultRebuildThreshold = 0.5

// Options configures one indexing run.
type Options struct {
	Scan    ScanOptions
	Chunker chunker.Options
	Graph   hnsw.Config

	// Force rebuilds even when the tree matches the published manifest.
	Force bool
}

// DefaultOptions returns the indexing defaults.
func DefaultOptions() Options {
	return Options{
		Scan:    DefaultScanOptions(),
		Chunker: chunker.DefaultOptions(),
		Graph:   hnsw.DefaultConfig(),
	}
}

// Stats summarizes one indexing run. A run with warnings still
// publishes a generation; the warnings name the files it excludes.
type Stats struct {
	FilesScanned int
	FilesIndexed int
	FilesSkipped int
	FilesFailed  int
	Chunks       int
	Vectors      int
	CacheHits    int
	CacheMisses  int
	UpToDate     bool
	Duration     time.Duration
	Warnings     []string
}

// Indexer builds index generations: scan, chunk, embed, construct the
// graph, publish atomically. It is the only writer; concurrent Run
// calls fail fast with ErrWriterBusy.
type Indexer struct {
	chunker  *chunker.Chunker
	embedder *embedder.Batcher
	store    *store.Store
	lock     buildLock
	logger   *slog.Logger
}

// New creates an indexer over the given store.
func New(ch *chunker.Chunker, emb *embedder.Batcher, st *store.Store) *Indexer {
	return &Indexer{
		chunker:  ch,
		embedder: emb,
		store:    st,
		logger:   slog.Default().With("component", "indexer"),
	}
}

// fileChunks pairs a scanned file with its chunks, pre-ID-assignment.
type fileChunks struct {
	file   ScannedFile
	chunks []types.SourceChunk
}

// Run indexes root and publishes a new generation. Cancellation at any
// point leaves the published index exactly as it was.
func (idx *Indexer) Run(ctx context.Context, root string, opts Options) (*Stats, error) {
	if !idx.lock.TryAcquire() {
		return nil, types.ErrWriterBusy
	}
	defer idx.lock.Release()

	start := time.Now()
	stats := &Stats{}

	files, err := ScanTree(ctx, root, opts.Scan)
	if err != nil {
		return nil, fmt.Errorf("scan tree: %w", err)
	}
	stats.FilesScanned = len(files)

	if !opts.Force && idx.upToDate(files) {
		stats.UpToDate = true
		stats.Duration = time.Since(start)
		idx.logger.Info("index up to date", "files", len(files))
		return stats, nil
	}

	processed, skipped, err := idx.chunkFiles(ctx, files, opts, stats)
	if err != nil {
		return nil, err
	}

	// Deterministic chunk IDs: path order, then position order within
	// the file (the chunker already emits chunks in position order).
	sort.Slice(processed, func(i, j int) bool {
		return processed[i].file.Path < processed[j].file.Path
	})
	var chunks []types.SourceChunk
	var nextID int64 = 1
	for pi := range processed {
		for ci := range processed[pi].chunks {
			processed[pi].chunks[ci].ID = nextID
			nextID++
			chunks = append(chunks, processed[pi].chunks[ci])
		}
	}
	stats.Chunks = len(chunks)

	graph, err := idx.buildGraph(ctx, chunks, opts.Graph, stats)
	if err != nil {
		return nil, err
	}
	stats.Vectors = graph.Len()

	// Record the graph's own (normalized) parameters, not the raw options.
	manifest := idx.buildManifest(root, processed, skipped, graph.Config())
	if err := idx.store.Save(ctx, graph, chunks, manifest); err != nil {
		return nil, fmt.Errorf("save generation: %w", err)
	}

	stats.Duration = time.Since(start)
	idx.logger.Info("indexing complete",
		"files", stats.FilesIndexed, "chunks", stats.Chunks,
		"cache_hits", stats.CacheHits, "warnings", len(stats.Warnings),
		"duration", stats.Duration)
	return stats, nil
}

// upToDate reports whether the published manifest already covers the
// scanned tree for the current embedding model.
func (idx *Indexer) upToDate(files map[string]ScannedFile) bool {
	manifest, err := idx.store.CurrentManifest()
	if err != nil {
		return false
	}
	if manifest.ModelID != idx.embedder.ModelID() {
		return false
	}
	live := make(map[string]string, len(files))
	for path, f := range files {
		live[path] = f.Hash
	}
	r := store.Classify(manifest, live)
	return len(r.Modified) == 0 && len(r.Deleted) == 0 && len(r.New) == 0
}

// chunkFiles runs the chunker over every scanned file on a worker pool.
// Per-file failures become warnings, not run failures. Files the chunker
// skips (binary content, size ceiling, nothing chunkable) are returned
// separately so the manifest can still track their hashes; otherwise
// every later run would classify them as new and never report the tree
// up to date.
func (idx *Indexer) chunkFiles(ctx context.Context, files map[string]ScannedFile, opts Options, stats *Stats) ([]fileChunks, []ScannedFile, error) {
	workers := opts.Scan.Workers
	if workers <= 0 {
		workers = DefaultScanOptions().Workers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	ch := chunker.New(opts.Chunker)
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		processed []fileChunks
		skipped   []ScannedFile
	)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			break
		}
		f := f
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}

			content, err := os.ReadFile(f.Abs)
			if err != nil {
				mu.Lock()
				stats.FilesFailed++
				stats.Warnings = append(stats.Warnings, fmt.Sprintf("%s: %v", f.Path, err))
				mu.Unlock()
				return
			}

			lang := chunker.DetectLanguage(f.Path)
			chunks, err := ch.Chunk(f.Path, lang, content)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, chunker.ErrBinaryContent), errors.Is(err, chunker.ErrFileTooLarge):
				stats.FilesSkipped++
				skipped = append(skipped, f)
			case err != nil:
				stats.FilesFailed++
				stats.Warnings = append(stats.Warnings,
					fmt.Sprintf("%s: %v", f.Path, fmt.Errorf("%w: %v", types.ErrChunkingFailure, err)))
			case len(chunks) == 0:
				stats.FilesSkipped++
				skipped = append(skipped, f)
			default:
				stats.FilesIndexed++
				processed = append(processed, fileChunks{file: f, chunks: chunks})
			}
		})
		if submitErr != nil {
			wg.Done()
			return nil, nil, fmt.Errorf("submit chunk task: %w", submitErr)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return processed, skipped, nil
}

// buildGraph embeds every chunk and inserts the vectors in ID order so
// repeated builds of the same tree produce the same graph.
func (idx *Indexer) buildGraph(ctx context.Context, chunks []types.SourceChunk, cfg hnsw.Config, stats *Stats) (*hnsw.Graph, error) {
	graph := hnsw.New(idx.embedder.Dimension(), cfg)
	if len(chunks) == 0 {
		graph.Seal()
		return graph, nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].EmbedText()
	}

	vecs, bstats, err := idx.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	stats.CacheHits = bstats.CacheHits
	stats.CacheMisses = bstats.CacheMisses

	for i := range chunks {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := graph.Insert(chunks[i].ID, vecs[i]); err != nil {
			return nil, fmt.Errorf("insert chunk %d: %w", chunks[i].ID, err)
		}
	}
	graph.Seal()
	return graph, nil
}

func (idx *Indexer) buildManifest(root string, processed []fileChunks, skipped []ScannedFile, cfg hnsw.Config) *store.Manifest {
	fileTable := make(map[string]store.FileRecord, len(processed)+len(skipped))
	for _, p := range processed {
		fileTable[p.file.Path] = store.FileRecord{
			Hash:      p.file.Hash,
			SizeBytes: p.file.Size,
			ModTime:   p.file.ModTime,
			Chunks:    len(p.chunks),
		}
	}
	// Skipped files contribute no chunks but stay tracked, so an
	// unchanged tree classifies clean on the next run.
	for _, f := range skipped {
		fileTable[f.Path] = store.FileRecord{
			Hash:      f.Hash,
			SizeBytes: f.Size,
			ModTime:   f.ModTime,
		}
	}
	return &store.Manifest{
		FormatVersion: store.ManifestFormatVersion,
		CreatedAt:     time.Now().UTC(),
		Root:          root,
		ModelID:       idx.embedder.ModelID(),
		Dimension:     idx.embedder.Dimension(),
		Metric:        "cosine",
		Params: store.GraphParams{
			M:              cfg.M,
			EfConstruction: cfg.EfConstruction,
			EfSearch:       cfg.EfSearch,
			MaxLayer:       cfg.MaxLayer,
			Seed:           cfg.Seed,
		},
		Files: fileTable,
	}
}

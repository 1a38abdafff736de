package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tessellate-dev/semindex/pkg/types"
)

// DefaultBatchSize bounds how many texts go to the backend in one call.
const DefaultBatchSize = 64

// BatchStats reports what one EmbedTexts call did.
type BatchStats struct {
	CacheHits   int
	CacheMisses int
	Failed      int
}

// Batcher fronts a Backend with the content-addressed cache and batch
// grouping. All embedding traffic in the engine goes through one Batcher
// so the indexing and query paths share cache entries.
type Batcher struct {
	backend   Backend
	cache     *Cache
	batchSize int
	logger    *slog.Logger
}

// NewBatcher wraps a backend. cache may be nil to disable caching.
func NewBatcher(backend Backend, cache *Cache, batchSize int) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Batcher{
		backend:   backend,
		cache:     cache,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "embedder"),
	}
}

// Backend exposes the wrapped backend.
func (b *Batcher) Backend() Backend { return b.backend }

// Dimension returns the backend's vector length.
func (b *Batcher) Dimension() int { return b.backend.Dimension() }

// ModelID returns the backend's model identity.
func (b *Batcher) ModelID() string { return b.backend.ModelID() }

// EmbedText embeds a single text, consulting the cache first.
func (b *Batcher) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vecs, _, err := b.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds texts in input order. Cached entries are served
// without touching the backend; misses are grouped into batches. When a
// whole batch fails its members are retried one at a time, so a single
// oversized or malformed text cannot sink the rest of the batch.
func (b *Batcher) EmbedTexts(ctx context.Context, texts []string) ([][]float32, BatchStats, error) {
	var stats BatchStats
	if len(texts) == 0 {
		return nil, stats, ErrNoTexts
	}

	modelID := b.backend.ModelID()
	vecs := make([][]float32, len(texts))
	var missIdx []int

	for i, text := range texts {
		if text == "" {
			return nil, stats, fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}
		if b.cache != nil {
			if vec, ok := b.cache.Get(modelID, ComputeHash(text)); ok {
				vecs[i] = vec
				stats.CacheHits++
				continue
			}
		}
		missIdx = append(missIdx, i)
	}
	stats.CacheMisses = len(missIdx)

	for start := 0; start < len(missIdx); start += b.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		end := start + b.batchSize
		if end > len(missIdx) {
			end = len(missIdx)
		}
		batch := missIdx[start:end]

		batchTexts := make([]string, len(batch))
		for j, i := range batch {
			batchTexts[j] = texts[i]
		}

		out, err := b.backend.Embed(ctx, batchTexts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, stats, ctx.Err()
			}
			b.logger.Warn("batch embed failed, retrying items individually",
				"size", len(batch), "err", err)
			out, err = b.embedIndividually(ctx, batchTexts, &stats)
			if err != nil {
				return nil, stats, err
			}
		}

		for j, i := range batch {
			vec := out[j]
			if len(vec) != b.backend.Dimension() {
				return nil, stats, fmt.Errorf("%w: got %d, want %d",
					ErrBadDimension, len(vec), b.backend.Dimension())
			}
			vecs[i] = vec
			if b.cache != nil {
				b.cache.Put(modelID, ComputeHash(texts[i]), vec)
			}
		}
	}

	return vecs, stats, nil
}

// embedIndividually is the fallback path after a whole-batch failure.
// Each member gets its own backend call, which carries its own retry.
func (b *Batcher) embedIndividually(ctx context.Context, batchTexts []string, stats *BatchStats) ([][]float32, error) {
	out := make([][]float32, len(batchTexts))
	for j, text := range batchTexts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		single, err := b.backend.Embed(ctx, []string{text})
		if err != nil {
			stats.Failed++
			return nil, fmt.Errorf("%w: embedding failed after batch and individual retry: %v",
				types.ErrBackendUnavailable, err)
		}
		out[j] = single[0]
	}
	return out, nil
}

// Close releases the backend and cache.
func (b *Batcher) Close() error {
	berr := b.backend.Close()
	if b.cache != nil {
		if cerr := b.cache.Close(); cerr != nil && berr == nil {
			berr = cerr
		}
	}
	return berr
}

package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tessellate-dev/semindex/internal/embedder"
	"github.com/tessellate-dev/semindex/internal/store"
	"github.com/tessellate-dev/semindex/pkg/types"
)

const (
	defaultLimit = 10
	maxLimit     = 100

	// overfetchFactor widens the graph query so post-filtering still
	// leaves enough survivors to fill the requested limit.
	overfetchFactor = 3

	queryCacheSize  = 1000
	defaultCacheTTL = time.Hour
)

// SearchRequest contains parameters for a search operation.
type SearchRequest struct {
	Query      string
	Limit      int
	EfSearch   int     // per-query beam width override, 0 = index default
	MinScore   float64 // drop results scoring below this
	Languages  []string
	PathPrefix string

	UseCache bool
	CacheTTL time.Duration
}

// SearchResponse contains search results and metadata.
type SearchResponse struct {
	Results       []types.SearchResult
	TotalResults  int
	Duration      time.Duration
	CacheHit      bool
	Variants      []string
	StaleExcluded int
}

// cacheEntry is a cached response with its expiration time.
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher answers queries against whatever snapshot the handle
// currently publishes. It holds no index state of its own, so a
// generation swap is invisible to it apart from the cache purge.
type Searcher struct {
	handle   *store.Handle
	embedder *embedder.Batcher
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
	logger   *slog.Logger
}

// New creates a Searcher over the given snapshot handle.
func New(handle *store.Handle, emb *embedder.Batcher) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](queryCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(fmt.Sprintf("create query cache: %v", err))
	}
	return &Searcher{
		handle:   handle,
		embedder: emb,
		cache:    cache,
		logger:   slog.Default().With("component", "searcher"),
	}
}

// Search runs the full query path: expand, embed, graph search, merge,
// post-filter, attach context.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	snap, release, err := s.handle.Current()
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := s.search(ctx, snap, req)
	if err != nil {
		return nil, err
	}
	resp.Duration = time.Since(start)

	if req.UseCache && len(resp.Results) > 0 {
		s.storeInCache(req, resp)
	}
	return resp, nil
}

func (s *Searcher) search(ctx context.Context, snap *store.Snapshot, req SearchRequest) (*SearchResponse, error) {
	variants := expandQuery(req.Query)
	resp := &SearchResponse{Variants: variants}

	if snap.Graph.Len() == 0 {
		resp.Results = []types.SearchResult{}
		return resp, nil
	}

	// Best distance per chunk across all variants.
	best := make(map[int64]float64)
	fetch := req.Limit * overfetchFactor
	for _, variant := range variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := s.embedder.EmbedText(ctx, variant)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		hits, err := snap.Graph.Search(vec, fetch, req.EfSearch)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if d, ok := best[h.ChunkID]; !ok || h.Distance < d {
				best[h.ChunkID] = h.Distance
			}
		}
	}

	candidates := rankCandidates(best)
	results, stale, err := s.materialize(ctx, snap, req, candidates)
	if err != nil {
		return nil, err
	}

	resp.Results = results
	resp.TotalResults = len(results)
	resp.StaleExcluded = stale
	return resp, nil
}

type candidate struct {
	chunkID int64
	score   float64
}

// rankCandidates converts distances to scores and orders best-first,
// ties broken by chunk id for stable output.
func rankCandidates(best map[int64]float64) []candidate {
	out := make([]candidate, 0, len(best))
	for id, dist := range best {
		score := 1 - dist
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		out = append(out, candidate{chunkID: id, score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].chunkID < out[j].chunkID
	})
	return out
}

// liveFile caches one source file's current state for the duration of a
// single query.
type liveFile struct {
	content string
	fresh   bool
}

// materialize walks ranked candidates, applies post-filters, and builds
// final results until the limit is reached.
func (s *Searcher) materialize(ctx context.Context, snap *store.Snapshot, req SearchRequest, candidates []candidate) ([]types.SearchResult, int, error) {
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.chunkID
	}
	chunks, err := snap.Catalog.Chunks(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("load chunks: %w", err)
	}

	langFilter := make(map[string]bool, len(req.Languages))
	for _, l := range req.Languages {
		langFilter[strings.ToLower(l)] = true
	}

	files := make(map[string]*liveFile)
	results := make([]types.SearchResult, 0, req.Limit)
	stale := 0

	for _, c := range candidates {
		if len(results) >= req.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		chunk, ok := chunks[c.chunkID]
		if !ok {
			continue
		}
		if c.score < req.MinScore {
			// Candidates are sorted by score, nothing below passes.
			break
		}
		if len(langFilter) > 0 && !langFilter[strings.ToLower(chunk.Language)] {
			continue
		}
		if req.PathPrefix != "" && !strings.HasPrefix(chunk.Path, req.PathPrefix) {
			continue
		}

		lf := s.liveState(snap, chunk.Path, files)
		if !lf.fresh {
			stale++
			continue
		}

		before, after := surroundingLines(lf.content, chunk.StartLine, chunk.EndLine)
		results = append(results, types.SearchResult{
			ChunkID:       chunk.ID,
			Rank:          len(results) + 1,
			Score:         c.score,
			Path:          chunk.Path,
			Language:      chunk.Language,
			StartLine:     chunk.StartLine,
			EndLine:       chunk.EndLine,
			Snippet:       chunk.Content,
			ContextBefore: before,
			ContextAfter:  after,
		})
	}

	return results, stale, nil
}

// liveState reads and verifies a source file once per query. A file
// that is missing, unreadable, or hashes differently than the manifest
// recorded is stale.
func (s *Searcher) liveState(snap *store.Snapshot, path string, cache map[string]*liveFile) *liveFile {
	if lf, ok := cache[path]; ok {
		return lf
	}
	lf := &liveFile{}
	cache[path] = lf

	rec, tracked := snap.Manifest.Files[path]
	if !tracked {
		return lf
	}
	content, err := os.ReadFile(filepath.Join(snap.Manifest.Root, filepath.FromSlash(path)))
	if err != nil {
		return lf
	}
	if store.HashContent(content) != rec.Hash {
		return lf
	}
	lf.content = string(content)
	lf.fresh = true
	return lf
}

func validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}
	if req.MinScore < 0 || req.MinScore > 1 {
		return fmt.Errorf("min score %v outside [0, 1]", req.MinScore)
	}
	if req.CacheTTL == 0 {
		req.CacheTTL = defaultCacheTTL
	}
	return nil
}

// checkCache returns a copy of a live cached response, or nil.
func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := requestHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}
	resp := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return resp
}

func (s *Searcher) storeInCache(req SearchRequest, resp *SearchResponse) {
	entry := &cacheEntry{
		response:  copyResponse(resp),
		expiresAt: time.Now().Add(req.CacheTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(requestHash(req), entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops all cached responses. Called after a new
// generation is published.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// copyResponse deep-copies a response so cached entries stay immutable.
func copyResponse(src *SearchResponse) *SearchResponse {
	dst := &SearchResponse{
		TotalResults:  src.TotalResults,
		Duration:      src.Duration,
		CacheHit:      src.CacheHit,
		StaleExcluded: src.StaleExcluded,
		Variants:      append([]string(nil), src.Variants...),
		Results:       make([]types.SearchResult, len(src.Results)),
	}
	for i, r := range src.Results {
		r.ContextBefore = append([]string(nil), r.ContextBefore...)
		r.ContextAfter = append([]string(nil), r.ContextAfter...)
		dst.Results[i] = r
	}
	return dst
}

// requestHash builds a deterministic cache key for a request.
func requestHash(req SearchRequest) [32]byte {
	var b strings.Builder
	b.WriteString(req.Query)
	b.WriteString("|")
	fmt.Fprintf(&b, "%d|%d|%.4f|", req.Limit, req.EfSearch, req.MinScore)
	b.WriteString(strings.Join(req.Languages, ","))
	b.WriteString("|")
	b.WriteString(req.PathPrefix)
	return sha256.Sum256([]byte(b.String()))
}

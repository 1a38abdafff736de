package types

// SearchResult is a single ranked match returned by the query engine.
// Context lines are attached at query time and are never persisted in
// the index.
type SearchResult struct {
	ChunkID int64
	Rank    int // 1-based position in the result set

	// Score is cosine similarity in [0, 1]; higher is better.
	Score float64

	Path      string
	Language  string
	StartLine int
	EndLine   int

	Snippet string // the chunk content

	// ContextBefore and ContextAfter hold a few surrounding lines from
	// the current file contents, for display.
	ContextBefore []string
	ContextAfter  []string
}

// Validate checks that the result is well formed.
func (r *SearchResult) Validate() error {
	if r.ChunkID == 0 {
		return ErrInvalidChunkID
	}
	if r.Rank < 1 {
		return ErrInvalidRank
	}
	if r.Score < 0 || r.Score > 1 {
		return ErrInvalidScore
	}
	if r.Path == "" {
		return ErrMissingPath
	}
	if r.Snippet == "" {
		return ErrEmptyContent
	}
	return nil
}

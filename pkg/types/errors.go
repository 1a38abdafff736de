package types

import "errors"

// Engine error taxonomy. Each sentinel maps to a recovery strategy rather
// than a subsystem, so callers can branch on errors.Is without knowing
// which component failed.
var (
	// ErrDimensionMismatch means a vector's length disagrees with the
	// manifest dimension. The single insert or query fails; proceeding
	// would produce meaningless distances.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrIndexAbsent means no usable index generation exists on disk.
	// Callers degrade to "no results, index needs rebuild".
	ErrIndexAbsent = errors.New("index absent")

	// ErrIndexCorrupt means a persisted generation could not be read.
	// The store recovers it as absent; it is never fatal to the caller.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrBackendUnavailable means the embedding backend kept failing
	// after retries. Callers may fall back to non-semantic search.
	ErrBackendUnavailable = errors.New("embedding backend unavailable")

	// ErrChunkingFailure marks a single unparseable file. It is logged
	// and skipped; the overall scan continues.
	ErrChunkingFailure = errors.New("chunking failure")

	// ErrWriterBusy means another indexing run holds the single-writer
	// role for the in-progress generation.
	ErrWriterBusy = errors.New("index writer busy")
)

// Result validation errors.
var (
	ErrInvalidChunkID = errors.New("invalid chunk ID")
	ErrInvalidRank    = errors.New("rank must be >= 1")
	ErrInvalidScore   = errors.New("score must be between 0 and 1")
	ErrMissingPath    = errors.New("result path is required")
	ErrEmptyContent   = errors.New("content cannot be empty")
)

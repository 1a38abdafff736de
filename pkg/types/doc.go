// Package types provides shared type definitions for the semindex engine.
//
// This package defines the domain types that cross component boundaries:
// source chunks, search results, and the error taxonomy. Components accept
// and return these types so that the chunker, embedder, index, store, and
// query engine can evolve independently.
//
// # Core Types
//
// SourceChunk is the atomic unit of indexing and retrieval, a bounded span
// of source text with a deterministic content hash:
//
//	chunk := &types.SourceChunk{
//	    Path:      "internal/pool/pool.go",
//	    Language:  "go",
//	    StartLine: 10,
//	    EndLine:   42,
//	    Content:   text,
//	}
//	chunk.ComputeHash()
//
// SearchResult carries everything a caller needs to display a match: the
// chunk identity, similarity score, location, and a small context window
// of surrounding lines resolved at query time.
//
// # Error Taxonomy
//
// Sentinel errors classify failures by recovery strategy:
//
//   - ErrDimensionMismatch: the single operation fails, nothing else
//   - ErrIndexCorrupt / ErrIndexAbsent: recovered by a rebuild, never fatal
//   - ErrBackendUnavailable: surfaced after retries as a degraded-mode signal
//   - ErrChunkingFailure: per-file, collected into indexing warnings
package types

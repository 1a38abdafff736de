// Package chunker splits source files into bounded, addressable text
// units for embedding and search.
//
// Chunk boundaries prefer syntactic units when a parser exists for the
// language (currently Go, via go/ast): functions, methods, and top-level
// declarations become one chunk each, carrying a package/import preamble
// as context. Every other language falls back to a fixed-size sliding
// window with a fixed overlap.
//
// Chunking is deterministic: identical file bytes always yield identical
// chunk boundaries and hashes, because the content hash is the cache key
// for everything downstream.
//
//	c := chunker.New(chunker.DefaultOptions())
//	chunks, err := c.Chunk("internal/pool/pool.go", "go", content)
//
// Binary content and oversized files are rejected with ErrBinaryContent
// and ErrFileTooLarge; callers count these as skips, not failures.
package chunker

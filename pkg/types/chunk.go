package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ChunkKind classifies how a chunk's boundaries were chosen.
type ChunkKind string

const (
	ChunkFunction ChunkKind = "function"
	ChunkMethod   ChunkKind = "method"
	ChunkTypeDecl ChunkKind = "type"
	ChunkDecl     ChunkKind = "decl"
	ChunkWindow   ChunkKind = "window"
)

// SourceChunk is a bounded, addressable unit of source text. It is the
// atomic granularity of indexing and retrieval: embeddings, index nodes,
// and search results all resolve back to a chunk.
type SourceChunk struct {
	// Identification. ID is assigned by the catalog when the chunk is
	// stored; Hash is the SHA-256 of the chunk's exact content bytes and
	// is the cache key for everything downstream.
	ID   int64
	Hash [32]byte

	// Location
	Path      string // relative to the indexed root
	Language  string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	StartByte int
	EndByte   int

	// Content
	Content string
	Context string // package/import preamble for syntax-aware chunks

	Kind ChunkKind
}

// ComputeHash computes the SHA-256 hash of the chunk content.
// Identical content bytes always yield an identical hash.
func (c *SourceChunk) ComputeHash() {
	c.Hash = sha256.Sum256([]byte(c.Content))
}

// HashString returns the content hash as lowercase hex.
func (c *SourceChunk) HashString() string {
	return hex.EncodeToString(c.Hash[:])
}

// EmbedText returns the text submitted to the embedding backend: the
// context preamble, when present, followed by the chunk content.
func (c *SourceChunk) EmbedText() string {
	if c.Context == "" {
		return c.Content
	}
	return c.Context + "\n\n" + c.Content
}

// Validate performs basic integrity checks on the chunk.
func (c *SourceChunk) Validate() error {
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}
	if c.Path == "" {
		return errors.New("chunk path is required")
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	var zero [32]byte
	if c.Hash == zero {
		return errors.New("content hash must be computed")
	}
	return nil
}

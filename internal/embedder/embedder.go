package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Common errors.
var (
	ErrEmptyText    = errors.New("text cannot be empty")
	ErrNoTexts      = errors.New("no texts provided")
	ErrBadDimension = errors.New("backend returned wrong dimension")
)

// Backend is the embedding capability: one inference operation and the
// identity needed to key caches and manifests. Implementations own their
// latency and failure profile; retry and batching live outside, in the
// Batcher.
type Backend interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed vector length this backend produces.
	Dimension() int

	// ModelID identifies the model and version, e.g. "openai/text-embedding-3-small".
	ModelID() string

	// Close releases backend resources.
	Close() error
}

// ComputeHash returns the SHA-256 of text as lowercase hex, the content
// address used by the cache.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// Package embedder maps chunk text to fixed-dimension vectors through a
// pluggable backend, with batching, retry, and a content-addressed cache.
//
// The embedding source is an opaque capability: the Backend interface has
// one inference operation plus identity metadata, and concrete backends
// (OpenAI API, a local Ollama server, a deterministic hash backend for
// offline use) are selected at construction time. The engine depends only
// on the interface.
//
// A two-tier cache sits in front of every backend call, keyed by
// (model id, content hash): an in-memory LRU for the hot set and a
// BadgerDB store for durability across runs. Cache entries are immutable
// and content-addressed, so a re-index of an unchanged tree is close to
// 100% cache hits and its cost is dominated by hashing, not inference.
//
// The Batcher groups texts up to a batch size to amortize backend call
// overhead; when a whole batch fails, its members are retried
// individually so that one bad input cannot poison the rest.
package embedder

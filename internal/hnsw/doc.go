// Package hnsw implements a hierarchical navigable small-world graph for
// approximate nearest-neighbor search over cosine distance.
//
// The graph is built incrementally by single-writer insertion and sealed
// into an immutable snapshot before it is published for queries. Sealed
// graphs are safe for arbitrarily many concurrent readers.
//
// # Basic Usage
//
//	g := hnsw.New(dim, hnsw.DefaultConfig())
//	for _, v := range vectors {
//	    if err := g.Insert(v.ChunkID, v.Vector); err != nil {
//	        return err
//	    }
//	}
//	g.Seal()
//
//	hits, err := g.Search(query, 10, 0) // ef 0 means the configured default
//
// # Parameters
//
//   - M: max neighbors kept per node per layer. Higher improves recall at
//     the cost of memory and build time. Layer 0 keeps 2*M.
//   - EfConstruction: candidate list width during insertion. Trades build
//     time for graph quality.
//   - EfSearch: candidate list width at query time, overridable per query
//     for a quality/speed trade-off.
//   - MaxLayer: cap on the probabilistic top layer.
//
// # Semantics
//
// Vectors are normalized to unit length on insert and query, so cosine
// distance reduces to 1 - dot(a, b). Searching an empty graph returns an
// empty result set; k larger than the graph returns every entry; a vector
// whose length disagrees with the graph dimension fails with
// types.ErrDimensionMismatch. Result ordering is deterministic: ascending
// distance, ties broken by lowest internal node id.
//
// Incremental deletion is deliberately unsupported. Removing nodes from
// this graph family degrades neighbor-list quality, so stale entries are
// filtered from result sets at query time and physically dropped only by
// a full rebuild.
package hnsw

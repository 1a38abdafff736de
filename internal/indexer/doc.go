// Package indexer coordinates the build pipeline: scan the tree, chunk
// each file, embed the chunks, construct the vector graph, and publish
// the result as a new store generation.
//
// Builds are full rebuilds by construction; incrementality comes from
// the content-addressed embedding cache, which turns unchanged chunks
// into cache hits. A run against an unchanged tree short-circuits
// without writing anything.
//
// One writer at a time: a second Run while one is in flight returns
// ErrWriterBusy immediately. Per-file problems (unreadable, binary,
// unparseable) are warnings on the run's Stats, never run failures.
// Cancellation aborts before publication, leaving the previously
// published generation untouched.
package indexer

// Package searcher answers semantic queries against the live index
// snapshot.
//
// A query is expanded into a small set of variants (identifier
// splitting, synonym substitution), each variant is embedded and run
// against the vector graph with an overfetched candidate budget, and
// the per-variant hit lists are merged keeping the best score per
// chunk. Candidates then pass through post-filters: language, path
// scope, minimum similarity, and staleness, where a chunk whose source
// file has changed or vanished since indexing is silently excluded.
// Surviving results carry a few lines of surrounding context read from
// the live file.
//
// Responses for identical requests are served from a TTL-bounded LRU
// cache that is purged whenever a new generation is published.
package searcher

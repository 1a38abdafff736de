// Package store persists index generations and loads them back as
// immutable snapshots.
//
// A generation is a directory holding three artifacts written together:
// graph.bin (the serialized vector graph), catalog.db (a SQLite catalog
// of chunk text and positions), and manifest.json (model identity,
// graph parameters, and the per-file content hash table used for
// staleness checks). Generations are never modified after creation.
//
// Publication is atomic. A new generation is staged under a fresh
// directory, fsynced, and then the CURRENT pointer file is replaced via
// rename. A reader either sees the previous complete generation or the
// new one; a crash at any point leaves the published index untouched.
// Anything unreadable, truncated, or from an incompatible format
// version loads as ErrIndexAbsent, so the caller's recovery path is
// always the same: rebuild.
package store

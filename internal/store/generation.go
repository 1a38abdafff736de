package store

import (
	"sync/atomic"

	"github.com/tessellate-dev/semindex/internal/hnsw"
	"github.com/tessellate-dev/semindex/pkg/types"
)

// Snapshot is one loaded generation: a sealed graph, its chunk catalog,
// and its manifest. Snapshots are immutable and reference counted so an
// in-flight search keeps its generation alive across a swap.
type Snapshot struct {
	Generation string
	Graph      *hnsw.Graph
	Catalog    *Catalog
	Manifest   *Manifest

	refs   atomic.Int64
	closed atomic.Bool
}

func newSnapshot(generation string, graph *hnsw.Graph, catalog *Catalog, manifest *Manifest) *Snapshot {
	s := &Snapshot{
		Generation: generation,
		Graph:      graph,
		Catalog:    catalog,
		Manifest:   manifest,
	}
	// The owner's reference; dropped by Close.
	s.refs.Store(1)
	return s
}

func (s *Snapshot) acquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (s *Snapshot) release() {
	if s.refs.Add(-1) == 0 {
		_ = s.Catalog.Close()
	}
}

// Close drops the owner's reference. Resources are freed once the last
// in-flight reader releases.
func (s *Snapshot) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.release()
	}
}

// Handle publishes the live snapshot to readers. Swapping is wait-free
// for readers; the superseded snapshot is freed when its last reader
// finishes.
type Handle struct {
	cur atomic.Pointer[Snapshot]
}

// NewHandle creates a handle with no snapshot loaded.
func NewHandle() *Handle {
	return &Handle{}
}

// Current returns the live snapshot pinned for the caller, plus a
// release function. It returns ErrIndexAbsent when nothing is loaded.
func (h *Handle) Current() (*Snapshot, func(), error) {
	for {
		s := h.cur.Load()
		if s == nil {
			return nil, nil, types.ErrIndexAbsent
		}
		if s.acquire() {
			return s, func() { s.release() }, nil
		}
		// Lost a race with Swap freeing this snapshot; reload.
	}
}

// Swap installs next as the live snapshot and closes the previous one.
// next may be nil to unload.
func (h *Handle) Swap(next *Snapshot) {
	prev := h.cur.Swap(next)
	if prev != nil {
		prev.Close()
	}
}

// Loaded reports whether a snapshot is installed.
func (h *Handle) Loaded() bool {
	return h.cur.Load() != nil
}

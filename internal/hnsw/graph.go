package hnsw

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/tessellate-dev/semindex/pkg/types"
)

// Default construction parameters. These are starting points, not tuned
// constants: recall/latency behavior depends on the corpus, so the config
// layer exposes all of them.
const (
	DefaultM              = 16
	DefaultEfConstruction = 200
	DefaultEfSearch       = 64
	DefaultMaxLayer       = 16

	// defaultSeed makes level assignment, and therefore the whole build,
	// reproducible for identical insertion sequences.
	defaultSeed = 0x5eed
)

// ErrSealed is returned by Insert after the graph has been sealed.
var ErrSealed = errors.New("graph is sealed")

// Config holds the tunable HNSW construction and search parameters.
type Config struct {
	M              int   // max neighbors per node per layer (layer 0 keeps 2*M)
	EfConstruction int   // candidate width during insertion
	EfSearch       int   // default candidate width at query time
	MaxLayer       int   // cap on the probabilistic top layer
	Seed           int64 // level-assignment RNG seed
}

// DefaultConfig returns the default construction parameters.
func DefaultConfig() Config {
	return Config{
		M:              DefaultM,
		EfConstruction: DefaultEfConstruction,
		EfSearch:       DefaultEfSearch,
		MaxLayer:       DefaultMaxLayer,
		Seed:           defaultSeed,
	}
}

// normalize fills in zero fields with defaults.
func (c Config) normalize() Config {
	if c.M <= 0 {
		c.M = DefaultM
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = DefaultEfConstruction
	}
	if c.EfSearch <= 0 {
		c.EfSearch = DefaultEfSearch
	}
	if c.MaxLayer <= 0 || c.MaxLayer > DefaultMaxLayer {
		c.MaxLayer = DefaultMaxLayer
	}
	if c.Seed == 0 {
		c.Seed = defaultSeed
	}
	return c
}

// node is a single graph vertex: the chunk it stands for, its normalized
// vector, and one neighbor list per layer from 0 up to its level.
type node struct {
	chunkID   int64
	vector    []float32
	level     int
	neighbors [][]uint32
}

// Graph is the layered ANN structure. It has exactly two states: under
// construction (single writer, not queryable through a published handle)
// and sealed (immutable, safe for concurrent readers). Insert is not safe
// for concurrent use; Search on a sealed graph is.
type Graph struct {
	cfg       Config
	dim       int
	nodes     []*node
	entry     uint32
	maxLevel  int
	levelMult float64
	rng       *rand.Rand
	sealed    bool
}

// Hit is a single nearest-neighbor match.
type Hit struct {
	ChunkID  int64
	Distance float64 // cosine distance, ascending is better
}

// New creates an empty graph for vectors of the given dimension.
func New(dim int, cfg Config) *Graph {
	cfg = cfg.normalize()
	return &Graph{
		cfg:       cfg,
		dim:       dim,
		levelMult: 1.0 / math.Log(float64(cfg.M)),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Dim returns the vector dimension the graph was built for.
func (g *Graph) Dim() int { return g.dim }

// Len returns the number of inserted vectors.
func (g *Graph) Len() int { return len(g.nodes) }

// Config returns the construction parameters.
func (g *Graph) Config() Config { return g.cfg }

// Seal marks the graph immutable. Further Insert calls fail; Search is
// safe for concurrent readers from here on.
func (g *Graph) Seal() { g.sealed = true }

// Sealed reports whether the graph has been sealed.
func (g *Graph) Sealed() bool { return g.sealed }

// ChunkIDs returns the chunk ids of all inserted vectors, in insertion
// order. Used to cross-check the catalog and manifest.
func (g *Graph) ChunkIDs() []int64 {
	ids := make([]int64, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.chunkID
	}
	return ids
}

// randomLevel draws a top layer from an exponentially decaying
// distribution, capped at MaxLayer.
func (g *Graph) randomLevel() int {
	level := int(-math.Log(g.rng.Float64()) * g.levelMult)
	if level > g.cfg.MaxLayer {
		level = g.cfg.MaxLayer
	}
	return level
}

// maxNeighbors is the neighbor-list bound for a layer. Layer 0 keeps 2*M,
// upper layers keep M.
func (g *Graph) maxNeighbors(layer int) int {
	if layer == 0 {
		return 2 * g.cfg.M
	}
	return g.cfg.M
}

// Insert adds a vector under the given chunk id. The vector is normalized
// and copied; the caller's slice is not retained.
func (g *Graph) Insert(chunkID int64, vec []float32) error {
	if g.sealed {
		return ErrSealed
	}
	if len(vec) != g.dim {
		return fmt.Errorf("%w: insert got %d, index has %d", types.ErrDimensionMismatch, len(vec), g.dim)
	}

	v := Normalize(vec)
	level := g.randomLevel()
	id := uint32(len(g.nodes))
	n := &node{
		chunkID:   chunkID,
		vector:    v,
		level:     level,
		neighbors: make([][]uint32, level+1),
	}
	g.nodes = append(g.nodes, n)

	if len(g.nodes) == 1 {
		g.entry = id
		g.maxLevel = level
		return nil
	}

	ep := candidate{id: g.entry, dist: cosineDistance(v, g.nodes[g.entry].vector)}

	// Greedy descent through the layers above the new node's level.
	for l := g.maxLevel; l > level; l-- {
		ep = g.greedyClosest(v, ep, l)
	}

	// At and below the assigned level: best-first search, then connect.
	top := level
	if top > g.maxLevel {
		top = g.maxLevel
	}
	for l := top; l >= 0; l-- {
		found := g.searchLayer(v, ep, g.cfg.EfConstruction, l)
		selected := g.selectNeighbors(found, g.cfg.M)

		ids := make([]uint32, len(selected))
		for i, c := range selected {
			ids[i] = c.id
		}
		n.neighbors[l] = ids

		for _, c := range selected {
			g.link(c.id, id, l)
		}

		if len(found) > 0 {
			ep = found[0]
		}
	}

	if level > g.maxLevel {
		g.maxLevel = level
		g.entry = id
	}
	return nil
}

// link adds `to` to `from`'s neighbor list at the given layer, pruning
// with the diversity heuristic when the list overflows.
func (g *Graph) link(from, to uint32, layer int) {
	fn := g.nodes[from]
	fn.neighbors[layer] = append(fn.neighbors[layer], to)

	limit := g.maxNeighbors(layer)
	if len(fn.neighbors[layer]) <= limit {
		return
	}

	cands := make([]candidate, len(fn.neighbors[layer]))
	for i, nid := range fn.neighbors[layer] {
		cands[i] = candidate{id: nid, dist: cosineDistance(fn.vector, g.nodes[nid].vector)}
	}
	sortCandidates(cands)

	selected := g.selectNeighbors(cands, limit)
	ids := make([]uint32, len(selected))
	for i, c := range selected {
		ids[i] = c.id
	}
	fn.neighbors[layer] = ids
}

// selectNeighbors applies the diversity heuristic to a candidate list
// sorted by ascending distance: a candidate is kept only if it is closer
// to the query than to every already-selected neighbor. This prefers
// neighbors covering distinct directions over raw-distance-nearest ones,
// which keeps the graph from collapsing into tight clusters that hurt
// recall. Pruned candidates backfill the list if the heuristic selects
// fewer than m.
func (g *Graph) selectNeighbors(cands []candidate, m int) []candidate {
	if len(cands) <= m {
		return cands
	}

	selected := make([]candidate, 0, m)
	pruned := make([]candidate, 0, len(cands))

	for _, c := range cands {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			if cosineDistance(g.nodes[c.id].vector, g.nodes[s.id].vector) < c.dist {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		} else {
			pruned = append(pruned, c)
		}
	}

	for _, c := range pruned {
		if len(selected) >= m {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

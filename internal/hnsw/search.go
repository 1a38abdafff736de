package hnsw

import (
	"fmt"
	"sort"

	"github.com/tessellate-dev/semindex/pkg/types"
)

// Search returns the k nearest neighbors of query by ascending cosine
// distance. ef widens the layer-0 beam; zero or negative means the
// configured EfSearch. An empty graph yields an empty result set; k
// larger than the graph yields every entry.
func (g *Graph) Search(query []float32, k, ef int) ([]Hit, error) {
	if len(query) != g.dim {
		return nil, fmt.Errorf("%w: query got %d, index has %d", types.ErrDimensionMismatch, len(query), g.dim)
	}
	if len(g.nodes) == 0 || k <= 0 {
		return []Hit{}, nil
	}

	if ef <= 0 {
		ef = g.cfg.EfSearch
	}
	if ef < k {
		ef = k
	}

	q := Normalize(query)
	ep := candidate{id: g.entry, dist: cosineDistance(q, g.nodes[g.entry].vector)}

	// Greedy single-best descent to layer 1.
	for l := g.maxLevel; l >= 1; l-- {
		ep = g.greedyClosest(q, ep, l)
	}

	// Beam search on the bottom layer.
	found := g.searchLayer(q, ep, ef, 0)
	if k > len(found) {
		k = len(found)
	}

	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = Hit{ChunkID: g.nodes[found[i].id].chunkID, Distance: found[i].dist}
	}
	return hits, nil
}

// greedyClosest walks a single layer by always moving to the best
// neighbor until no neighbor improves on the current position.
func (g *Graph) greedyClosest(q []float32, ep candidate, layer int) candidate {
	for {
		improved := false
		nbs := g.nodes[ep.id].neighbors
		if layer >= len(nbs) {
			return ep
		}
		for _, nid := range nbs[layer] {
			d := cosineDistance(q, g.nodes[nid].vector)
			if (candidate{id: nid, dist: d}).less(ep) {
				ep = candidate{id: nid, dist: d}
				improved = true
			}
		}
		if !improved {
			return ep
		}
	}
}

// searchLayer performs a best-first search over one layer, keeping up to
// ef candidates, and returns the survivors sorted by ascending distance.
func (g *Graph) searchLayer(q []float32, ep candidate, ef int, layer int) []candidate {
	visited := make([]bool, len(g.nodes))
	visited[ep.id] = true

	frontier := minQueue{ep}
	results := maxQueue{ep}

	for frontier.Len() > 0 {
		cur := frontier.pop()

		// The frontier is exhausted once its best candidate is worse
		// than the worst kept result.
		if results.Len() >= ef && results.top().less(cur) {
			break
		}

		nbs := g.nodes[cur.id].neighbors
		if layer >= len(nbs) {
			continue
		}
		for _, nid := range nbs[layer] {
			if visited[nid] {
				continue
			}
			visited[nid] = true

			c := candidate{id: nid, dist: cosineDistance(q, g.nodes[nid].vector)}
			if results.Len() < ef {
				frontier.push(c)
				results.push(c)
			} else if c.less(results.top()) {
				frontier.push(c)
				results.push(c)
				results.pop()
			}
		}
	}

	return results.sorted()
}

// sortCandidates orders candidates by ascending distance with the id
// tie-break.
func sortCandidates(cands []candidate) {
	sort.Slice(cands, func(i, j int) bool { return cands[i].less(cands[j]) })
}

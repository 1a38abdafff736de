package hnsw

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Wire layout (little-endian, after the store's file header): graph
// geometry, construction parameters, then one record per node in
// insertion order. Node records carry the chunk id, level, normalized
// vector, and per-layer neighbor lists.

// Encode writes the graph in its binary wire format.
func (g *Graph) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)

	head := []uint32{
		uint32(g.dim),
		uint32(len(g.nodes)),
		g.entry,
		uint32(g.maxLevel),
		uint32(g.cfg.M),
		uint32(g.cfg.EfConstruction),
		uint32(g.cfg.EfSearch),
		uint32(g.cfg.MaxLayer),
	}
	for _, v := range head {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, g.cfg.Seed); err != nil {
		return err
	}

	for _, n := range g.nodes {
		if err := encodeNode(bw, n); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func encodeNode(w io.Writer, n *node) error {
	if err := binary.Write(w, binary.LittleEndian, n.chunkID); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(n.level)); err != nil {
		return err
	}
	for _, f := range n.vector {
		if err := binary.Write(w, binary.LittleEndian, math.Float32bits(f)); err != nil {
			return err
		}
	}
	for _, layer := range n.neighbors {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(layer))); err != nil {
			return err
		}
		for _, id := range layer {
			if err := binary.Write(w, binary.LittleEndian, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Decode reads a graph from its binary wire format. The returned graph
// is sealed: a persisted generation is immutable by definition.
func Decode(r io.Reader) (*Graph, error) {
	br := bufio.NewReader(r)

	var dim, count, entry, maxLevel uint32
	var m, efC, efS, maxLayer uint32
	var seed int64
	for _, p := range []*uint32{&dim, &count, &entry, &maxLevel, &m, &efC, &efS, &maxLayer} {
		if err := binary.Read(br, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("graph header: %w", err)
		}
	}
	if err := binary.Read(br, binary.LittleEndian, &seed); err != nil {
		return nil, fmt.Errorf("graph header: %w", err)
	}

	if dim == 0 || dim > 1<<16 {
		return nil, fmt.Errorf("implausible vector dimension %d", dim)
	}
	if count > 0 && entry >= count {
		return nil, fmt.Errorf("entry point %d out of range (%d nodes)", entry, count)
	}

	g := New(int(dim), Config{
		M:              int(m),
		EfConstruction: int(efC),
		EfSearch:       int(efS),
		MaxLayer:       int(maxLayer),
		Seed:           seed,
	})
	g.entry = entry
	g.maxLevel = int(maxLevel)
	g.nodes = make([]*node, 0, count)

	for i := uint32(0); i < count; i++ {
		n, err := decodeNode(br, int(dim), count)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		g.nodes = append(g.nodes, n)
	}

	g.sealed = true
	return g, nil
}

func decodeNode(r io.Reader, dim int, count uint32) (*node, error) {
	n := &node{}
	if err := binary.Read(r, binary.LittleEndian, &n.chunkID); err != nil {
		return nil, err
	}
	var level uint32
	if err := binary.Read(r, binary.LittleEndian, &level); err != nil {
		return nil, err
	}
	if level > DefaultMaxLayer {
		return nil, fmt.Errorf("implausible node level %d", level)
	}
	n.level = int(level)

	n.vector = make([]float32, dim)
	for i := 0; i < dim; i++ {
		var bits uint32
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return nil, err
		}
		n.vector[i] = math.Float32frombits(bits)
	}

	n.neighbors = make([][]uint32, n.level+1)
	for l := 0; l <= n.level; l++ {
		var sz uint32
		if err := binary.Read(r, binary.LittleEndian, &sz); err != nil {
			return nil, err
		}
		if sz > count {
			return nil, fmt.Errorf("implausible neighbor count %d", sz)
		}
		layer := make([]uint32, sz)
		for j := uint32(0); j < sz; j++ {
			if err := binary.Read(r, binary.LittleEndian, &layer[j]); err != nil {
				return nil, err
			}
			if layer[j] >= count {
				return nil, fmt.Errorf("neighbor id %d out of range", layer[j])
			}
		}
		n.neighbors[l] = layer
	}
	return n, nil
}

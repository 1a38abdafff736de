package hnsw

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	vectors := randomVectors(150, 24, 21)
	g := buildGraph(t, vectors, DefaultConfig())

	var buf bytes.Buffer
	require.NoError(t, g.Encode(&buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.True(t, decoded.Sealed())
	assert.Equal(t, g.Len(), decoded.Len())
	assert.Equal(t, g.Dim(), decoded.Dim())
	assert.Equal(t, g.Config(), decoded.Config())

	// The reloaded graph must answer queries identically.
	queries := randomVectors(10, 24, 22)
	for _, q := range queries {
		want, err := g.Search(q, 10, 0)
		require.NoError(t, err)
		got, err := decoded.Search(q, 10, 0)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].ChunkID, got[i].ChunkID)
			assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-6)
		}
	}
}

func TestCodec_EmptyGraph(t *testing.T) {
	g := New(8, DefaultConfig())
	g.Seal()

	var buf bytes.Buffer
	require.NoError(t, g.Encode(&buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.Len())

	hits, err := decoded.Search(make([]float32, 8), 3, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDecode_Truncated(t *testing.T) {
	vectors := randomVectors(20, 8, 23)
	g := buildGraph(t, vectors, DefaultConfig())

	var buf bytes.Buffer
	require.NoError(t, g.Encode(&buf))

	raw := buf.Bytes()
	_, err := Decode(bytes.NewReader(raw[:len(raw)/2]))
	assert.Error(t, err)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not a graph file at all")))
	assert.Error(t, err)
}

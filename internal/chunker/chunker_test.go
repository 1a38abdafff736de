package chunker

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-dev/semindex/pkg/types"
)

const goSample = `package pool

import (
	"sync"
	"time"
)

// Pool manages a set of reusable connections.
type Pool struct {
	mu    sync.Mutex
	conns []*Conn
}

// Acquire returns a free connection, blocking until one is available.
func (p *Pool) Acquire(timeout time.Duration) (*Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conns[0], nil
}

// NewPool creates a connection pool of the given size.
func NewPool(size int) *Pool {
	return &Pool{conns: make([]*Conn, 0, size)}
}
`

func TestChunk_GoSyntaxBoundaries(t *testing.T) {
	c := New(DefaultOptions())
	chunks, err := c.Chunk("pool/pool.go", "go", []byte(goSample))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	var kinds []types.ChunkKind
	for _, ch := range chunks {
		kinds = append(kinds, ch.Kind)
		assert.Contains(t, ch.Context, "package pool")
		assert.Contains(t, ch.Context, `"sync"`)
		assert.Equal(t, "pool/pool.go", ch.Path)
		assert.NoError(t, ch.Validate())
	}
	assert.Equal(t, []types.ChunkKind{types.ChunkTypeDecl, types.ChunkMethod, types.ChunkFunction}, kinds)

	// The method chunk includes its doc comment.
	assert.Contains(t, chunks[1].Content, "// Acquire returns")
	assert.Contains(t, chunks[1].Content, "p.mu.Lock()")
}

func TestChunk_Deterministic(t *testing.T) {
	c := New(DefaultOptions())

	first, err := c.Chunk("pool/pool.go", "go", []byte(goSample))
	require.NoError(t, err)
	second, err := c.Chunk("pool/pool.go", "go", []byte(goSample))
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Hash, second[i].Hash)
		assert.Equal(t, first[i].StartLine, second[i].StartLine)
		assert.Equal(t, first[i].EndLine, second[i].EndLine)
	}
}

func TestChunk_WindowFallback(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("def handler(request): # line of python\n")
	}

	c := New(Options{WindowLines: 40, OverlapLines: 10})
	chunks, err := c.Chunk("app/views.py", "", []byte(b.String()))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, "python", chunks[0].Language)
	assert.Equal(t, types.ChunkWindow, chunks[0].Kind)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 40, chunks[0].EndLine)

	// Adjacent windows overlap by OverlapLines.
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, 31, chunks[1].StartLine)
}

func TestChunk_GoParseErrorFallsBack(t *testing.T) {
	broken := "package broken\n\nfunc Oops( {\n" + strings.Repeat("\tx := 1\n", 30) + "}\n"

	c := New(DefaultOptions())
	chunks, err := c.Chunk("broken.go", "go", []byte(broken))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, types.ChunkWindow, chunks[0].Kind)
}

func TestChunk_SkipsBinary(t *testing.T) {
	c := New(DefaultOptions())
	content := append([]byte("ELF"), bytes.Repeat([]byte{0x00, 0x42}, 64)...)

	_, err := c.Chunk("bin/tool", "", content)
	assert.ErrorIs(t, err, ErrBinaryContent)
}

func TestChunk_SkipsOversized(t *testing.T) {
	c := New(Options{MaxFileBytes: 128})
	_, err := c.Chunk("big.txt", "", bytes.Repeat([]byte("a"), 256))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestChunk_EmptyFile(t *testing.T) {
	c := New(DefaultOptions())
	chunks, err := c.Chunk("empty.go", "go", nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"lib/http.rs", "rust"},
		{"setup.PY", "python"},
		{"setup.py", "python"},
		{"README.md", "markdown"},
		{"Makefile", "text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.path), tt.path)
	}
}

package chunker

import (
	"errors"
	"fmt"

	"github.com/tessellate-dev/semindex/pkg/types"
)

// Skip sentinels. These are not failures: the indexer counts the file as
// skipped and moves on.
var (
	ErrBinaryContent = errors.New("binary content")
	ErrFileTooLarge  = errors.New("file exceeds size ceiling")
)

// Default chunking parameters.
const (
	DefaultWindowLines  = 40
	DefaultOverlapLines = 10
	DefaultMaxFileBytes = 1 << 20 // 1 MiB

	// minChunkRunes drops fragments too small to carry meaning.
	minChunkRunes = 24
)

// Options configures chunk sizing.
type Options struct {
	WindowLines  int // sliding-window height for languages without a parser
	OverlapLines int // lines shared between adjacent windows
	MaxFileBytes int // files larger than this are skipped
}

// DefaultOptions returns the default chunk sizing.
func DefaultOptions() Options {
	return Options{
		WindowLines:  DefaultWindowLines,
		OverlapLines: DefaultOverlapLines,
		MaxFileBytes: DefaultMaxFileBytes,
	}
}

// Chunker produces SourceChunks from file content.
type Chunker struct {
	opts Options
}

// New creates a Chunker. Zero option fields fall back to defaults.
func New(opts Options) *Chunker {
	if opts.WindowLines <= 0 {
		opts.WindowLines = DefaultWindowLines
	}
	if opts.OverlapLines < 0 || opts.OverlapLines >= opts.WindowLines {
		opts.OverlapLines = opts.WindowLines / 4
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}
	return &Chunker{opts: opts}
}

// Chunk splits content into chunks for the given path. lang is a hint;
// when empty it is detected from the path. The function is pure: no file
// system access, and identical bytes yield identical chunks.
func (c *Chunker) Chunk(path, lang string, content []byte) ([]types.SourceChunk, error) {
	if len(content) > c.opts.MaxFileBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(content))
	}
	if isBinary(content) {
		return nil, ErrBinaryContent
	}
	if len(content) == 0 {
		return nil, nil
	}

	if lang == "" {
		lang = DetectLanguage(path)
	}

	var chunks []types.SourceChunk
	var err error
	if lang == "go" {
		chunks, err = c.chunkGo(path, content)
		if err != nil {
			// Unparseable Go still gets windowed coverage.
			chunks = c.chunkWindow(path, lang, content)
		}
	} else {
		chunks = c.chunkWindow(path, lang, content)
	}

	out := chunks[:0]
	for i := range chunks {
		if len([]rune(chunks[i].Content)) < minChunkRunes {
			continue
		}
		chunks[i].ComputeHash()
		out = append(out, chunks[i])
	}
	return out, nil
}

// isBinary sniffs for a NUL byte in the leading segment, the same
// heuristic git uses to classify files.
func isBinary(content []byte) bool {
	limit := len(content)
	if limit > 8000 {
		limit = 8000
	}
	for _, b := range content[:limit] {
		if b == 0 {
			return true
		}
	}
	return false
}

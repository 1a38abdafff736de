package chunker

import (
	"strings"

	"github.com/tessellate-dev/semindex/pkg/types"
)

// chunkWindow splits content into fixed-height windows with a fixed
// overlap. The fallback for every language without a syntax-aware
// splitter; boundaries depend only on the option values and the content.
func (c *Chunker) chunkWindow(path, lang string, content []byte) []types.SourceChunk {
	lines := strings.Split(string(content), "\n")
	step := c.opts.WindowLines - c.opts.OverlapLines

	var chunks []types.SourceChunk
	for start := 0; start < len(lines); start += step {
		end := start + c.opts.WindowLines
		if end > len(lines) {
			end = len(lines)
		}

		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, types.SourceChunk{
				Path:      path,
				Language:  lang,
				StartLine: start + 1,
				EndLine:   end,
				Content:   text,
				Kind:      types.ChunkWindow,
			})
		}

		if end == len(lines) {
			break
		}
	}
	return chunks
}

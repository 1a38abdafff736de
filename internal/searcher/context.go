package searcher

import "strings"

// contextLines is how many live-file lines surround a result on each
// side.
const contextLines = 4

// surroundingLines extracts up to contextLines lines before startLine
// and after endLine from content. Lines are 1-based and the bounds are
// clamped, so results at the top or bottom of a file get what exists.
func surroundingLines(content string, startLine, endLine int) (before, after []string) {
	lines := strings.Split(content, "\n")

	lo := startLine - 1 - contextLines
	if lo < 0 {
		lo = 0
	}
	hi := startLine - 1
	if hi > len(lines) {
		hi = len(lines)
	}
	if lo < hi {
		before = append(before, lines[lo:hi]...)
	}

	lo = endLine
	if lo < 0 {
		lo = 0
	}
	hi = endLine + contextLines
	if hi > len(lines) {
		hi = len(lines)
	}
	if lo < hi {
		after = append(after, lines[lo:hi]...)
	}
	return before, after
}

package chunker

import (
	"path/filepath"
	"strings"
)

// extLanguages maps file extensions to language tags. The tag selects
// the chunking strategy and is carried on chunks for query-time
// filtering.
var extLanguages = map[string]string{
	".go":    "go",
	".rs":    "rust",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".sql":   "sql",
	".proto": "protobuf",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".json":  "json",
	".html":  "html",
	".css":   "css",
}

// DetectLanguage returns the language tag for a path, or "text" when
// the extension is unknown.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extLanguages[ext]; ok {
		return lang
	}
	return "text"
}

// IndexableExtension reports whether the walker should consider a path
// at all. Unknown extensions are still indexable as plain text unless
// they look like build artifacts.
func IndexableExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := extLanguages[ext]; ok {
		return true
	}
	switch ext {
	case ".txt", ".rst", ".cfg", ".ini":
		return true
	default:
		return false
	}
}

package searcher

import (
	"strings"
	"unicode"
)

// maxVariants bounds how many embeddings one query costs.
const maxVariants = 3

// synonyms maps common code-search abbreviations to their long forms.
// Expansion is one-directional; the original query already covers the
// short form.
var synonyms = map[string]string{
	"auth":   "authentication",
	"authz":  "authorization",
	"db":     "database",
	"cfg":    "configuration",
	"config": "configuration",
	"conn":   "connection",
	"ctx":    "context",
	"err":    "error",
	"init":   "initialize",
	"param":  "parameter",
	"repo":   "repository",
	"req":    "request",
	"resp":   "response",
	"tx":     "transaction",
}

// expandQuery produces up to maxVariants phrasings of the query, the
// original always first. Deterministic for a given input.
func expandQuery(query string) []string {
	variants := []string{query}
	seen := map[string]bool{query: true}

	add := func(v string) {
		if v == "" || seen[v] || len(variants) >= maxVariants {
			return
		}
		seen[v] = true
		variants = append(variants, v)
	}

	// Identifier splitting: "parseJSONConfig" reads as "parse json config".
	split := splitIdentifiers(query)
	add(split)

	// Synonym substitution over the split form.
	words := strings.Fields(split)
	replaced := false
	for i, w := range words {
		if long, ok := synonyms[strings.ToLower(w)]; ok {
			words[i] = long
			replaced = true
		}
	}
	if replaced {
		add(strings.Join(words, " "))
	}

	return variants
}

// splitIdentifiers lowercases the query and breaks camelCase and
// snake_case tokens into words.
func splitIdentifiers(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	runes := []rune(query)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(' ')
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteRune(' ')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

package chunker

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/tessellate-dev/semindex/pkg/types"
)

// chunkGo splits a Go file at AST boundaries: one chunk per top-level
// function, method, or declaration group. Each chunk carries the package
// clause and import block as embedding context.
func (c *Chunker) chunkGo(path string, content []byte) ([]types.SourceChunk, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	lines := strings.Split(string(content), "\n")
	preamble := goPreamble(file)

	var chunks []types.SourceChunk
	for _, decl := range file.Decls {
		start, end := declRange(fset, decl)
		if start <= 0 || end > len(lines) || start > end {
			continue
		}

		kind := declKind(decl)
		if kind == "" {
			continue // import blocks live in the preamble
		}

		chunks = append(chunks, types.SourceChunk{
			Path:      path,
			Language:  "go",
			StartLine: start,
			EndLine:   end,
			StartByte: fset.Position(decl.Pos()).Offset,
			EndByte:   fset.Position(decl.End()).Offset,
			Content:   strings.Join(lines[start-1:end], "\n"),
			Context:   preamble,
			Kind:      kind,
		})
	}

	// A file with nothing but the package clause still gets indexed.
	if len(chunks) == 0 {
		chunks = c.chunkWindow(path, "go", content)
	}
	return chunks, nil
}

// declRange returns the 1-based line span of a declaration, extended to
// cover its doc comment.
func declRange(fset *token.FileSet, decl ast.Decl) (int, int) {
	pos := decl.Pos()
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if d.Doc != nil {
			pos = d.Doc.Pos()
		}
	case *ast.GenDecl:
		if d.Doc != nil {
			pos = d.Doc.Pos()
		}
	}
	return fset.Position(pos).Line, fset.Position(decl.End()).Line
}

// declKind maps a declaration to a chunk kind. Import declarations
// return "" and are excluded.
func declKind(decl ast.Decl) types.ChunkKind {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if d.Recv != nil {
			return types.ChunkMethod
		}
		return types.ChunkFunction
	case *ast.GenDecl:
		switch d.Tok {
		case token.IMPORT:
			return ""
		case token.TYPE:
			return types.ChunkTypeDecl
		default:
			return types.ChunkDecl
		}
	default:
		return ""
	}
}

// goPreamble builds the package/import context prefixed to every chunk
// of the file before embedding.
func goPreamble(file *ast.File) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n", file.Name.Name)

	if len(file.Imports) > 0 {
		b.WriteString("\nimport (\n")
		for _, imp := range file.Imports {
			if imp.Name != nil {
				fmt.Fprintf(&b, "\t%s %s\n", imp.Name.Name, imp.Path.Value)
			} else {
				fmt.Fprintf(&b, "\t%s\n", imp.Path.Value)
			}
		}
		b.WriteString(")")
	}
	return b.String()
}

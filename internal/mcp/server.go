package mcp

import (
	"context"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/tessellate-dev/semindex/internal/engine"
)

const (
	// ServerName is the MCP server name.
	ServerName = "semindex"
	// ServerVersion is the current server version.
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the search engine.
type Server struct {
	mcp    *server.MCPServer
	engine *engine.Engine
}

// NewServer creates an MCP server over an already-constructed engine.
// The caller keeps ownership of the engine's lifecycle.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		engine: eng,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	return s.serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tessellate-dev/semindex/internal/searcher"
	"github.com/tessellate-dev/semindex/pkg/types"
)

// MCP error codes.
const (
	ErrorCodeInvalidParams = -32602
	ErrorCodeInternalError = -32603
	ErrorCodeIndexBusy     = -32001
	ErrorCodeNotIndexed    = -32002
)

// handleIndexCodebase handles the index_codebase tool invocation.
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	force, _ := args["force"].(bool)

	stats, err := s.engine.Index(ctx, path, force)
	if errors.Is(err, types.ErrWriterBusy) {
		return nil, newMCPError(ErrorCodeIndexBusy, "another indexing run is in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":       true,
		"up_to_date":    stats.UpToDate,
		"files_scanned": stats.FilesScanned,
		"files_indexed": stats.FilesIndexed,
		"files_skipped": stats.FilesSkipped,
		"files_failed":  stats.FilesFailed,
		"chunks":        stats.Chunks,
		"vectors":       stats.Vectors,
		"cache_hits":    stats.CacheHits,
		"duration_ms":   stats.Duration.Milliseconds(),
	}
	if len(stats.Warnings) > 0 {
		warnings := stats.Warnings
		if len(warnings) > 5 {
			warnings = warnings[:5]
		}
		response["warnings"] = warnings
		response["warning_count"] = len(stats.Warnings)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation.
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	minScore, _ := args["min_score"].(float64)
	if minScore < 0 || minScore > 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "min_score must be between 0 and 1", map[string]interface{}{
			"param": "min_score",
			"value": minScore,
		})
	}

	req := searcher.SearchRequest{
		Query:      query,
		Limit:      limit,
		EfSearch:   getIntDefault(args, "ef_search", 0),
		MinScore:   minScore,
		PathPrefix: getStringDefault(args, "path_prefix", ""),
		Languages:  getStringSlice(args, "languages"),
		UseCache:   true,
	}

	resp, err := s.engine.Search(ctx, req)
	if errors.Is(err, types.ErrIndexAbsent) {
		return nil, newMCPError(ErrorCodeNotIndexed, "no index available; run index_codebase first", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = map[string]interface{}{
			"rank":           r.Rank,
			"score":          r.Score,
			"path":           r.Path,
			"language":       r.Language,
			"start_line":     r.StartLine,
			"end_line":       r.EndLine,
			"snippet":        r.Snippet,
			"context_before": r.ContextBefore,
			"context_after":  r.ContextAfter,
		}
	}
	response := map[string]interface{}{
		"results":        results,
		"total":          resp.TotalResults,
		"stale_excluded": resp.StaleExcluded,
		"cache_hit":      resp.CacheHit,
		"duration_ms":    resp.Duration.Milliseconds(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation.
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var path string
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		path = getStringDefault(args, "path", "")
		if path != "" {
			if err := validatePath(path); err != nil {
				return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
					"param":  "path",
					"reason": err.Error(),
				})
			}
		}
	}

	status, err := s.engine.Status(ctx, path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if !status.Loaded {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"indexed": false,
			"message": "No index available. Use index_codebase to build one.",
		})), nil
	}

	response := map[string]interface{}{
		"indexed": true,
		"index": map[string]interface{}{
			"generation": status.Generation,
			"model":      status.ModelID,
			"dimension":  status.Dimension,
			"vectors":    status.VectorCount,
			"chunks":     status.ChunkCount,
			"files":      status.FileCount,
			"created_at": status.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"staleness": map[string]interface{}{
			"unchanged":           status.Unchanged,
			"modified":            status.Modified,
			"deleted":             status.Deleted,
			"new":                 status.New,
			"stale_ratio":         fmt.Sprintf("%.2f", status.StaleRatio),
			"rebuild_recommended": status.RebuildRecommended,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error.
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error.
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that a path is an absolute, readable directory.
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON.
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value.
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value.
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter.
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)

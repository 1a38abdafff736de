package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexCodebaseTool returns the tool definition for index_codebase.
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a source tree to make it semantically searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the source tree root",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, rebuild even when the tree matches the published index",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code.
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search the indexed source tree with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or identifier fragments)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"languages": map[string]interface{}{
					"type":        "array",
					"description": "Restrict results to these languages (e.g. go, python)",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"path_prefix": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to paths under this prefix, relative to the indexed root",
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Minimum similarity score threshold (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"ef_search": map[string]interface{}{
					"type":        "integer",
					"description": "Search beam width override; higher trades latency for recall",
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status.
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics and how stale the index is against the tree",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Tree to compare against; defaults to the indexed root",
				},
			},
		},
	}
}

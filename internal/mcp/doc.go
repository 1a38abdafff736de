// Package mcp exposes the engine over the Model Context Protocol on
// stdio. Three tools: index_codebase builds or refreshes the index,
// search_code answers semantic queries, get_status reports index health
// and staleness. All logging goes to stderr; stdout belongs to the
// protocol.
package mcp

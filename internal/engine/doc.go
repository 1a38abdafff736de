// Package engine wires the pipeline together behind one facade used by
// both the CLI and the MCP server: build an index, search it, report
// its health. It owns the snapshot handle, so a finished build becomes
// visible to searches atomically.
package engine

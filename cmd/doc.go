// Package cmd implements the command-line interface for goaltiers.
//
// This package provides the following commands:
//   - serve: Start the HTTP API server for the web frontend
//   - mcp: Serve the goal tools to AI assistants over stdio
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
package cmd

// Package batch provides helpers for MCP tools that act on several task
// IDs in one call.
//
// This package includes helpers for:
//   - Parsing parameters that accept both a single ID and an array of IDs
//   - Running an operation per ID and collecting partial failures
package batch

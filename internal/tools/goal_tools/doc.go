// Package goal_tools provides MCP tools for the tiered goal store.
//
// The tools operate on the same store as the HTTP API, so goals created
// by an assistant show up in the browser and vice versa.
//
// # Available Tools
//
// Read tools (always registered):
//   - goals_list: List goals, grouped by tier or for a single tier
//   - goals_get: Get one or more goals by ID
//
// Write tools (skipped in read-only mode):
//   - goals_create: Create a goal, optionally under a parent one tier up
//   - goals_update: Change a goal's progress, title or description
//   - goals_delete: Delete one or more goals; their children are detached
package goal_tools

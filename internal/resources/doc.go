// Package resources exposes read-only MCP resources over the goal store.
//
//   - goals://tiers returns every goal grouped by tier
//   - goals://summary returns per-tier counts and average progress
package resources

// Package driving defines the inbound ports the CLI, MCP server and TUI
// call: ingestion, hybrid search, document reads and settings.
//
// internal/core/services implements every interface here. Adapters depend
// on these interfaces only, so tests can substitute hand-written mocks.
package driving

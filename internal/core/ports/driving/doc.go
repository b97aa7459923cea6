// Package driving declares what the CLI and the MCP server may ask of the
// core: search, chat, settings, catalog builds and housekeeping.
package driving

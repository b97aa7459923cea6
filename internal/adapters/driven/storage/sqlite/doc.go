// Package sqlite stores chat sessions in a single SQLite file using the
// pure-Go modernc.org/sqlite driver, so the binary stays CGO-free.
//
// The schema is created by the numbered migrations/*.up.sql scripts embedded
// in the binary; applied versions are tracked in schema_migrations. The
// database runs in WAL mode with a busy timeout so the CLI and a running
// MCP server can share it.
package sqlite

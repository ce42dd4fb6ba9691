// Package sqlite provides a SQLite-backed implementation of the driven
// MetadataStore and VectorIndex ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. One database file holds both tables:
//
//   - documents: one row per résumé, structured fields as JSON
//   - chunks: passages with their embedding as a little-endian float32 blob
//
// Filters are pushed down with the JSON1 functions and rechecked in Go.
// Vector search is a brute-force cosine scan over the candidate rows.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.cvsearch/data/cvsearch.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. Conditional writes are single
// statements, so they need no application-level locking.
package sqlite

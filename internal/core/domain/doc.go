// Package domain defines the core business entities for cvsearch.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: One ingested résumé and its structured fields
//   - Chunk: An embeddable passage belonging to exactly one document
//   - Filter: Structured predicates over document fields
//   - SearchRequest / SearchResult: Hybrid query input and output
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain

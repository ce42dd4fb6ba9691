// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ingestion coordinator owns consistency between the vector index and
// the metadata store; the hybrid query planner owns retrieval coverage.
// Neither holds a cache of store contents across requests.
package services

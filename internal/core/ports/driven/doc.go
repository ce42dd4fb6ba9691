// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: Turns text into fixed-dimension vectors
//   - VectorIndex: Chunk vectors with payload, filtered similarity search
//   - MetadataStore: One authoritative record per document
//   - ConfigStore: Application configuration
//   - Normaliser: File format to plain text
//   - Metrics: Ingestion and search measurements
//
// The vector index and metadata store are independent services with no
// shared transaction. Consistency between them is owned by the ingestion
// coordinator, not by the adapters.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven

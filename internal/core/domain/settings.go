package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI or any OpenAI-compatible API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector backends.
const (
	VectorBackendMemory   VectorBackend = "memory"
	VectorBackendSQLite   VectorBackend = "sqlite"
	VectorBackendQdrant   VectorBackend = "qdrant"
	VectorBackendPGVector VectorBackend = "pgvector"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendMemory, VectorBackendSQLite, VectorBackendQdrant, VectorBackendPGVector:
		return true
	default:
		return false
	}
}

// MetadataBackend selects the metadata store implementation.
type MetadataBackend string

// Available metadata backends.
const (
	MetadataBackendMemory MetadataBackend = "memory"
	MetadataBackendSQLite MetadataBackend = "sqlite"
	MetadataBackendMongo  MetadataBackend = "mongo"
)

// IsValid returns true if the backend is recognised.
func (b MetadataBackend) IsValid() bool {
	switch b {
	case MetadataBackendMemory, MetadataBackendSQLite, MetadataBackendMongo:
		return true
	default:
		return false
	}
}

// ChunkingSettings configures the chunker. Sizes are in characters.
type ChunkingSettings struct {
	Size    int
	Overlap int
}

// Validate checks the chunker parameters.
func (c ChunkingSettings) Validate() error {
	if c.Size <= 0 || c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: chunk size %d with overlap %d", ErrConfiguration, c.Size, c.Overlap)
	}
	return nil
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint. Empty means the provider default.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the fixed vector size of the index.
	Dimensions int

	// MaxBatch is the maximum number of texts per provider request.
	MaxBatch int

	// RequestsPerSecond limits provider calls. Zero disables limiting.
	RequestsPerSecond float64

	// Timeout bounds a single provider call.
	Timeout time.Duration
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// StorageSettings selects and configures the two stores.
type StorageSettings struct {
	Vector   VectorBackend
	Metadata MetadataBackend

	// DataDir holds the sqlite database.
	DataDir string

	QdrantURL        string
	QdrantCollection string
	PostgresDSN      string
	PostgresTable    string
	MongoURI         string
	MongoDatabase    string
}

// PlannerSettings tunes the hybrid query planner.
type PlannerSettings struct {
	// DefaultLimit applies when a request has no limit.
	DefaultLimit int

	// MaxLimit caps the requested limit unless the filter leaves no more
	// than SelectiveThreshold candidates.
	MaxLimit int

	// SelectiveThreshold is the largest candidate set searched with a
	// document id restriction.
	SelectiveThreshold int

	// OverFetch multiplies the limit for unfiltered searches.
	OverFetch int

	// ExhaustiveThreshold is the largest index scanned in full.
	ExhaustiveThreshold int

	// WidenRounds bounds how often an over-fetch is widened.
	WidenRounds int
}

// IngestSettings tunes ingestion.
type IngestSettings struct {
	// Concurrency bounds parallel documents in a batch.
	Concurrency int

	// Extract fills missing fields from document text.
	Extract bool
}

// TimeoutSettings bounds blocking calls.
type TimeoutSettings struct {
	Query time.Duration
	Write time.Duration
	Read  time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	Chunking  ChunkingSettings
	Embedding EmbeddingSettings
	Storage   StorageSettings
	Planner   PlannerSettings
	Ingest    IngestSettings
	Timeouts  TimeoutSettings

	// SchemaFields extends the default schema with "name:kind" entries.
	SchemaFields []string
}

// Schema returns the effective filter schema.
func (s AppSettings) Schema() (Schema, error) {
	return ParseSchemaEntries(DefaultSchema(), s.SchemaFields)
}

// DefaultAppSettings returns settings with sensible defaults.
// The embedding provider is left unconfigured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunking: ChunkingSettings{Size: 800, Overlap: 200},
		Embedding: EmbeddingSettings{
			MaxBatch: 96,
			Timeout:  30 * time.Second,
		},
		Storage: StorageSettings{
			Vector:           VectorBackendSQLite,
			Metadata:         MetadataBackendSQLite,
			QdrantCollection: "resumes",
			PostgresTable:    "resume_chunks",
			MongoDatabase:    "cvsearch",
		},
		Planner: PlannerSettings{
			DefaultLimit:        10,
			MaxLimit:            100,
			SelectiveThreshold:  500,
			OverFetch:           8,
			ExhaustiveThreshold: 2000,
			WidenRounds:         3,
		},
		Ingest: IngestSettings{
			Concurrency: 4,
			Extract:     true,
		},
		Timeouts: TimeoutSettings{
			Query: 15 * time.Second,
			Write: 30 * time.Second,
			Read:  5 * time.Second,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

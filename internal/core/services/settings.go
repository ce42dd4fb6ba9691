package services

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize    = "chunking.size"
	keyChunkOverlap = "chunking.overlap"

	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDims       = "embedding.dimensions"
	keyEmbedMaxBatch   = "embedding.max_batch"
	keyEmbedRate       = "embedding.requests_per_second"
	keyEmbedTimeout    = "embedding.timeout"
	keyVectorBackend   = "storage.vector"
	keyMetadataBackend = "storage.metadata"
	keyDataDir         = "storage.data_dir"
	keyQdrantURL       = "storage.qdrant_url"
	keyQdrantColl      = "storage.qdrant_collection"
	keyPostgresDSN     = "storage.postgres_dsn"
	keyPostgresTable   = "storage.postgres_table"
	keyMongoURI        = "storage.mongo_uri"
	keyMongoDatabase   = "storage.mongo_database"

	keyDefaultLimit        = "planner.default_limit"
	keyMaxLimit            = "planner.max_limit"
	keySelectiveThreshold  = "planner.selective_threshold"
	keyOverFetch           = "planner.over_fetch"
	keyExhaustiveThreshold = "planner.exhaustive_threshold"
	keyWidenRounds         = "planner.widen_rounds"

	keyIngestConcurrency = "ingest.concurrency"
	keyIngestExtract     = "ingest.extract"

	keyQueryTimeout = "timeouts.query"
	keyWriteTimeout = "timeouts.write"
	keyReadTimeout  = "timeouts.read"

	keySchemaFields = "schema.fields"
)

// Environment variables that override stored configuration.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvQdrantURL   = "CVSEARCH_QDRANT_URL"
	EnvMongoURI    = "CVSEARCH_MONGO_URI"
	EnvPostgresDSN = "CVSEARCH_PG_DSN"
)

type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindBool
	kindFloat
	kindDuration
	kindList
)

var knownKeys = map[string]keyKind{
	keyChunkSize: kindInt, keyChunkOverlap: kindInt,
	keyEmbedProvider: kindString, keyEmbedModel: kindString, keyEmbedBaseURL: kindString,
	keyEmbedAPIKey: kindString, keyEmbedDims: kindInt, keyEmbedMaxBatch: kindInt,
	keyEmbedRate: kindFloat, keyEmbedTimeout: kindDuration,
	keyVectorBackend: kindString, keyMetadataBackend: kindString, keyDataDir: kindString,
	keyQdrantURL: kindString, keyQdrantColl: kindString, keyPostgresDSN: kindString,
	keyPostgresTable: kindString, keyMongoURI: kindString, keyMongoDatabase: kindString,
	keyDefaultLimit: kindInt, keyMaxLimit: kindInt, keySelectiveThreshold: kindInt,
	keyOverFetch: kindInt, keyExhaustiveThreshold: kindInt, keyWidenRounds: kindInt,
	keyIngestConcurrency: kindInt, keyIngestExtract: kindBool,
	keyQueryTimeout: kindDuration, keyWriteTimeout: kindDuration, keyReadTimeout: kindDuration,
	keySchemaFields: kindList,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	getenv      func(string) string
}

// NewSettingsService creates a new settings service. Environment overrides
// are read with os.Getenv.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		getenv:      os.Getenv,
	}
}

// WithEnv replaces the environment lookup, for tests.
func (s *SettingsService) WithEnv(getenv func(string) string) *SettingsService {
	s.getenv = getenv
	return s
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Chunking: domain.ChunkingSettings{
			Size:    s.getInt(keyChunkSize, d.Chunking.Size),
			Overlap: s.getIntAllowZero(keyChunkOverlap, d.Chunking.Overlap),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(d.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL),
			APIKey:            s.override(EnvOpenAIKey, s.configStore.GetString(keyEmbedAPIKey)),
			Dimensions:        s.getInt(keyEmbedDims, d.Embedding.Dimensions),
			MaxBatch:          s.getInt(keyEmbedMaxBatch, d.Embedding.MaxBatch),
			RequestsPerSecond: s.getFloat(keyEmbedRate, d.Embedding.RequestsPerSecond),
			Timeout:           s.getDuration(keyEmbedTimeout, d.Embedding.Timeout),
		},
		Storage: domain.StorageSettings{
			Vector:           domain.VectorBackend(s.getString(keyVectorBackend, string(d.Storage.Vector))),
			Metadata:         domain.MetadataBackend(s.getString(keyMetadataBackend, string(d.Storage.Metadata))),
			DataDir:          s.getString(keyDataDir, d.Storage.DataDir),
			QdrantURL:        s.override(EnvQdrantURL, s.configStore.GetString(keyQdrantURL)),
			QdrantCollection: s.getString(keyQdrantColl, d.Storage.QdrantCollection),
			PostgresDSN:      s.override(EnvPostgresDSN, s.configStore.GetString(keyPostgresDSN)),
			PostgresTable:    s.getString(keyPostgresTable, d.Storage.PostgresTable),
			MongoURI:         s.override(EnvMongoURI, s.configStore.GetString(keyMongoURI)),
			MongoDatabase:    s.getString(keyMongoDatabase, d.Storage.MongoDatabase),
		},
		Planner: domain.PlannerSettings{
			DefaultLimit:        s.getInt(keyDefaultLimit, d.Planner.DefaultLimit),
			MaxLimit:            s.getInt(keyMaxLimit, d.Planner.MaxLimit),
			SelectiveThreshold:  s.getInt(keySelectiveThreshold, d.Planner.SelectiveThreshold),
			OverFetch:           s.getInt(keyOverFetch, d.Planner.OverFetch),
			ExhaustiveThreshold: s.getInt(keyExhaustiveThreshold, d.Planner.ExhaustiveThreshold),
			WidenRounds:         s.getInt(keyWidenRounds, d.Planner.WidenRounds),
		},
		Ingest: domain.IngestSettings{
			Concurrency: s.getInt(keyIngestConcurrency, d.Ingest.Concurrency),
			Extract:     s.getBool(keyIngestExtract, d.Ingest.Extract),
		},
		Timeouts: domain.TimeoutSettings{
			Query: s.getDuration(keyQueryTimeout, d.Timeouts.Query),
			Write: s.getDuration(keyWriteTimeout, d.Timeouts.Write),
			Read:  s.getDuration(keyReadTimeout, d.Timeouts.Read),
		},
		SchemaFields: s.configStore.GetStringSlice(keySchemaFields),
	}

	if settings.Embedding.Dimensions == 0 {
		settings.Embedding.Dimensions = domain.EmbeddingDimensions()[settings.Embedding.Model]
	}

	return settings, nil
}

// Save persists application settings. Secrets supplied through the
// environment are not written back.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedMaxBatch, settings.Embedding.MaxBatch},
		{keyEmbedRate, settings.Embedding.RequestsPerSecond},
		{keyEmbedTimeout, settings.Embedding.Timeout.String()},
		{keyVectorBackend, string(settings.Storage.Vector)},
		{keyMetadataBackend, string(settings.Storage.Metadata)},
		{keyQdrantColl, settings.Storage.QdrantCollection},
		{keyPostgresTable, settings.Storage.PostgresTable},
		{keyMongoDatabase, settings.Storage.MongoDatabase},
		{keyDefaultLimit, settings.Planner.DefaultLimit},
		{keyMaxLimit, settings.Planner.MaxLimit},
		{keySelectiveThreshold, settings.Planner.SelectiveThreshold},
		{keyOverFetch, settings.Planner.OverFetch},
		{keyExhaustiveThreshold, settings.Planner.ExhaustiveThreshold},
		{keyWidenRounds, settings.Planner.WidenRounds},
		{keyIngestConcurrency, settings.Ingest.Concurrency},
		{keyIngestExtract, settings.Ingest.Extract},
		{keyQueryTimeout, settings.Timeouts.Query.String()},
		{keyWriteTimeout, settings.Timeouts.Write.String()},
		{keyReadTimeout, settings.Timeouts.Read.String()},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	optional := []struct {
		key, value, env string
	}{
		{keyEmbedAPIKey, settings.Embedding.APIKey, EnvOpenAIKey},
		{keyDataDir, settings.Storage.DataDir, ""},
		{keyQdrantURL, settings.Storage.QdrantURL, EnvQdrantURL},
		{keyPostgresDSN, settings.Storage.PostgresDSN, EnvPostgresDSN},
		{keyMongoURI, settings.Storage.MongoURI, EnvMongoURI},
	}
	for _, v := range optional {
		if v.value == "" || (v.env != "" && s.getenv(v.env) == v.value) {
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if len(settings.SchemaFields) > 0 {
		if err := s.configStore.Set(keySchemaFields, settings.SchemaFields); err != nil {
			return fmt.Errorf("save %s: %w", keySchemaFields, err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" && s.getenv(EnvOpenAIKey) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	if provider == domain.AIProviderOllama && settings.Embedding.BaseURL == "" {
		settings.Embedding.BaseURL = "http://localhost:11434"
	}

	if apiKey != "" {
		settings.Embedding.APIKey = apiKey
	}

	// Update vector dimensions based on model
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	return s.Save(settings)
}

// SetValue parses value according to the key's type and stores it.
func (s *SettingsService) SetValue(key, value string) error {
	kind, ok := knownKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}

	var parsed any
	var err error
	switch kind {
	case kindInt:
		parsed, err = strconv.Atoi(value)
	case kindBool:
		parsed, err = strconv.ParseBool(value)
	case kindFloat:
		parsed, err = strconv.ParseFloat(value, 64)
	case kindDuration:
		_, err = time.ParseDuration(value)
		parsed = value
	case kindList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		parsed = items
	default:
		parsed = value
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}

	return s.configStore.Set(key, parsed)
}

// GetValue reads a single configuration key.
func (s *SettingsService) GetValue(key string) (any, bool) {
	return s.configStore.Get(key)
}

// Validate checks the current settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if err := settings.Chunking.Validate(); err != nil {
		return err
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider is not configured (cvsearch config set %s openai)",
			domain.ErrConfiguration, keyEmbedProvider)
	}
	if !settings.Storage.Vector.IsValid() {
		return fmt.Errorf("%w: unknown vector backend %q", domain.ErrConfiguration, settings.Storage.Vector)
	}
	if !settings.Storage.Metadata.IsValid() {
		return fmt.Errorf("%w: unknown metadata backend %q", domain.ErrConfiguration, settings.Storage.Metadata)
	}
	switch {
	case settings.Storage.Vector == domain.VectorBackendQdrant && settings.Storage.QdrantURL == "":
		return fmt.Errorf("%w: %s is required for qdrant", domain.ErrConfiguration, keyQdrantURL)
	case settings.Storage.Vector == domain.VectorBackendPGVector && settings.Storage.PostgresDSN == "":
		return fmt.Errorf("%w: %s is required for pgvector", domain.ErrConfiguration, keyPostgresDSN)
	case settings.Storage.Metadata == domain.MetadataBackendMongo && settings.Storage.MongoURI == "":
		return fmt.Errorf("%w: %s is required for mongo", domain.ErrConfiguration, keyMongoURI)
	}
	if _, err := settings.Schema(); err != nil {
		return err
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	raw, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(keyEmbedProvider)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) override(env, val string) string {
	if v := s.getenv(env); v != "" {
		return v
	}
	return val
}

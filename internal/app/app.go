// Package app assembles the core services from settings.
package app

import (
	"context"
	"errors"

	"github.com/custodia-labs/cvsearch/internal/adapters/driven/embedding"
	"github.com/custodia-labs/cvsearch/internal/adapters/driven/storage"
	"github.com/custodia-labs/cvsearch/internal/chunker"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
	"github.com/custodia-labs/cvsearch/internal/core/services"
	"github.com/custodia-labs/cvsearch/internal/extract"
	"github.com/custodia-labs/cvsearch/internal/logger"
	"github.com/custodia-labs/cvsearch/internal/metrics"
)

// App holds the assembled services. Close releases the provider and stores.
type App struct {
	Schema    domain.Schema
	Ingest    *services.IngestionCoordinator
	Search    *services.HybridQueryPlanner
	Documents *services.DocumentService
	Health    *services.HealthService
	Metrics   *metrics.Exporter

	closers []func() error
}

// Open connects to the configured embedding provider and stores and
// assembles the services over them.
func Open(ctx context.Context, settings *domain.AppSettings) (*App, error) {
	provider, err := embedding.CreateAndValidate(ctx, settings.Embedding)
	if err != nil {
		return nil, err
	}

	stores, err := storage.Open(ctx, settings.Storage, provider.Dimensions())
	if err != nil {
		_ = provider.Close()
		return nil, err
	}

	a, err := New(settings, provider, stores.Metadata, stores.Vectors)
	if err != nil {
		_ = stores.Close()
		_ = provider.Close()
		return nil, err
	}
	a.closers = append(a.closers, provider.Close, stores.Close)

	logger.Debug("opened %s vectors, %s metadata, %s embeddings",
		settings.Storage.Vector, settings.Storage.Metadata, provider.ModelName())
	return a, nil
}

// New assembles the services over an existing provider and stores.
func New(
	settings *domain.AppSettings,
	provider driven.EmbeddingService,
	metadata driven.MetadataStore,
	vectors driven.VectorIndex,
) (*App, error) {
	schema, err := settings.Schema()
	if err != nil {
		return nil, err
	}
	ch, err := chunker.New(settings.Chunking.Size, settings.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	exporter := metrics.New(metrics.DefaultConfig())
	limiter := services.NewRateLimiter(services.RateLimitConfig{
		RequestsPerSecond: settings.Embedding.RequestsPerSecond,
	})
	embedder := services.NewEmbedder(provider,
		services.WithMaxBatch(settings.Embedding.MaxBatch),
		services.WithRateLimiter(limiter),
		services.WithEmbedTimeout(settings.Embedding.Timeout),
		services.WithEmbedMetrics(exporter),
	)

	ingestOpts := []services.IngestOption{
		services.WithBatchConcurrency(settings.Ingest.Concurrency),
		services.WithWriteTimeout(settings.Timeouts.Write),
		services.WithIngestMetrics(exporter),
	}
	if settings.Ingest.Extract {
		ingestOpts = append(ingestOpts, services.WithExtractor(extract.Extractor{}.Fields))
	}

	return &App{
		Schema: schema,
		Ingest: services.NewIngestionCoordinator(ch, embedder, vectors, metadata, schema, ingestOpts...),
		Search: services.NewHybridQueryPlanner(embedder, vectors, metadata, schema,
			services.WithPlannerSettings(settings.Planner),
			services.WithQueryTimeout(settings.Timeouts.Query),
			services.WithSearchMetrics(exporter),
		),
		Documents: services.NewDocumentService(metadata, vectors, schema).WithTimeout(settings.Timeouts.Read),
		Health:    services.NewHealthService(metadata, vectors, provider).WithTimeout(settings.Timeouts.Read),
		Metrics:   exporter,
	}, nil
}

// Close releases the provider and stores opened by Open.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

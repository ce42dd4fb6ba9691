package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driving"
	"github.com/custodia-labs/cvsearch/internal/logger"
)

// Ensure HealthService implements the interface.
var _ driving.HealthService = (*HealthService)(nil)

// DefaultHealthTimeout bounds each dependency check.
const DefaultHealthTimeout = 5 * time.Second

// Component names reported by HealthService.
const (
	ComponentMetadata  = "metadata"
	ComponentVectors   = "vectors"
	ComponentEmbedding = "embedding"
)

// HealthService pings the stores and the embedding provider in parallel.
type HealthService struct {
	metadata driven.MetadataStore
	vectors  driven.VectorIndex
	provider driven.EmbeddingService
	timeout  time.Duration
}

// NewHealthService creates a health service.
func NewHealthService(
	metadata driven.MetadataStore,
	vectors driven.VectorIndex,
	provider driven.EmbeddingService,
) *HealthService {
	return &HealthService{
		metadata: metadata,
		vectors:  vectors,
		provider: provider,
		timeout:  DefaultHealthTimeout,
	}
}

// WithTimeout bounds each check. Non-positive values are ignored.
func (h *HealthService) WithTimeout(d time.Duration) *HealthService {
	if d > 0 {
		h.timeout = d
	}
	return h
}

// Check runs every check and reports degraded when any of them fails.
func (h *HealthService) Check(ctx context.Context) (*domain.Health, error) {
	health := &domain.Health{
		Components: []domain.ComponentHealth{
			{Name: ComponentMetadata},
			{Name: ComponentVectors},
			{Name: ComponentEmbedding},
		},
	}

	checks := []func(ctx context.Context) error{
		func(ctx context.Context) (err error) {
			health.Documents, err = h.metadata.Count(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			health.Chunks, err = h.vectors.Count(ctx)
			return err
		},
		h.provider.Ping,
	}

	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			health.Components[i].Err = check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	health.Status = domain.HealthHealthy
	for _, c := range health.Components {
		if !c.OK() {
			health.Status = domain.HealthDegraded
			logger.Warn("health: %s failed: %v", c.Name, c.Err)
		}
	}
	return health, nil
}

package driving

import (
	"context"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// HealthService checks the dependencies the other services rely on.
type HealthService interface {
	// Check pings the metadata store, the vector index and the embedding
	// provider. A failing dependency degrades the report; only caller
	// cancellation is returned as an error.
	Check(ctx context.Context) (*domain.Health, error)
}

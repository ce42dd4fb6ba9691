package driving

import (
	"context"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search ranks documents by similarity to the query, restricted to
	// those matching the filter.
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
}

package driven

import (
	"context"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// MetadataStore persists the authoritative record for each document.
// It is the source of truth for existence and versioning.
//
// Implementations translate provider failures into domain.ErrStoreUnavailable.
type MetadataStore interface {
	// Get retrieves a document by ID.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetMany retrieves the documents that exist among ids, in no
	// particular order. Missing IDs are skipped.
	GetMany(ctx context.Context, ids []string) ([]domain.Document, error)

	// Put writes a document if the stored version equals expectedVersion.
	// An expectedVersion of 0 requires that the document does not exist.
	// Returns domain.ErrVersionConflict otherwise.
	Put(ctx context.Context, doc *domain.Document, expectedVersion int) error

	// Delete removes a document.
	// Returns domain.ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// Find returns the IDs of documents matching every predicate of a
	// normalised filter, sorted ascending. An empty filter matches all.
	Find(ctx context.Context, filter domain.Filter) ([]string, error)

	// Count returns the number of documents.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

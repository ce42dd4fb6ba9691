package driving

import (
	"context"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// DocumentService exposes read access to ingested documents.
type DocumentService interface {
	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// List returns the documents matching the filter, ordered by ID.
	List(ctx context.Context, filter domain.Filter) ([]domain.Document, error)

	// Chunks returns the stored chunks of a document.
	Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetContent returns the concatenated text of a document's chunks.
	GetContent(ctx context.Context, documentID string) (string, error)

	// Stats summarises the corpus.
	Stats(ctx context.Context) (*domain.Stats, error)

	// Open opens the document's source in the default application.
	Open(ctx context.Context, documentID string) error
}

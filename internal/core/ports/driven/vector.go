package driven

import (
	"context"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// VectorIndex stores chunk vectors with their payload and answers
// similarity queries. It knows nothing about documents beyond the
// document_id carried in each chunk's payload.
//
// Implementations translate provider failures into domain.ErrStoreUnavailable.
type VectorIndex interface {
	// UpsertChunks writes chunks, replacing any with the same chunk ID.
	UpsertChunks(ctx context.Context, chunks []domain.Chunk) error

	// DeleteByDocumentID removes every chunk whose payload carries the
	// document ID. Deleting an absent ID is not an error.
	DeleteByDocumentID(ctx context.Context, documentID string) error

	// Search returns up to k chunks ordered by cosine similarity, highest
	// first. A non-nil filter restricts the search to its documents.
	Search(ctx context.Context, query []float32, k int, filter *VectorFilter) ([]VectorHit, error)

	// ListChunks returns every chunk of a document ordered by sequence.
	// Vectors may be omitted.
	ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DocumentIDs returns the distinct document IDs present in the index.
	DocumentIDs(ctx context.Context) ([]string, error)

	// Count returns the total number of chunks.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// VectorFilter restricts a similarity search.
type VectorFilter struct {
	// DocumentIDs limits hits to chunks of these documents. An empty,
	// non-nil filter matches nothing.
	DocumentIDs []string
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Chunk is the matched chunk payload. Vector may be nil.
	Chunk domain.Chunk

	// Score is the cosine similarity.
	Score float64
}

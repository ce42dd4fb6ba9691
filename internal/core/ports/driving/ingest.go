package driving

import (
	"context"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// IngestionService keeps the vector index and metadata store consistent
// while documents are added, replaced and removed.
type IngestionService interface {
	// Ingest chunks, embeds and stores one document, replacing any
	// previous version. Failures are returned as *domain.StageError.
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error)

	// IngestBatch ingests documents independently. One failure never
	// aborts the others; results are in input order.
	IngestBatch(ctx context.Context, reqs []domain.IngestRequest) []domain.IngestResult

	// Delete removes a document's chunks and then its record.
	// Returns domain.ErrNotFound if the document was unknown.
	Delete(ctx context.Context, documentID string) error

	// Audit compares both stores and reports orphans and inconsistencies.
	Audit(ctx context.Context) (*domain.AuditReport, error)

	// Repair deletes orphans and re-ingests inconsistent documents.
	Repair(ctx context.Context, report *domain.AuditReport) (*domain.RepairResult, error)
}

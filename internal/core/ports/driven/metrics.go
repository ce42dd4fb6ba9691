package driven

import (
	"time"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// Metrics receives operational measurements from core services.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// ObserveIngest records the outcome of one document ingestion.
	// Stage is empty on success.
	ObserveIngest(created bool, failedStage domain.Stage)

	// ObserveStage records how long an ingestion stage took.
	ObserveStage(stage domain.Stage, d time.Duration)

	// ObserveSearch records the chosen plan, candidate set size and latency.
	// Candidates is -1 when no filter applied.
	ObserveSearch(plan domain.Plan, candidates int, d time.Duration)

	// ObserveInconsistency records a detected consistency violation.
	ObserveInconsistency(reason string)

	// ObserveRetry records a retried call against a provider.
	ObserveRetry(operation string)
}

package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// Adapters translate provider-specific failures into these sentinels.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates invalid component configuration.
	// It is fatal: the caller must fix the configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmbeddingUnavailable indicates the embedding provider failed
	// (transport, quota, malformed response). Retryable with backoff.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrStoreUnavailable indicates a backing store could not be reached.
	// Retryable for reads; writes are retried within a budget.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrBadQuery indicates caller misuse of the search API,
	// such as an empty query with no filters.
	ErrBadQuery = errors.New("bad query")

	// ErrUnknownFilterField indicates a filter predicate names a field
	// that is not part of the schema.
	ErrUnknownFilterField = errors.New("unknown filter field")

	// ErrInconsistentState indicates the metadata store and vector index
	// disagree about a document.
	ErrInconsistentState = errors.New("inconsistent state")

	// ErrVersionConflict indicates a conditional metadata write lost a race
	// against another writer.
	ErrVersionConflict = errors.New("version conflict")
)

// IsRetryable reports whether err is worth retrying with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) || errors.Is(err, ErrStoreUnavailable)
}

// Stage names one step of the ingestion protocol.
type Stage string

// Ingestion stages, in protocol order.
const (
	StageValidate      Stage = "validate"
	StageChunk         Stage = "chunk"
	StageEmbed         Stage = "embed"
	StageRead          Stage = "read"
	StageDeleteChunks  Stage = "delete_chunks"
	StageWriteChunks   Stage = "write_chunks"
	StageWriteMetadata Stage = "write_metadata"
)

// Mutating reports whether a failure at this stage may leave the stores
// transiently inconsistent (old chunks may already be gone).
func (s Stage) Mutating() bool {
	return s == StageDeleteChunks || s == StageWriteChunks || s == StageWriteMetadata
}

// StageError carries enough context for an operator to diagnose and
// safely retry a failed ingestion or delete.
type StageError struct {
	DocumentID string
	Stage      Stage
	Err        error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("document %s: %s: %v", e.DocumentID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

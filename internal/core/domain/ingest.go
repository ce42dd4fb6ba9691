package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// IngestRequest delivers one document to the ingestion coordinator.
type IngestRequest struct {
	// IDHint is an externally supplied stable key. When empty the id is
	// derived from Text.
	IDHint string

	// Text is the extracted document text.
	Text string

	// Fields are the structured attributes known up front.
	Fields Fields

	// Source describes where the text came from, e.g. a file path.
	Source string

	// NoExtract disables filling missing fields from Text.
	NoExtract bool
}

// Validate rejects text that is not UTF-8 and requests with neither text
// nor an id hint, which would all collapse onto one content-derived id.
func (r IngestRequest) Validate() error {
	if !utf8.ValidString(r.Text) {
		return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.IDHint) == "" {
		return fmt.Errorf("%w: empty text requires an id hint", ErrInvalidInput)
	}
	return nil
}

// IngestResult is the outcome of ingesting one document.
type IngestResult struct {
	DocumentID string
	Version    int
	Chunks     int

	// Created is true when the document did not exist before.
	Created bool

	// Err is set when ingestion failed. It wraps a *StageError.
	Err error
}

// OK returns true if the ingestion succeeded.
func (r IngestResult) OK() bool {
	return r.Err == nil
}

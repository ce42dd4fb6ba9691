package driven

import "context"

// Normaliser converts a résumé file in one format to plain text.
type Normaliser interface {
	// Extensions returns the lower-case file extensions handled, with the
	// leading dot.
	Extensions() []string

	// Normalise extracts the text of data. Malformed input fails with
	// domain.ErrInvalidInput.
	Normalise(ctx context.Context, data []byte) (string, error)
}

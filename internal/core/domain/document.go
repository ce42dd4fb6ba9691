package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Document is the authoritative metadata record for one ingested résumé.
// The metadata store holds exactly one Document per ID.
type Document struct {
	// ID is the stable identifier. It is either supplied by the caller
	// or derived from the document text, never random.
	ID string

	// Version is bumped on every successful upsert, starting at 1.
	Version int

	// Fields holds the structured attributes (skills, years_experience, ...).
	Fields Fields

	// Text is the full extracted text. It is kept so the document can be
	// re-ingested when its chunks are found missing.
	Text string

	// Source is a free-form origin label (file name, upload key).
	Source string

	// ChunkCount is the number of chunks written for the current version.
	ChunkCount int

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the current version was written.
	UpdatedAt time.Time
}

// Chunk is one embeddable passage of a document, stored in the vector index.
// The vector index knows nothing about Document beyond DocumentID.
type Chunk struct {
	// ID is unique within the vector index.
	ID string

	// DocumentID is a back-reference to the owning document.
	DocumentID string

	// Version is the document version this chunk was written for.
	Version int

	// Text is the passage content, kept for highlighting.
	Text string

	// Sequence is the position within the document, starting at 0.
	Sequence int

	// Vector is the embedding of Text.
	Vector []float32

	// Fields is a copy of the document's structured fields at write time.
	Fields Fields
}

// documentIDLength is the number of hex characters kept from the content hash.
const documentIDLength = 32

// DocumentIDFromText derives a deterministic document ID from text.
// Whitespace runs are collapsed first so re-extraction of the same file
// with different line wrapping maps to the same ID.
func DocumentIDFromText(text string) string {
	normalised := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(normalised))
	return hex.EncodeToString(sum[:])[:documentIDLength]
}

// ResolveDocumentID returns the trimmed hint when present, otherwise the
// content-derived ID.
func ResolveDocumentID(hint, text string) string {
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	return DocumentIDFromText(text)
}

// HasText reports whether the document carries any non-whitespace text.
func (d *Document) HasText() bool {
	return strings.TrimSpace(d.Text) != ""
}

// Package chunker splits document text into overlapping fixed-size passages.
package chunker

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 800

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Piece is one passage of the input text.
type Piece struct {
	// Sequence is the position of the passage, starting at 0.
	Sequence int

	// Start is the offset of the first character, in runes.
	Start int

	// Text is the passage content.
	Text string
}

// Chunker splits text into fixed-size windows that overlap by a fixed
// number of characters. Sizes count runes, not bytes.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. It fails with domain.ErrConfiguration when size is
// not positive, overlap is negative, or overlap >= size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfiguration, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrConfiguration, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than size %d", domain.ErrConfiguration, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Default creates a chunker with DefaultChunkSize and DefaultChunkOverlap.
func Default() *Chunker {
	return &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
}

// Size returns the chunk size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts text into ordered pieces. Whitespace-only input yields none.
//
// Windows advance by size-overlap and stop once a window reaches the end of
// the text. Windows holding only whitespace are dropped and sequence numbers
// stay contiguous over the rest, so adjacent kept windows share exactly
// overlap characters and every other character is covered by some piece.
func (c *Chunker) Split(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	stride := c.size - c.overlap

	pieces := make([]Piece, 0, n/stride+1)
	for start := 0; ; start += stride {
		end := start + c.size
		if end > n {
			end = n
		}
		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			pieces = append(pieces, Piece{
				Sequence: len(pieces),
				Start:    start,
				Text:     window,
			})
		}
		if end == n {
			break
		}
	}

	return pieces
}

// Join reassembles split text from piece offsets. A gap left by dropped
// whitespace windows is written as a single space.
func (c *Chunker) Join(pieces []Piece) string {
	var b strings.Builder
	cursor := 0
	for _, p := range pieces {
		r := []rune(p.Text)
		switch {
		case p.Start > cursor:
			if cursor > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(p.Text)
		case p.Start+len(r) > cursor:
			b.WriteString(string(r[cursor-p.Start:]))
		}
		cursor = max(cursor, p.Start+len(r))
	}
	return b.String()
}

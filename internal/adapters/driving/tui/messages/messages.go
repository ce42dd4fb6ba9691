// Package messages defines the Bubbletea messages passed between the TUI
// views.
package messages

import (
	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// ViewType identifies the active view.
type ViewType int

const (
	ViewSearch ViewType = iota
	ViewDocContent
	ViewDocDetails
)

func (v ViewType) String() string {
	switch v {
	case ViewSearch:
		return "search"
	case ViewDocContent:
		return "doc_content"
	case ViewDocDetails:
		return "doc_details"
	default:
		return "unknown"
	}
}

// ViewChanged switches the active view.
type ViewChanged struct {
	View ViewType
}

// SearchCompleted carries a search response back to the search view.
// Parsed describes the filters derived from a natural-language query.
type SearchCompleted struct {
	Query    string
	Parsed   string
	Response *domain.SearchResponse
	Err      error
}

// DocumentSelected opens a document's content.
type DocumentSelected struct {
	Document domain.Document
}

// DetailsSelected opens a document's details.
type DetailsSelected struct {
	Document domain.Document
}

// DocumentContentLoaded carries a document's stored text.
type DocumentContentLoaded struct {
	DocumentID string
	Content    string
	Err        error
}

// DocumentOpened reports the outcome of opening a document's source.
type DocumentOpened struct {
	DocumentID string
	Err        error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

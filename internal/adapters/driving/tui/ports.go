// Package tui provides an interactive terminal interface for searching
// résumés. It is a driving adapter over the core search and document
// services.
package tui

import (
	"github.com/custodia-labs/cvsearch/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI uses.
type Ports struct {
	// Search runs hybrid searches. Required.
	Search driving.SearchService

	// Documents reads stored résumés and opens their sources. Without it
	// the content view and open action report an error.
	Documents driving.DocumentService
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}

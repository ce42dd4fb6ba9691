package mcp

import (
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// Search answers hybrid queries. Required.
	Search driving.SearchService

	// Documents reads stored résumés. Optional; without it the document
	// tools and resources are not registered.
	Documents driving.DocumentService

	// Ingest adds résumés. Optional; without it the server is read-only.
	Ingest driving.IngestionService

	// Schema is used to parse filter expressions. Defaults to
	// domain.DefaultSchema.
	Schema domain.Schema
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}

package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/queryparser"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query         string   `json:"query,omitempty" jsonschema:"free-text description of the candidate, may be empty when filters are given"`
	Filters       []string `json:"filters,omitempty" jsonschema:"structured filters as field=op:value, e.g. skills=all:go,kubernetes or years_experience=gte:5"`
	Natural       bool     `json:"natural,omitempty" jsonschema:"derive skill and experience filters from the query text"`
	MatchLocation bool     `json:"match_location,omitempty" jsonschema:"with natural, also filter on locations named in the query"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum number of results to return"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Plan       string               `json:"plan"`
	Candidates int                  `json:"candidates"`
	Count      int                  `json:"count"`
	Results    []SearchResultOutput `json:"results"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID string         `json:"document_id"`
	Name       string         `json:"name,omitempty"`
	Score      float64        `json:"score"`
	Highlight  string         `json:"highlight,omitempty"`
	Source     string         `json:"source,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// GetResumeInput is the input schema for the get_resume tool.
type GetResumeInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document ID returned by search"`
}

// GetResumeOutput is the output schema for the get_resume tool.
type GetResumeOutput struct {
	DocumentID string         `json:"document_id"`
	Version    int            `json:"version"`
	Chunks     int            `json:"chunks"`
	Source     string         `json:"source,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	Text       string         `json:"text"`
}

// IngestInput is the input schema for the ingest_resume tool.
type IngestInput struct {
	Text      string         `json:"text" jsonschema:"the plain text of the résumé"`
	ID        string         `json:"id,omitempty" jsonschema:"document ID; derived from the text when empty"`
	Fields    map[string]any `json:"fields,omitempty" jsonschema:"structured fields such as name, skills, years_experience, location"`
	NoExtract bool           `json:"no_extract,omitempty" jsonschema:"do not extract fields from the text"`
}

// IngestOutput is the output schema for the ingest_resume tool.
type IngestOutput struct {
	DocumentID string `json:"document_id"`
	Version    int    `json:"version"`
	Chunks     int    `json:"chunks"`
	Created    bool   `json:"created"`
}

// StatsInput is the empty input of the corpus_stats tool.
type StatsInput struct{}

// StatsOutput is the output schema for the corpus_stats tool.
type StatsOutput struct {
	Documents int     `json:"documents"`
	Chunks    int     `json:"chunks"`
	WithYears int     `json:"with_years_experience"`
	AvgYears  float64 `json:"avg_years_experience"`
	MinYears  float64 `json:"min_years_experience"`
	MaxYears  float64 `json:"max_years_experience"`
}

// registerTools registers the tool handlers the configured ports support.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "search_resumes",
		Description: "Search indexed résumés. Filters select the candidates and semantic " +
			"similarity to the query ranks them; every candidate matching the filters is eligible.",
	}, s.handleSearch)

	if s.ports.Documents != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "get_resume",
			Description: "Read one résumé with its structured fields",
		}, s.handleGetResume)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "corpus_stats",
			Description: "Count indexed résumés and summarise their experience",
		}, s.handleStats)
	}

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_resume",
			Description: "Add or replace a résumé",
		}, s.handleIngest)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	filter := make(domain.Filter, 0, len(input.Filters))
	for _, spec := range input.Filters {
		p, err := domain.ParsePredicate(s.schema, spec)
		if err != nil {
			return nil, SearchOutput{}, err
		}
		filter = append(filter, p)
	}
	if input.Natural {
		filter = append(filter, queryparser.Parse(input.Query).Filter(input.MatchLocation)...)
	}

	resp, err := s.ports.Search.Search(ctx, domain.SearchRequest{
		Query:  input.Query,
		Filter: filter,
		Limit:  input.Limit,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Plan:       resp.Plan.String(),
		Candidates: resp.Candidates,
		Count:      len(resp.Results),
		Results:    make([]SearchResultOutput, len(resp.Results)),
	}
	for i := range resp.Results {
		r := resp.Results[i]
		name, _ := r.Document.Fields.String(domain.FieldName)
		output.Results[i] = SearchResultOutput{
			DocumentID: r.Document.ID,
			Name:       name,
			Score:      r.Score,
			Highlight:  r.Highlight,
			Source:     r.Document.Source,
			Fields:     r.Document.Fields,
		}
	}

	return nil, output, nil
}

func (s *Server) handleGetResume(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetResumeInput,
) (*mcp.CallToolResult, GetResumeOutput, error) {
	doc, err := s.ports.Documents.Get(ctx, input.DocumentID)
	if err != nil {
		return nil, GetResumeOutput{}, err
	}

	text := doc.Text
	if text == "" {
		if text, err = s.ports.Documents.GetContent(ctx, doc.ID); err != nil {
			return nil, GetResumeOutput{}, err
		}
	}

	return nil, GetResumeOutput{
		DocumentID: doc.ID,
		Version:    doc.Version,
		Chunks:     doc.ChunkCount,
		Source:     doc.Source,
		Fields:     doc.Fields,
		Text:       text,
	}, nil
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	res, err := s.ports.Ingest.Ingest(ctx, domain.IngestRequest{
		IDHint:    input.ID,
		Text:      input.Text,
		Fields:    domain.Fields(input.Fields),
		NoExtract: input.NoExtract,
	})
	if err != nil {
		return nil, IngestOutput{}, fmt.Errorf("ingest: %w", err)
	}

	return nil, IngestOutput{
		DocumentID: res.DocumentID,
		Version:    res.Version,
		Chunks:     res.Chunks,
		Created:    res.Created,
	}, nil
}

func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.ports.Documents.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput{
		Documents: stats.Documents,
		Chunks:    stats.Chunks,
		WithYears: stats.WithYears,
		AvgYears:  stats.AvgYears,
		MinYears:  stats.MinYears,
		MaxYears:  stats.MaxYears,
	}, nil
}

package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearchService{resp: &domain.SearchResponse{
			Plan:       domain.PlanFilterThenSearch,
			Candidates: 3,
			Results: []domain.SearchResult{{
				Document: domain.Document{
					ID:     "alice",
					Source: "/cv/alice.md",
					Fields: domain.Fields{domain.FieldName: "Alice", domain.FieldSkills: []string{"go"}},
				},
				Score:     0.95,
				Highlight: "Senior Go engineer",
			}},
		}}

		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{
			Query:   "backend",
			Filters: []string{"skills=go", "years_experience=gte:5"},
			Limit:   5,
		})
		require.NoError(t, err)

		assert.Equal(t, "filter_then_search", output.Plan)
		assert.Equal(t, 3, output.Candidates)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "alice", output.Results[0].DocumentID)
		assert.Equal(t, "Alice", output.Results[0].Name)
		assert.Equal(t, 0.95, output.Results[0].Score)
		assert.Equal(t, "Senior Go engineer", output.Results[0].Highlight)
		assert.Equal(t, "/cv/alice.md", output.Results[0].Source)

		req := mockSearch.last
		assert.Equal(t, "backend", req.Query)
		assert.Equal(t, 5, req.Limit)
		require.Len(t, req.Filter, 2)
		assert.Equal(t, domain.OpContains, req.Filter[0].Op)
		assert.Equal(t, domain.OpGte, req.Filter[1].Op)
	})

	t.Run("natural language filters", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{
			Query:   "python developer with at least 5 years",
			Natural: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)

		fields := make([]string, 0, len(mockSearch.last.Filter))
		for _, p := range mockSearch.last.Filter {
			fields = append(fields, p.Field)
		}
		assert.Equal(t, []string{domain.FieldSkills, domain.FieldYearsExperience}, fields)
	})

	t.Run("bad filter", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Filters: []string{"skills"}})
		assert.ErrorIs(t, err, domain.ErrBadQuery)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{err: errors.New("search failed")}})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleGetResume(t *testing.T) {
	ctx := context.Background()

	t.Run("uses stored text", func(t *testing.T) {
		docs := &mockDocumentService{document: &domain.Document{
			ID: "alice", Version: 2, ChunkCount: 3, Text: "Alice Example",
			Fields: domain.Fields{domain.FieldName: "Alice"},
		}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Documents: docs})
		require.NoError(t, err)

		_, out, err := server.handleGetResume(ctx, nil, GetResumeInput{DocumentID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "alice", out.DocumentID)
		assert.Equal(t, 2, out.Version)
		assert.Equal(t, 3, out.Chunks)
		assert.Equal(t, "Alice Example", out.Text)
		assert.Equal(t, "Alice", out.Fields[domain.FieldName])
	})

	t.Run("falls back to chunk content", func(t *testing.T) {
		docs := &mockDocumentService{document: &domain.Document{ID: "bob"}, content: "from chunks"}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Documents: docs})
		require.NoError(t, err)

		_, out, err := server.handleGetResume(ctx, nil, GetResumeInput{DocumentID: "bob"})
		require.NoError(t, err)
		assert.Equal(t, "from chunks", out.Text)
	})

	t.Run("not found", func(t *testing.T) {
		docs := &mockDocumentService{err: domain.ErrNotFound}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Documents: docs})
		require.NoError(t, err)

		_, _, err = server.handleGetResume(ctx, nil, GetResumeInput{DocumentID: "carol"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()
	ingest := &mockIngestionService{result: &domain.IngestResult{
		DocumentID: "alice", Version: 1, Chunks: 2, Created: true,
	}}
	server, err := NewServer(&Ports{Search: &mockSearchService{}, Ingest: ingest})
	require.NoError(t, err)

	_, out, err := server.handleIngest(ctx, nil, IngestInput{
		Text:   "Alice Example",
		ID:     "alice",
		Fields: map[string]any{"skills": []any{"Go"}, "years_experience": 7.0},
	})
	require.NoError(t, err)
	assert.Equal(t, IngestOutput{DocumentID: "alice", Version: 1, Chunks: 2, Created: true}, out)
	assert.Equal(t, "alice", ingest.last.IDHint)
	assert.Equal(t, 7.0, ingest.last.Fields["years_experience"])

	ingest.err = domain.ErrInvalidInput
	_, _, err = server.handleIngest(ctx, nil, IngestInput{Text: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestServer_handleStats(t *testing.T) {
	docs := &mockDocumentService{stats: &domain.Stats{
		Documents: 2, Chunks: 5, WithYears: 2, AvgYears: 5.5, MinYears: 3, MaxYears: 8,
	}}
	server, err := NewServer(&Ports{Search: &mockSearchService{}, Documents: docs})
	require.NoError(t, err)

	_, out, err := server.handleStats(context.Background(), nil, StatsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Documents)
	assert.Equal(t, 5, out.Chunks)
	assert.Equal(t, 5.5, out.AvgYears)
	assert.Equal(t, 8.0, out.MaxYears)
}

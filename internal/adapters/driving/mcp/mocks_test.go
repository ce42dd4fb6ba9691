package mcp

import (
	"context"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	resp *domain.SearchResponse
	err  error
	last domain.SearchRequest
}

func (m *mockSearchService) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	if m.resp == nil {
		return &domain.SearchResponse{Plan: domain.PlanSearchOnly}, nil
	}
	return m.resp, nil
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	content   string
	stats     *domain.Stats
	err       error
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) List(_ context.Context, _ domain.Filter) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Chunks(_ context.Context, _ string) ([]domain.Chunk, error) {
	return nil, m.err
}

func (m *mockDocumentService) GetContent(_ context.Context, _ string) (string, error) {
	return m.content, m.err
}

func (m *mockDocumentService) Stats(_ context.Context) (*domain.Stats, error) {
	return m.stats, m.err
}

func (m *mockDocumentService) Open(_ context.Context, _ string) error {
	return m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	result *domain.IngestResult
	err    error
	last   domain.IngestRequest
}

func (m *mockIngestionService) Ingest(_ context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	m.last = req
	return m.result, m.err
}

func (m *mockIngestionService) IngestBatch(_ context.Context, _ []domain.IngestRequest) []domain.IngestResult {
	return nil
}

func (m *mockIngestionService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockIngestionService) Audit(_ context.Context) (*domain.AuditReport, error) {
	return nil, m.err
}

func (m *mockIngestionService) Repair(_ context.Context, _ *domain.AuditReport) (*domain.RepairResult, error) {
	return nil, m.err
}

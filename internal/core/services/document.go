package services

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// statsBatch bounds how many records Stats loads at once.
const statsBatch = 500

// DocumentService gives read access to ingested documents.
type DocumentService struct {
	metadata driven.MetadataStore
	vectors  driven.VectorIndex
	schema   domain.Schema
	policy   RetryPolicy
	timeout  time.Duration

	// open launches the platform handler for a path or URL.
	open func(target string) error
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	metadata driven.MetadataStore,
	vectors driven.VectorIndex,
	schema domain.Schema,
) *DocumentService {
	return &DocumentService{
		metadata: metadata,
		vectors:  vectors,
		schema:   schema,
		policy:   ReadRetryPolicy,
		timeout:  DefaultQueryTimeout,
		open:     openURL,
	}
}

// WithTimeout bounds each read. Non-positive values are ignored.
func (s *DocumentService) WithTimeout(d time.Duration) *DocumentService {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc *domain.Document
	err := retry(ctx, s.policy, "get", nil, func(ctx context.Context) error {
		var err error
		doc, err = s.metadata.Get(ctx, documentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns the documents matching the filter, ordered by ID.
func (s *DocumentService) List(ctx context.Context, filter domain.Filter) ([]domain.Document, error) {
	filter, err := filter.Normalise(s.schema)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var ids []string
	err = retry(ctx, s.policy, "find", nil, func(ctx context.Context) error {
		var err error
		ids, err = s.metadata.Find(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve filter: %w", err)
	}

	docs, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Chunks returns the stored chunks of a document ordered by sequence.
func (s *DocumentService) Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	if _, err := s.Get(ctx, documentID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var chunks []domain.Chunk
	err := retry(ctx, s.policy, "list chunks", nil, func(ctx context.Context) error {
		var err error
		chunks, err = s.vectors.ListChunks(ctx, documentID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return chunks, nil
}

// GetContent returns the concatenated text of a document's chunks, which
// is what the index actually holds for it.
func (s *DocumentService) GetContent(ctx context.Context, documentID string) (string, error) {
	chunks, err := s.Chunks(ctx, documentID)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(chunk.Text)
	}
	return builder.String(), nil
}

// Stats summarises the corpus.
func (s *DocumentService) Stats(ctx context.Context) (*domain.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var ids []string
	err := retry(ctx, s.policy, "find", nil, func(ctx context.Context) error {
		var err error
		ids, err = s.metadata.Find(ctx, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	stats := &domain.Stats{Documents: len(ids)}
	err = retry(ctx, s.policy, "count chunks", nil, func(ctx context.Context) error {
		var err error
		stats.Chunks, err = s.vectors.Count(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}

	total := 0.0
	stats.MinYears = math.Inf(1)
	stats.MaxYears = math.Inf(-1)
	for start := 0; start < len(ids); start += statsBatch {
		end := min(start+statsBatch, len(ids))
		docs, err := s.load(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		for i := range docs {
			years, ok := docs[i].Fields.Number(domain.FieldYearsExperience)
			if !ok {
				continue
			}
			stats.WithYears++
			total += years
			stats.MinYears = math.Min(stats.MinYears, years)
			stats.MaxYears = math.Max(stats.MaxYears, years)
		}
	}

	if stats.WithYears == 0 {
		stats.MinYears, stats.MaxYears = 0, 0
		return stats, nil
	}
	stats.AvgYears = total / float64(stats.WithYears)
	return stats, nil
}

// Open opens the document's source in the default application.
func (s *DocumentService) Open(ctx context.Context, documentID string) error {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(doc.Source) == "" {
		return fmt.Errorf("%w: document %s has no source", domain.ErrInvalidInput, documentID)
	}
	return s.open(convertToOpenableURL(doc.Source))
}

func (s *DocumentService) load(ctx context.Context, ids []string) ([]domain.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var docs []domain.Document
	err := retry(ctx, s.policy, "get many", nil, func(ctx context.Context) error {
		var err error
		docs, err = s.metadata.GetMany(ctx, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return docs, nil
}

// openURL opens a URL/path using the system default handler.
func openURL(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// convertToOpenableURL strips file:// so local paths open directly.
// HTTP URLs and plain paths pass through.
func convertToOpenableURL(uri string) string {
	if strings.HasPrefix(uri, "file://") {
		return strings.TrimPrefix(uri, "file://")
	}
	return uri
}

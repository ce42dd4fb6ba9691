package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore is an in-memory implementation of driven.MetadataStore.
// Find scans every record.
type MetadataStore struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		docs: make(map[string]domain.Document),
	}
}

// Get retrieves a document by ID.
func (s *MetadataStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyDocument(doc)
	return &out, nil
}

// GetMany retrieves the documents that exist among ids.
func (s *MetadataStore) GetMany(ctx context.Context, ids []string) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Document, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if doc, ok := s.docs[id]; ok {
			out = append(out, copyDocument(doc))
		}
	}
	return out, nil
}

// Put writes a document if the stored version equals expectedVersion.
func (s *MetadataStore) Put(ctx context.Context, doc *domain.Document, expectedVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.docs[doc.ID]
	switch {
	case !exists && expectedVersion != 0:
		return fmt.Errorf("%w: %s does not exist, expected version %d", domain.ErrVersionConflict, doc.ID, expectedVersion)
	case exists && current.Version != expectedVersion:
		return fmt.Errorf("%w: %s is at version %d, expected %d", domain.ErrVersionConflict, doc.ID, current.Version, expectedVersion)
	}

	s.docs[doc.ID] = copyDocument(*doc)
	return nil
}

// Delete removes a document.
func (s *MetadataStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

// Find returns the sorted IDs of documents matching the filter.
func (s *MetadataStore) Find(ctx context.Context, filter domain.Filter) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for id, doc := range s.docs {
		if filter.Matches(id, doc.Fields) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of documents.
func (s *MetadataStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Close is a no-op.
func (s *MetadataStore) Close() error {
	return nil
}

func copyDocument(doc domain.Document) domain.Document {
	doc.Fields = doc.Fields.Clone()
	return doc
}

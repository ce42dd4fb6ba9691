package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/cvsearch/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

type storedChunk struct {
	chunk     domain.Chunk
	magnitude float32
}

// VectorIndex is an in-memory brute-force cosine index.
type VectorIndex struct {
	mu     sync.RWMutex
	chunks map[string]storedChunk
	byDoc  map[string]map[string]bool
}

// NewVectorIndex creates an empty index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		chunks: make(map[string]storedChunk),
		byDoc:  make(map[string]map[string]bool),
	}
}

// UpsertChunks writes chunks, replacing any with the same ID.
func (v *VectorIndex) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, c := range chunks {
		if old, ok := v.chunks[c.ID]; ok {
			v.unlink(old.chunk)
		}
		c.Fields = c.Fields.Clone()
		c.Vector = append([]float32(nil), c.Vector...)
		v.chunks[c.ID] = storedChunk{chunk: c, magnitude: vecmath.Magnitude(c.Vector)}
		if v.byDoc[c.DocumentID] == nil {
			v.byDoc[c.DocumentID] = make(map[string]bool)
		}
		v.byDoc[c.DocumentID][c.ID] = true
	}
	return nil
}

func (v *VectorIndex) unlink(c domain.Chunk) {
	ids := v.byDoc[c.DocumentID]
	delete(ids, c.ID)
	if len(ids) == 0 {
		delete(v.byDoc, c.DocumentID)
	}
}

// DeleteByDocumentID removes every chunk of a document.
func (v *VectorIndex) DeleteByDocumentID(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	for id := range v.byDoc[documentID] {
		delete(v.chunks, id)
	}
	delete(v.byDoc, documentID)
	return nil
}

// Search returns up to k chunks by cosine similarity.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int, filter *driven.VectorFilter) ([]driven.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	qmag := vecmath.Magnitude(query)
	var hits []driven.VectorHit
	score := func(s storedChunk) {
		hits = append(hits, driven.VectorHit{
			Chunk: s.chunk,
			Score: vecmath.Cosine(query, s.chunk.Vector, qmag, s.magnitude),
		})
	}

	if filter != nil {
		for _, docID := range filter.DocumentIDs {
			for id := range v.byDoc[docID] {
				score(v.chunks[id])
			}
		}
	} else {
		for _, s := range v.chunks {
			score(s)
		}
	}

	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Chunk.Fields = hits[i].Chunk.Fields.Clone()
	}
	return hits, nil
}

// sortHits orders by score descending with a deterministic tie-break.
func sortHits(hits []driven.VectorHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Chunk.DocumentID != hits[j].Chunk.DocumentID {
			return hits[i].Chunk.DocumentID < hits[j].Chunk.DocumentID
		}
		return hits[i].Chunk.Sequence < hits[j].Chunk.Sequence
	})
}

// ListChunks returns a document's chunks ordered by sequence.
func (v *VectorIndex) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]domain.Chunk, 0, len(v.byDoc[documentID]))
	for id := range v.byDoc[documentID] {
		c := v.chunks[id].chunk
		c.Fields = c.Fields.Clone()
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DocumentIDs returns the distinct document IDs in the index.
func (v *VectorIndex) DocumentIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	ids := make([]string, 0, len(v.byDoc))
	for id := range v.byDoc {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of chunks.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.chunks), nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error {
	return nil
}

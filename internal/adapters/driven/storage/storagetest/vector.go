package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// VectorFactory returns a fresh, empty index for 3-dimensional vectors.
type VectorFactory func(t *testing.T) driven.VectorIndex

// Chunk builds a test chunk. IDs must be UUIDs for some backends.
func Chunk(id, docID string, version, seq int, vec ...float32) domain.Chunk {
	return domain.Chunk{
		ID:         id,
		DocumentID: docID,
		Version:    version,
		Text:       docID + " passage",
		Sequence:   seq,
		Vector:     vec,
		Fields:     domain.Fields{domain.FieldSkills: []string{"python"}},
	}
}

// Fixed chunk IDs in UUID form.
const (
	ID1 = "00000000-0000-4000-8000-000000000001"
	ID2 = "00000000-0000-4000-8000-000000000002"
	ID3 = "00000000-0000-4000-8000-000000000003"
	ID4 = "00000000-0000-4000-8000-000000000004"
)

// RunVectorIndexTests exercises the VectorIndex contract.
func RunVectorIndexTests(t *testing.T, newIndex VectorFactory) {
	ctx := context.Background()

	seed := func(t *testing.T, v driven.VectorIndex) {
		t.Helper()
		require.NoError(t, v.UpsertChunks(ctx, []domain.Chunk{
			Chunk(ID1, "a", 1, 0, 1, 0, 0),
			Chunk(ID2, "a", 1, 1, 0.6, 0.8, 0),
			Chunk(ID3, "b", 1, 0, 0, 1, 0),
			Chunk(ID4, "c", 2, 0, 0, 0, 1),
		}))
	}

	t.Run("search ranks by cosine", func(t *testing.T) {
		v := newIndex(t)
		seed(t, v)

		hits, err := v.Search(ctx, []float32{1, 0, 0}, 3, nil)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, ID1, hits[0].Chunk.ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
		assert.Equal(t, ID2, hits[1].Chunk.ID)
		assert.InDelta(t, 0.6, hits[1].Score, 1e-5)
		assert.Equal(t, "a", hits[0].Chunk.DocumentID)
		assert.Equal(t, "a passage", hits[0].Chunk.Text)
		assert.Equal(t, 1, hits[0].Chunk.Version)
		assert.Equal(t, 1, hits[1].Chunk.Sequence)
	})

	t.Run("search with document filter", func(t *testing.T) {
		v := newIndex(t)
		seed(t, v)

		hits, err := v.Search(ctx, []float32{1, 0, 0}, 10, &driven.VectorFilter{DocumentIDs: []string{"b", "c"}})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		for _, h := range hits {
			assert.Contains(t, []string{"b", "c"}, h.Chunk.DocumentID)
		}

		hits, err = v.Search(ctx, []float32{1, 0, 0}, 10, &driven.VectorFilter{DocumentIDs: []string{}})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("upsert replaces by chunk id", func(t *testing.T) {
		v := newIndex(t)
		seed(t, v)
		require.NoError(t, v.UpsertChunks(ctx, []domain.Chunk{Chunk(ID3, "b", 2, 0, 1, 0, 0)}))

		n, err := v.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		chunks, err := v.ListChunks(ctx, "b")
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, 2, chunks[0].Version)
	})

	t.Run("delete by document id", func(t *testing.T) {
		v := newIndex(t)
		seed(t, v)
		require.NoError(t, v.DeleteByDocumentID(ctx, "a"))
		require.NoError(t, v.DeleteByDocumentID(ctx, "never-existed"))

		chunks, err := v.ListChunks(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, chunks)

		hits, err := v.Search(ctx, []float32{1, 0, 0}, 10, &driven.VectorFilter{DocumentIDs: []string{"a"}})
		require.NoError(t, err)
		assert.Empty(t, hits)

		n, err := v.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("list chunks ordered by sequence", func(t *testing.T) {
		v := newIndex(t)
		seed(t, v)

		chunks, err := v.ListChunks(ctx, "a")
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, 0, chunks[0].Sequence)
		assert.Equal(t, 1, chunks[1].Sequence)
		assert.Equal(t, []string{"python"}, chunks[0].Fields[domain.FieldSkills])
	})

	t.Run("document ids", func(t *testing.T) {
		v := newIndex(t)
		seed(t, v)

		ids, err := v.DocumentIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, ids)
	})

	t.Run("empty index", func(t *testing.T) {
		v := newIndex(t)
		hits, err := v.Search(ctx, []float32{1, 0, 0}, 5, nil)
		require.NoError(t, err)
		assert.Empty(t, hits)

		n, err := v.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// MetadataFactory returns a fresh, empty store.
type MetadataFactory func(t *testing.T) driven.MetadataStore

// Resume builds a test document.
func Resume(id string, version int, skills []string, years float64) *domain.Document {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.Document{
		ID:      id,
		Version: version,
		Fields: domain.Fields{
			domain.FieldName:            "Candidate " + id,
			domain.FieldLocation:        "Berlin",
			domain.FieldSkills:          skills,
			domain.FieldYearsExperience: years,
		},
		Text:       "résumé text of " + id,
		Source:     id + ".txt",
		ChunkCount: 2,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func mustFilter(t *testing.T, f domain.Filter) domain.Filter {
	t.Helper()
	out, err := f.Normalise(domain.DefaultSchema())
	require.NoError(t, err)
	return out
}

// RunMetadataStoreTests exercises the MetadataStore contract.
func RunMetadataStoreTests(t *testing.T, newStore MetadataFactory) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "nope")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("put and get round trip", func(t *testing.T) {
		s := newStore(t)
		doc := Resume("a", 1, []string{"django", "python"}, 3)
		require.NoError(t, s.Put(ctx, doc, 0))

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Version)
		assert.Equal(t, "Candidate a", got.Fields[domain.FieldName])
		assert.Equal(t, []string{"django", "python"}, got.Fields[domain.FieldSkills])
		assert.Equal(t, 3.0, got.Fields[domain.FieldYearsExperience])
		assert.Equal(t, doc.Text, got.Text)
		assert.Equal(t, doc.Source, got.Source)
		assert.Equal(t, 2, got.ChunkCount)
		assert.True(t, doc.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("conditional put", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, Resume("a", 1, nil, 1), 0))

		err := s.Put(ctx, Resume("a", 1, nil, 1), 0)
		assert.True(t, errors.Is(err, domain.ErrVersionConflict), "create over existing: %v", err)

		err = s.Put(ctx, Resume("a", 3, nil, 1), 2)
		assert.True(t, errors.Is(err, domain.ErrVersionConflict), "stale expected version: %v", err)

		err = s.Put(ctx, Resume("b", 2, nil, 1), 1)
		assert.True(t, errors.Is(err, domain.ErrVersionConflict), "update of missing: %v", err)

		require.NoError(t, s.Put(ctx, Resume("a", 2, []string{"go"}, 1), 1))
		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.Equal(t, []string{"go"}, got.Fields[domain.FieldSkills])
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, Resume("a", 1, nil, 1), 0))
		require.NoError(t, s.Delete(ctx, "a"))

		_, err := s.Get(ctx, "a")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.True(t, errors.Is(s.Delete(ctx, "a"), domain.ErrNotFound))
	})

	t.Run("get many skips missing", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, Resume("a", 1, nil, 1), 0))
		require.NoError(t, s.Put(ctx, Resume("b", 1, nil, 1), 0))

		docs, err := s.GetMany(ctx, []string{"b", "zz", "a"})
		require.NoError(t, err)
		ids := make([]string, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		assert.ElementsMatch(t, []string{"a", "b"}, ids)

		docs, err = s.GetMany(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("find", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, Resume("a", 1, []string{"python"}, 2), 0))
		require.NoError(t, s.Put(ctx, Resume("b", 1, []string{"python", "django"}, 6), 0))
		require.NoError(t, s.Put(ctx, Resume("c", 1, []string{"java"}, 10), 0))
		noYears := Resume("d", 1, []string{"python"}, 0)
		delete(noYears.Fields, domain.FieldYearsExperience)
		require.NoError(t, s.Put(ctx, noYears, 0))

		tests := []struct {
			name   string
			filter domain.Filter
			want   []string
		}{
			{"all", nil, []string{"a", "b", "c", "d"}},
			{"skill", domain.Filter{{Field: "skills", Op: domain.OpContains, Value: "Python"}}, []string{"a", "b", "d"}},
			{"any", domain.Filter{{Field: "skills", Op: domain.OpAny, Value: "django,java"}}, []string{"b", "c"}},
			{"all skills", domain.Filter{{Field: "skills", Op: domain.OpAll, Value: "python,django"}}, []string{"b"}},
			{"gte", domain.Filter{{Field: "years_experience", Op: domain.OpGte, Value: 6}}, []string{"b", "c"}},
			{"lte", domain.Filter{{Field: "years_experience", Op: domain.OpLte, Value: 6}}, []string{"a", "b"}},
			{"between", domain.Filter{{Field: "years_experience", Op: domain.OpBetween, Value: "3,8"}}, []string{"b"}},
			{"eq number", domain.Filter{{Field: "years_experience", Op: domain.OpEq, Value: 10}}, []string{"c"}},
			{"string eq folds case", domain.Filter{{Field: "location", Op: domain.OpEq, Value: "berlin"}}, []string{"a", "b", "c", "d"}},
			{"string in", domain.Filter{{Field: "name", Op: domain.OpIn, Value: "Candidate a,Candidate c"}}, []string{"a", "c"}},
			{"string contains", domain.Filter{{Field: "name", Op: domain.OpContains, Value: "DATE B"}}, []string{"b"}},
			{"document id", domain.Filter{{Field: "document_id", Op: domain.OpIn, Value: "a,c,zz"}}, []string{"a", "c"}},
			{"conjunction", domain.Filter{
				{Field: "skills", Op: domain.OpContains, Value: "python"},
				{Field: "years_experience", Op: domain.OpGte, Value: 1},
			}, []string{"a", "b"}},
			{"no match", domain.Filter{{Field: "skills", Op: domain.OpContains, Value: "cobol"}}, []string{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ids, err := s.Find(ctx, mustFilter(t, tt.filter))
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids)
			})
		}
	})

	t.Run("count", func(t *testing.T) {
		s := newStore(t)
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		require.NoError(t, s.Put(ctx, Resume("a", 1, nil, 1), 0))
		n, err = s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

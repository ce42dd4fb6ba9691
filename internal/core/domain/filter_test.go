package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalised(t *testing.T, f Filter) Filter {
	t.Helper()
	out, err := f.Normalise(DefaultSchema())
	require.NoError(t, err)
	return out
}

func TestFilter_Normalise_UnknownField(t *testing.T) {
	_, err := Filter{{Field: "salary", Op: OpGte, Value: 10.0}}.Normalise(DefaultSchema())
	assert.True(t, errors.Is(err, ErrUnknownFilterField))
}

func TestFilter_Normalise_BadPredicates(t *testing.T) {
	tests := []struct {
		name string
		p    Predicate
	}{
		{"gte on set", Predicate{Field: "skills", Op: OpGte, Value: "3"}},
		{"non-numeric years", Predicate{Field: "years_experience", Op: OpGte, Value: "lots"}},
		{"empty any", Predicate{Field: "skills", Op: OpAny, Value: ""}},
		{"descending between", Predicate{Field: "years_experience", Op: OpBetween, Value: "5,2"}},
		{"empty contains", Predicate{Field: "skills", Op: OpContains, Value: " "}},
		{"range on document id", Predicate{Field: "document_id", Op: OpGte, Value: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Filter{tt.p}.Normalise(DefaultSchema())
			assert.True(t, errors.Is(err, ErrBadQuery), "got %v", err)
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	fields := Fields{
		"name":             "Jane Doe",
		"location":         "Berlin",
		"skills":           []string{"django", "python"},
		"years_experience": 5.0,
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"contains skill", Filter{{Field: "skills", Op: OpContains, Value: "Python"}}, true},
		{"missing skill", Filter{{Field: "skills", Op: OpContains, Value: "java"}}, false},
		{"any skill", Filter{{Field: "skills", Op: OpAny, Value: "java,django"}}, true},
		{"all skills", Filter{{Field: "skills", Op: OpAll, Value: []string{"python", "django"}}}, true},
		{"all skills missing one", Filter{{Field: "skills", Op: OpAll, Value: "python,go"}}, false},
		{"gte", Filter{{Field: "years_experience", Op: OpGte, Value: 5}}, true},
		{"lte", Filter{{Field: "years_experience", Op: OpLte, Value: "4"}}, false},
		{"between", Filter{{Field: "years_experience", Op: OpBetween, Value: "3,6"}}, true},
		{"eq string folds case", Filter{{Field: "location", Op: OpEq, Value: "berlin"}}, true},
		{"in string", Filter{{Field: "location", Op: OpIn, Value: "Paris,Berlin"}}, true},
		{"substring", Filter{{Field: "name", Op: OpContains, Value: "doe"}}, true},
		{"conjunction", Filter{
			{Field: "skills", Op: OpContains, Value: "python"},
			{Field: "years_experience", Op: OpGte, Value: 10},
		}, false},
		{"missing field never matches", Filter{{Field: "email", Op: OpEq, Value: "x@y.z"}}, false},
		{"document id", Filter{{Field: "document_id", Op: OpEq, Value: "h1"}}, true},
		{"other document id", Filter{{Field: "document_id", Op: OpEq, Value: "h2"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalised(t, tt.filter).Matches("h1", fields))
		})
	}
}

func TestFilter_Matches_FieldNotReferenced(t *testing.T) {
	f := normalised(t, Filter{{Field: "skills", Op: OpContains, Value: "python"}})
	assert.True(t, f.Matches("a", Fields{"skills": []string{"python"}}))
}

func TestFilter_SplitDocumentIDs(t *testing.T) {
	f := normalised(t, Filter{
		{Field: "document_id", Op: OpIn, Value: "a,b,c"},
		{Field: "skills", Op: OpContains, Value: "go"},
		{Field: "document_id", Op: OpIn, Value: []string{"c", "b", "z"}},
	})

	ids, rest := f.SplitDocumentIDs()
	assert.Equal(t, []string{"b", "c"}, ids)
	require.Len(t, rest, 1)
	assert.Equal(t, "skills", rest[0].Field)

	ids, rest = normalised(t, Filter{{Field: "skills", Op: OpContains, Value: "go"}}).SplitDocumentIDs()
	assert.Nil(t, ids)
	assert.Len(t, rest, 1)
}

func TestParsePredicate(t *testing.T) {
	schema := DefaultSchema()
	tests := []struct {
		in   string
		want Predicate
	}{
		{"skills=python", Predicate{Field: "skills", Op: OpContains, Value: "python"}},
		{"skills=all:python,django", Predicate{Field: "skills", Op: OpAll, Value: "python,django"}},
		{"years_experience=gte:3", Predicate{Field: "years_experience", Op: OpGte, Value: "3"}},
		{"location=Berlin", Predicate{Field: "location", Op: OpEq, Value: "Berlin"}},
		{"document_id=h1", Predicate{Field: "document_id", Op: OpEq, Value: "h1"}},
		{"email=x:y", Predicate{Field: "email", Op: OpEq, Value: "x:y"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePredicate(schema, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParsePredicate(schema, "skills")
	assert.True(t, errors.Is(err, ErrBadQuery))
	_, err = ParsePredicate(schema, "=python")
	assert.True(t, errors.Is(err, ErrBadQuery))
}

package pgvector

import (
	"context"
	"database/sql/driver"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cvsearch/internal/adapters/driven/storage/storagetest"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// envTestDSN points the contract suite at a live Postgres with pgvector.
const envTestDSN = "CVSEARCH_TEST_POSTGRES_DSN"

func TestIndex_Contract(t *testing.T) {
	dsn := os.Getenv(envTestDSN)
	if dsn == "" {
		t.Skipf("%s not set", envTestDSN)
	}
	storagetest.RunVectorIndexTests(t, func(t *testing.T) driven.VectorIndex {
		table := "chunks_" + uuid.NewString()[:8]
		idx, err := New(context.Background(), Config{DSN: dsn, Table: table, Dimensions: 3})
		require.NoError(t, err)
		t.Cleanup(func() {
			_, _ = idx.db.Exec("DROP TABLE " + idx.table)
			_ = idx.Close()
		})
		return idx
	})
}

func TestNew_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no dsn", Config{Table: "chunks", Dimensions: 3}},
		{"no dimensions", Config{DSN: "postgres://localhost/x", Table: "chunks"}},
		{"injected table", Config{DSN: "postgres://localhost/x", Table: "chunks; DROP TABLE x", Dimensions: 3}},
		{"upper case table", Config{DSN: "postgres://localhost/x", Table: "Chunks", Dimensions: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements(pq.QuoteIdentifier("resume_chunks"), 768)
	require.Len(t, stmts, 4)
	assert.Contains(t, stmts[0], "CREATE EXTENSION IF NOT EXISTS vector")
	assert.Contains(t, stmts[1], `"resume_chunks"`)
	assert.Contains(t, stmts[1], "vector(768)")
	assert.Contains(t, stmts[2], `"resume_chunks_document_id_idx"`)
	assert.Contains(t, stmts[3], "vector_cosine_ops")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"bad conn", driver.ErrBadConn, true},
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"too many connections", &pq.Error{Code: "53300"}, true},
		{"serialization", &pq.Error{Code: "40001"}, true},
		{"undefined table", &pq.Error{Code: "42P01"}, false},
		{"plain", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))
			assert.Contains(t, err.Error(), "op")
		})
	}
	assert.NoError(t, classify("op", nil))
}

func TestEncodeFields(t *testing.T) {
	s, err := encodeFields(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", s)

	s, err = encodeFields(domain.Fields{domain.FieldSkills: []string{"go"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"skills":["go"]}`, s)
}

// Package pgvector implements driven.VectorIndex on PostgreSQL with the
// pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Config configures the pgvector index.
type Config struct {
	DSN        string
	Table      string
	Dimensions int
}

// Index stores chunks in one table with a vector(N) column and searches it
// with the cosine distance operator.
type Index struct {
	db    *sql.DB
	table string
}

// New opens the database and creates the extension, table and indexes
// when missing.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.DSN == "" || cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: pgvector needs a DSN and dimensions", domain.ErrConfiguration)
	}
	if !tableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("%w: invalid table name %q", domain.ErrConfiguration, cfg.Table)
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: opening postgres: %v", domain.ErrConfiguration, err)
	}
	idx := NewWithDB(db, cfg.Table)
	if err := idx.migrate(ctx, cfg.Dimensions); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// NewWithDB wraps an open database. The table must already exist.
func NewWithDB(db *sql.DB, table string) *Index {
	return &Index{db: db, table: pq.QuoteIdentifier(table)}
}

func (i *Index) migrate(ctx context.Context, dims int) error {
	for _, stmt := range schemaStatements(i.table, dims) {
		if _, err := i.db.ExecContext(ctx, stmt); err != nil {
			return classify("creating schema", err)
		}
	}
	return nil
}

func schemaStatements(table string, dims int) []string {
	bare := table[1 : len(table)-1]
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			version     INTEGER NOT NULL,
			text        TEXT NOT NULL DEFAULT '',
			sequence    INTEGER NOT NULL,
			embedding   vector(%d) NOT NULL,
			fields      JSONB NOT NULL DEFAULT '{}'
		)`, table, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (document_id, sequence)`,
			pq.QuoteIdentifier(bare+"_document_id_idx"), table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pq.QuoteIdentifier(bare+"_embedding_idx"), table),
	}
}

// UpsertChunks writes chunks in one transaction, replacing any with the same ID.
func (i *Index) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("starting chunk write", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+i.table+` (id, document_id, version, text, sequence, embedding, fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			version = EXCLUDED.version,
			text = EXCLUDED.text,
			sequence = EXCLUDED.sequence,
			embedding = EXCLUDED.embedding,
			fields = EXCLUDED.fields
	`)
	if err != nil {
		return classify("preparing chunk write", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		fields, err := encodeFields(c.Fields)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Version, c.Text, c.Sequence,
			pgvector.NewVector(c.Vector), fields); err != nil {
			return classify("writing chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify("committing chunks", err)
	}
	return nil
}

// DeleteByDocumentID removes every chunk of a document.
func (i *Index) DeleteByDocumentID(ctx context.Context, documentID string) error {
	_, err := i.db.ExecContext(ctx, `DELETE FROM `+i.table+` WHERE document_id = $1`, documentID)
	return classify("deleting chunks", err)
}

// Search orders by cosine distance; the score is 1 - distance.
func (i *Index) Search(ctx context.Context, query []float32, k int, filter *driven.VectorFilter) ([]driven.VectorHit, error) {
	if k <= 0 || (filter != nil && len(filter.DocumentIDs) == 0) {
		return nil, nil
	}
	vec := pgvector.NewVector(query)
	q := `
		SELECT id, document_id, version, text, sequence, embedding, fields,
			1 - (embedding <=> $1) AS score
		FROM ` + i.table
	args := []any{vec}
	if filter != nil {
		q += ` WHERE document_id = ANY($2)`
		args = append(args, pq.Array(filter.DocumentIDs))
	}
	q += fmt.Sprintf(` ORDER BY embedding <=> $1, document_id, sequence LIMIT %d`, k)

	rows, err := i.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify("searching chunks", err)
	}
	defer rows.Close()

	hits := make([]driven.VectorHit, 0, k)
	for rows.Next() {
		var score float64
		c, err := scanChunk(rows, &score)
		if err != nil {
			return nil, err
		}
		hits = append(hits, driven.VectorHit{Chunk: c, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating chunks", err)
	}
	return hits, nil
}

// ListChunks returns a document's chunks ordered by sequence.
func (i *Index) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT id, document_id, version, text, sequence, embedding, fields
		FROM `+i.table+` WHERE document_id = $1 ORDER BY sequence, id`, documentID)
	if err != nil {
		return nil, classify("listing chunks", err)
	}
	defer rows.Close()

	out := make([]domain.Chunk, 0)
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating chunks", err)
	}
	return out, nil
}

// DocumentIDs returns the distinct document IDs in the table.
func (i *Index) DocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT DISTINCT document_id FROM `+i.table+` ORDER BY document_id`)
	if err != nil {
		return nil, classify("listing documents", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan document id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating documents", err)
	}
	return ids, nil
}

// Count returns the number of chunks.
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+i.table).Scan(&n); err != nil {
		return 0, classify("counting chunks", err)
	}
	return n, nil
}

// Close closes the database.
func (i *Index) Close() error {
	return i.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanChunk reads the chunk columns followed by any extra destinations.
func scanChunk(row rowScanner, extra ...any) (domain.Chunk, error) {
	var c domain.Chunk
	var vec pgvector.Vector
	var fields []byte
	dest := append([]any{&c.ID, &c.DocumentID, &c.Version, &c.Text, &c.Sequence, &vec, &fields}, extra...)
	if err := row.Scan(dest...); err != nil {
		return c, errors.Wrap(err, "failed to scan chunk")
	}
	c.Vector = vec.Slice()

	var m map[string]any
	if err := json.Unmarshal(fields, &m); err != nil {
		return c, errors.Wrap(err, "failed to decode chunk fields")
	}
	decoded, err := domain.Fields(m).Normalise(nil)
	if err != nil {
		return c, errors.Wrap(err, "failed to decode chunk fields")
	}
	if len(decoded) > 0 {
		c.Fields = decoded
	}
	return c, nil
}

func encodeFields(fields domain.Fields) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode chunk fields")
	}
	return string(b), nil
}

// classify maps connection-class and contention failures onto
// ErrStoreUnavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if transient(err) {
		return errors.Wrapf(domain.ErrStoreUnavailable, "%s: %v", op, err)
	}
	return errors.Wrap(err, op)
}

func transient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57", "40":
			return true
		}
	}
	return false
}

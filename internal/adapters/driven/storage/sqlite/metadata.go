package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// maxInArgs bounds the number of bound parameters in one IN list.
const maxInArgs = 500

// metadataStore implements driven.MetadataStore.
type metadataStore struct {
	store *Store
}

var _ driven.MetadataStore = (*metadataStore)(nil)

const documentColumns = `id, version, fields, text, source, chunk_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var fieldsJSON string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&doc.ID, &doc.Version, &fieldsJSON, &doc.Text, &doc.Source,
		&doc.ChunkCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	fields, err := decodeFields(fieldsJSON)
	if err != nil {
		return nil, err
	}
	doc.Fields = fields
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return &doc, nil
}

// Get retrieves a document by ID.
func (s *metadataStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, classify("scanning document", err)
	}
	return doc, nil
}

// GetMany retrieves the documents that exist among ids.
func (s *metadataStore) GetMany(ctx context.Context, ids []string) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(ids))
	for start := 0; start < len(ids); start += maxInArgs {
		batch := ids[start:min(start+maxInArgs, len(ids))]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		rows, err := s.store.db.QueryContext(ctx,
			`SELECT `+documentColumns+` FROM documents WHERE id IN (`+placeholders(len(batch))+`)`, args...)
		if err != nil {
			return nil, classify("querying documents", err)
		}
		for rows.Next() {
			doc, err := scanDocument(rows)
			if err != nil {
				rows.Close()
				return nil, classify("scanning document", err)
			}
			out = append(out, *doc)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, classify("iterating documents", err)
		}
	}
	return out, nil
}

// Put writes a document if the stored version equals expectedVersion.
// Each branch is a single statement, so the check and the write are atomic.
func (s *metadataStore) Put(ctx context.Context, doc *domain.Document, expectedVersion int) error {
	fieldsJSON, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}
	createdAt, updatedAt := doc.CreatedAt, doc.UpdatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	var res sql.Result
	if expectedVersion == 0 {
		res, err = s.store.db.ExecContext(ctx, `
			INSERT INTO documents (`+documentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, doc.ID, doc.Version, fieldsJSON, doc.Text, doc.Source, doc.ChunkCount, createdAt, updatedAt)
	} else {
		res, err = s.store.db.ExecContext(ctx, `
			UPDATE documents SET
				version = ?, fields = ?, text = ?, source = ?, chunk_count = ?,
				created_at = ?, updated_at = ?
			WHERE id = ? AND version = ?
		`, doc.Version, fieldsJSON, doc.Text, doc.Source, doc.ChunkCount,
			createdAt, updatedAt, doc.ID, expectedVersion)
	}
	if err != nil {
		return classify("saving document", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify("saving document", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s is not at version %d", domain.ErrVersionConflict, doc.ID, expectedVersion)
	}
	return nil
}

// Delete removes a document.
func (s *metadataStore) Delete(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return classify("deleting document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("deleting document", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Find returns the sorted IDs of documents matching the filter. Predicates
// are pushed down as JSON1 expressions; SQLite's lower() folds ASCII only,
// so each candidate is rechecked with Filter.Matches.
func (s *metadataStore) Find(ctx context.Context, filter domain.Filter) ([]string, error) {
	where, args := whereClause(filter)
	query := `SELECT id, fields FROM documents`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY id`

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("finding documents", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id, fieldsJSON string
		if err := rows.Scan(&id, &fieldsJSON); err != nil {
			return nil, classify("scanning document", err)
		}
		fields, err := decodeFields(fieldsJSON)
		if err != nil {
			return nil, err
		}
		if filter.Matches(id, fields) {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating documents", err)
	}
	return ids, nil
}

// Count returns the number of documents.
func (s *metadataStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, classify("counting documents", err)
	}
	return n, nil
}

// Close is a no-op; the owning Store closes the database.
func (s *metadataStore) Close() error {
	return nil
}

// jsonPath addresses a top-level key of the fields column.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, "") + `"`
}

// whereClause translates a normalised filter into SQL. Predicates it cannot
// express are left to the Go recheck.
func whereClause(filter domain.Filter) (string, []any) {
	var conds []string
	var args []any

	for _, p := range filter {
		if p.Field == domain.FieldDocumentID {
			switch v := p.Value.(type) {
			case string:
				conds = append(conds, "id = ?")
				args = append(args, v)
			case []string:
				conds = append(conds, "id IN ("+placeholders(len(v))+")")
				for _, id := range v {
					args = append(args, id)
				}
			}
			continue
		}

		path := jsonPath(p.Field)
		switch v := p.Value.(type) {
		case float64:
			expr := "json_extract(fields, ?)"
			switch p.Op {
			case domain.OpEq:
				conds = append(conds, expr+" = ?")
			case domain.OpGte:
				conds = append(conds, expr+" >= ?")
			case domain.OpLte:
				conds = append(conds, expr+" <= ?")
			default:
				continue
			}
			args = append(args, path, v)
		case [2]float64:
			conds = append(conds, "json_extract(fields, ?) BETWEEN ? AND ?")
			args = append(args, path, v[0], v[1])
		case string:
			if !isASCII(v) {
				continue
			}
			switch p.Op {
			case domain.OpEq:
				conds = append(conds, "lower(json_extract(fields, ?)) = lower(?)")
			case domain.OpContains:
				// Matches both a substring of a string field and a
				// member of a set field; the recheck tells them apart.
				conds = append(conds, "(instr(lower(json_extract(fields, ?)), lower(?)) > 0"+
					" OR EXISTS (SELECT 1 FROM json_each(documents.fields, ?) WHERE value = ?))")
				args = append(args, path, v, path, v)
				continue
			default:
				continue
			}
			args = append(args, path, v)
		case []string:
			switch p.Op {
			case domain.OpIn:
				if !allASCII(v) {
					continue
				}
				conds = append(conds, "lower(json_extract(fields, ?)) IN ("+placeholders(len(v))+")")
				args = append(args, path)
				for _, s := range v {
					args = append(args, strings.ToLower(s))
				}
			case domain.OpAny:
				conds = append(conds, "EXISTS (SELECT 1 FROM json_each(documents.fields, ?) WHERE value IN ("+
					placeholders(len(v))+"))")
				args = append(args, path)
				for _, s := range v {
					args = append(args, s)
				}
			case domain.OpAll:
				for _, s := range v {
					conds = append(conds, "EXISTS (SELECT 1 FROM json_each(documents.fields, ?) WHERE value = ?)")
					args = append(args, path, s)
				}
			}
		}
	}

	return strings.Join(conds, " AND "), args
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func allASCII(ss []string) bool {
	for _, s := range ss {
		if !isASCII(s) {
			return false
		}
	}
	return true
}

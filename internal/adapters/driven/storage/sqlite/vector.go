package sqlite

import (
	"container/heap"
	"context"

	"github.com/custodia-labs/cvsearch/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// vectorIndex implements driven.VectorIndex over the chunks table.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

const chunkColumns = `id, document_id, version, text, sequence, embedding, magnitude, fields`

func scanChunk(row rowScanner) (domain.Chunk, float32, error) {
	var c domain.Chunk
	var embedding []byte
	var magnitude float64
	var fieldsJSON string
	if err := row.Scan(&c.ID, &c.DocumentID, &c.Version, &c.Text, &c.Sequence,
		&embedding, &magnitude, &fieldsJSON); err != nil {
		return c, 0, err
	}
	fields, err := decodeFields(fieldsJSON)
	if err != nil {
		return c, 0, err
	}
	c.Fields = fields
	c.Vector = vecmath.Decode(embedding)
	return c, float32(magnitude), nil
}

// UpsertChunks writes chunks in one transaction, replacing any with the same ID.
func (v *vectorIndex) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("starting chunk write", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (`+chunkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			version = excluded.version,
			text = excluded.text,
			sequence = excluded.sequence,
			embedding = excluded.embedding,
			magnitude = excluded.magnitude,
			fields = excluded.fields
	`)
	if err != nil {
		return classify("preparing chunk write", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		fieldsJSON, err := encodeFields(c.Fields)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Version, c.Text, c.Sequence,
			vecmath.Encode(c.Vector), float64(vecmath.Magnitude(c.Vector)), fieldsJSON); err != nil {
			return classify("writing chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify("committing chunks", err)
	}
	return nil
}

// DeleteByDocumentID removes every chunk of a document.
func (v *vectorIndex) DeleteByDocumentID(ctx context.Context, documentID string) error {
	if _, err := v.store.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return classify("deleting chunks", err)
	}
	return nil
}

// Search scans candidate chunks and keeps the k most similar in a min-heap.
func (v *vectorIndex) Search(ctx context.Context, query []float32, k int, filter *driven.VectorFilter) ([]driven.VectorHit, error) {
	if k <= 0 || (filter != nil && len(filter.DocumentIDs) == 0) {
		return nil, nil
	}

	qmag := vecmath.Magnitude(query)
	top := &hitHeap{}
	scan := func(q string, args ...any) error {
		rows, err := v.store.db.QueryContext(ctx, q, args...)
		if err != nil {
			return classify("querying chunks", err)
		}
		defer rows.Close()
		for rows.Next() {
			c, mag, err := scanChunk(rows)
			if err != nil {
				return classify("scanning chunk", err)
			}
			hit := driven.VectorHit{Chunk: c, Score: vecmath.Cosine(query, c.Vector, qmag, mag)}
			if top.Len() < k {
				heap.Push(top, hit)
			} else if better(hit, (*top)[0]) {
				(*top)[0] = hit
				heap.Fix(top, 0)
			}
		}
		return classify("iterating chunks", rows.Err())
	}

	base := `SELECT ` + chunkColumns + ` FROM chunks`
	if filter == nil {
		if err := scan(base); err != nil {
			return nil, err
		}
	} else {
		ids := filter.DocumentIDs
		for start := 0; start < len(ids); start += maxInArgs {
			batch := ids[start:min(start+maxInArgs, len(ids))]
			args := make([]any, len(batch))
			for i, id := range batch {
				args[i] = id
			}
			if err := scan(base+` WHERE document_id IN (`+placeholders(len(batch))+`)`, args...); err != nil {
				return nil, err
			}
		}
	}

	hits := make([]driven.VectorHit, top.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(top).(driven.VectorHit) //nolint:forcetypeassert // heap holds only hits
	}
	return hits, nil
}

// ListChunks returns a document's chunks ordered by sequence.
func (v *vectorIndex) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := v.store.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE document_id = ? ORDER BY sequence, id`, documentID)
	if err != nil {
		return nil, classify("querying chunks", err)
	}
	defer rows.Close()

	out := make([]domain.Chunk, 0)
	for rows.Next() {
		c, _, err := scanChunk(rows)
		if err != nil {
			return nil, classify("scanning chunk", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating chunks", err)
	}
	return out, nil
}

// DocumentIDs returns the distinct document IDs in the index.
func (v *vectorIndex) DocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := v.store.db.QueryContext(ctx, "SELECT DISTINCT document_id FROM chunks ORDER BY document_id")
	if err != nil {
		return nil, classify("querying chunk documents", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify("scanning chunk document", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating chunk documents", err)
	}
	return ids, nil
}

// Count returns the number of chunks.
func (v *vectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, classify("counting chunks", err)
	}
	return n, nil
}

// Close is a no-op; the owning Store closes the database.
func (v *vectorIndex) Close() error {
	return nil
}

// better orders hits by score, then document ID and sequence ascending.
func better(a, b driven.VectorHit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Chunk.DocumentID != b.Chunk.DocumentID {
		return a.Chunk.DocumentID < b.Chunk.DocumentID
	}
	return a.Chunk.Sequence < b.Chunk.Sequence
}

// hitHeap is a min-heap on better, so the root is the weakest kept hit.
type hitHeap []driven.VectorHit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) {
	*h = append(*h, x.(driven.VectorHit)) //nolint:forcetypeassert // heap holds only hits
}

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

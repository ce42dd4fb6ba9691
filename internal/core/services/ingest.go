package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/cvsearch/internal/chunker"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driving"
	"github.com/custodia-labs/cvsearch/internal/logger"
)

// Ensure IngestionCoordinator implements the interface.
var _ driving.IngestionService = (*IngestionCoordinator)(nil)

// DefaultBatchConcurrency bounds parallel documents in IngestBatch.
const DefaultBatchConcurrency = 4

// DefaultWriteTimeout bounds the write phase of an ingestion.
const DefaultWriteTimeout = 30 * time.Second

// FieldExtractor derives structured fields from document text.
type FieldExtractor func(text, source string) domain.Fields

// IngestionCoordinator drives chunk, embed and store for documents and owns
// the upsert protocol that keeps the vector index and metadata store
// consistent.
//
// Writes always go to the vector index before the metadata store, so a
// failure leaves either the previous state ("stale but complete") or
// missing chunks under an intact record, which Audit detects and Repair
// fixes. Work on one document ID is serialised in-process; the conditional
// metadata write guards against other processes.
type IngestionCoordinator struct {
	chunker  *chunker.Chunker
	embedder *Embedder
	vectors  driven.VectorIndex
	metadata driven.MetadataStore
	schema   domain.Schema

	extract      FieldExtractor
	locks        *KeyedMutex
	concurrency  int
	writeTimeout time.Duration
	readPolicy   RetryPolicy
	writePolicy  RetryPolicy
	metrics      driven.Metrics
	now          func() time.Time
	newChunkID   func() string
}

// IngestOption configures an IngestionCoordinator.
type IngestOption func(*IngestionCoordinator)

// WithExtractor fills missing fields from text.
func WithExtractor(fn FieldExtractor) IngestOption {
	return func(c *IngestionCoordinator) {
		c.extract = fn
	}
}

// WithBatchConcurrency bounds parallel documents in a batch.
func WithBatchConcurrency(n int) IngestOption {
	return func(c *IngestionCoordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithWriteTimeout bounds the write phase, which ignores caller cancellation.
func WithWriteTimeout(d time.Duration) IngestOption {
	return func(c *IngestionCoordinator) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithStoreRetry sets the read and write retry policies.
func WithStoreRetry(read, write RetryPolicy) IngestOption {
	return func(c *IngestionCoordinator) {
		c.readPolicy = read
		c.writePolicy = write
	}
}

// WithIngestMetrics records ingestion outcomes.
func WithIngestMetrics(m driven.Metrics) IngestOption {
	return func(c *IngestionCoordinator) {
		c.metrics = m
	}
}

// WithLocks shares a keyed mutex, e.g. between coordinators in tests.
func WithLocks(l *KeyedMutex) IngestOption {
	return func(c *IngestionCoordinator) {
		c.locks = l
	}
}

// NewIngestionCoordinator creates a coordinator.
func NewIngestionCoordinator(
	ch *chunker.Chunker,
	embedder *Embedder,
	vectors driven.VectorIndex,
	metadata driven.MetadataStore,
	schema domain.Schema,
	opts ...IngestOption,
) *IngestionCoordinator {
	c := &IngestionCoordinator{
		chunker:      ch,
		embedder:     embedder,
		vectors:      vectors,
		metadata:     metadata,
		schema:       schema,
		locks:        NewKeyedMutex(),
		concurrency:  DefaultBatchConcurrency,
		writeTimeout: DefaultWriteTimeout,
		readPolicy:   ReadRetryPolicy,
		writePolicy:  WriteRetryPolicy,
		now:          time.Now,
		newChunkID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics = metricsOrNop(c.metrics)
	return c
}

// Ingest chunks, embeds and stores one document.
func (c *IngestionCoordinator) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	id := domain.ResolveDocumentID(req.IDHint, req.Text)
	if err := req.Validate(); err != nil {
		c.metrics.ObserveIngest(false, domain.StageValidate)
		return nil, &domain.StageError{DocumentID: id, Stage: domain.StageValidate, Err: err}
	}

	unlock, err := c.locks.Lock(ctx, id)
	if err != nil {
		return nil, &domain.StageError{DocumentID: id, Stage: domain.StageValidate, Err: err}
	}
	defer unlock()

	res, err := c.ingestLocked(ctx, id, req)
	if err != nil {
		var se *domain.StageError
		if errors.As(err, &se) {
			c.metrics.ObserveIngest(false, se.Stage)
		}
		return nil, err
	}
	c.metrics.ObserveIngest(res.Created, "")
	return res, nil
}

// ingestLocked runs the upsert protocol. The caller holds the lock for id.
func (c *IngestionCoordinator) ingestLocked(ctx context.Context, id string, req domain.IngestRequest) (*domain.IngestResult, error) {
	fail := func(stage domain.Stage, err error) error {
		return &domain.StageError{DocumentID: id, Stage: stage, Err: err}
	}

	logger.Section("Ingest " + id)
	defer logger.Timed("ingest %s", id)()

	fields, err := c.resolveFields(req)
	if err != nil {
		return nil, fail(domain.StageValidate, err)
	}

	// 1. Chunk and embed. Nothing has been written yet, so a failure here
	// leaves the prior state untouched.
	start := time.Now()
	pieces := c.chunker.Split(req.Text)
	c.metrics.ObserveStage(domain.StageChunk, time.Since(start))
	logger.Debug("chunked %s into %d pieces (size %d, overlap %d)", id, len(pieces), c.chunker.Size(), c.chunker.Overlap())

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	start = time.Now()
	vecs, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fail(domain.StageEmbed, err)
	}
	c.metrics.ObserveStage(domain.StageEmbed, time.Since(start))

	// 2. Read the current version.
	var current *domain.Document
	err = retry(ctx, c.readPolicy, "read "+id, c.onRetry("metadata_get"), func(ctx context.Context) error {
		doc, err := c.metadata.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			current = nil
			return nil
		}
		current = doc
		return err
	})
	if err != nil {
		return nil, fail(domain.StageRead, err)
	}

	oldVersion := 0
	createdAt := c.now()
	if current != nil {
		oldVersion = current.Version
		createdAt = current.CreatedAt
	}
	newVersion := oldVersion + 1

	// From here on caller cancellation is deferred until the metadata write
	// completes. The write phase is bounded by its own timeout instead.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	defer cancel()

	// 3. Delete old chunks by document filter.
	start = time.Now()
	err = retry(wctx, c.writePolicy, "delete chunks "+id, c.onRetry("vector_delete"), func(ctx context.Context) error {
		return c.vectors.DeleteByDocumentID(ctx, id)
	})
	if err != nil {
		return nil, fail(domain.StageDeleteChunks, err)
	}
	c.metrics.ObserveStage(domain.StageDeleteChunks, time.Since(start))

	// 4. Write the new chunk set.
	chunks := make([]domain.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = domain.Chunk{
			ID:         c.newChunkID(),
			DocumentID: id,
			Version:    newVersion,
			Text:       p.Text,
			Sequence:   p.Sequence,
			Vector:     vecs[i],
			Fields:     fields.Clone(),
		}
	}
	if len(chunks) > 0 {
		start = time.Now()
		err = retry(wctx, c.writePolicy, "write chunks "+id, c.onRetry("vector_upsert"), func(ctx context.Context) error {
			return c.vectors.UpsertChunks(ctx, chunks)
		})
		if err != nil {
			logger.Warn("document %s: old chunks deleted but new chunks not written; run audit --repair", id)
			return nil, fail(domain.StageWriteChunks, err)
		}
		c.metrics.ObserveStage(domain.StageWriteChunks, time.Since(start))
	}

	// 5. Write the metadata record, conditional on the version read in step 2.
	now := c.now()
	doc := &domain.Document{
		ID:         id,
		Version:    newVersion,
		Fields:     fields,
		Text:       req.Text,
		Source:     req.Source,
		ChunkCount: len(chunks),
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}
	start = time.Now()
	err = retry(wctx, c.writePolicy, "write metadata "+id, c.onRetry("metadata_put"), func(ctx context.Context) error {
		return c.metadata.Put(ctx, doc, oldVersion)
	})
	if err != nil {
		logger.Warn("document %s: chunks at version %d written but metadata write failed: %v", id, newVersion, err)
		return nil, fail(domain.StageWriteMetadata, err)
	}
	c.metrics.ObserveStage(domain.StageWriteMetadata, time.Since(start))

	logger.Info("ingested %s version %d with %d chunks", id, newVersion, len(chunks))
	return &domain.IngestResult{
		DocumentID: id,
		Version:    newVersion,
		Chunks:     len(chunks),
		Created:    oldVersion == 0,
	}, nil
}

func (c *IngestionCoordinator) resolveFields(req domain.IngestRequest) (domain.Fields, error) {
	fields, err := req.Fields.Normalise(c.schema)
	if err != nil {
		return nil, err
	}
	if c.extract == nil || req.NoExtract {
		return fields, nil
	}
	extracted, err := c.extract(req.Text, req.Source).Normalise(c.schema)
	if err != nil {
		return nil, fmt.Errorf("extracted fields: %w", err)
	}
	return fields.Merge(extracted), nil
}

func (c *IngestionCoordinator) onRetry(op string) func(time.Duration) {
	return func(time.Duration) {
		c.metrics.ObserveRetry(op)
	}
}

// IngestBatch ingests documents independently with bounded parallelism.
// Requests resolving to the same document ID run in input order on one
// worker; distinct IDs run in parallel.
func (c *IngestionCoordinator) IngestBatch(ctx context.Context, reqs []domain.IngestRequest) []domain.IngestResult {
	results := make([]domain.IngestResult, len(reqs))

	var order []string
	groups := make(map[string][]int)
	for i, req := range reqs {
		id := domain.ResolveDocumentID(req.IDHint, req.Text)
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], i)
	}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, id := range order {
		indexes := groups[id]
		g.Go(func() error {
			for _, i := range indexes {
				res, err := c.Ingest(ctx, reqs[i])
				if err != nil {
					results[i] = domain.IngestResult{DocumentID: id, Err: err}
					continue
				}
				results[i] = *res
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Delete removes a document's chunks by filter and then its record.
// Stray chunks are swept even when the record is absent, in which case
// domain.ErrNotFound is returned.
func (c *IngestionCoordinator) Delete(ctx context.Context, id string) error {
	unlock, err := c.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	return c.deleteLocked(ctx, id)
}

func (c *IngestionCoordinator) deleteLocked(ctx context.Context, id string) error {
	fail := func(stage domain.Stage, err error) error {
		return &domain.StageError{DocumentID: id, Stage: stage, Err: err}
	}

	known := true
	err := retry(ctx, c.readPolicy, "read "+id, c.onRetry("metadata_get"), func(ctx context.Context) error {
		_, err := c.metadata.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			known = false
			return nil
		}
		return err
	})
	if err != nil {
		return fail(domain.StageRead, err)
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	defer cancel()

	err = retry(wctx, c.writePolicy, "delete chunks "+id, c.onRetry("vector_delete"), func(ctx context.Context) error {
		return c.vectors.DeleteByDocumentID(ctx, id)
	})
	if err != nil {
		return fail(domain.StageDeleteChunks, err)
	}

	if !known {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}

	err = retry(wctx, c.writePolicy, "delete metadata "+id, c.onRetry("metadata_delete"), func(ctx context.Context) error {
		return c.metadata.Delete(ctx, id)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fail(domain.StageWriteMetadata, err)
	}

	logger.Info("deleted %s", id)
	return nil
}

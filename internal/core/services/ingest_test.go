package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

const (
	aliceText = "Alice builds data pipelines in python and sql on aws. She also mentors python developers."
	bobText   = "Bob ships java services on kubernetes and writes react frontends for internal tools."
)

var errStoreDown = errors.New("connection refused")

func storeUnavailable() error {
	return errors.Join(domain.ErrStoreUnavailable, errStoreDown)
}

func requireStage(t *testing.T, err error, stage domain.Stage) {
	t.Helper()
	var se *domain.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stage, se.Stage)
}

func TestIngest_CreatesDocumentAndChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.coord.Ingest(ctx, domain.IngestRequest{
		IDHint: "alice",
		Text:   aliceText,
		Fields: domain.Fields{"skills": "Python, SQL", "years_experience": "6"},
		Source: "alice.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", res.DocumentID)
	assert.Equal(t, 1, res.Version)
	assert.True(t, res.Created)
	assert.Positive(t, res.Chunks)

	doc, err := env.metadata.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, res.Chunks, doc.ChunkCount)
	assert.Equal(t, aliceText, doc.Text)
	assert.Equal(t, "alice.txt", doc.Source)
	assert.Equal(t, []string{"python", "sql"}, doc.Fields["skills"])
	assert.Equal(t, 6.0, doc.Fields["years_experience"])

	chunks, err := env.vectors.ListChunks(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, chunks, res.Chunks)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Sequence)
		assert.Equal(t, 1, ch.Version)
		assert.Equal(t, "alice", ch.DocumentID)
		assert.Equal(t, doc.Fields, ch.Fields)
	}
	assert.Equal(t, []string{"created"}, env.metrics.ingests)
}

func TestIngest_DerivesIDFromText(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.coord.Ingest(context.Background(), domain.IngestRequest{Text: aliceText})
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentIDFromText(aliceText), res.DocumentID)
}

func TestIngest_ReplaceLeavesNoStaleChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.ingest(t, "alice", aliceText+" "+aliceText, nil)
	second := env.ingest(t, "alice", bobText, nil)

	assert.Equal(t, 2, second.Version)
	assert.False(t, second.Created)
	assert.Less(t, second.Chunks, first.Chunks)

	chunks, err := env.vectors.ListChunks(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, chunks, second.Chunks)
	for _, ch := range chunks {
		assert.Equal(t, 2, ch.Version)
	}

	doc, err := env.metadata.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)
	assert.Equal(t, bobText, doc.Text)

	report, err := env.coord.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, []string{"created", "updated"}, env.metrics.ingests)
}

func TestIngest_IdempotentReingest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fields := domain.Fields{"skills": []string{"python", "sql"}, "years_experience": 6}
	env.ingest(t, "alice", aliceText, fields)
	firstDoc, err := env.metadata.Get(ctx, "alice")
	require.NoError(t, err)
	firstChunks, err := env.vectors.ListChunks(ctx, "alice")
	require.NoError(t, err)

	res := env.ingest(t, "alice", aliceText, fields)
	assert.Equal(t, 2, res.Version)

	n, err := env.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Chunks, n)

	doc, err := env.metadata.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, firstDoc.Fields, doc.Fields)
	assert.Equal(t, firstDoc.CreatedAt, doc.CreatedAt)

	chunks, err := env.vectors.ListChunks(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, chunks, len(firstChunks))
	for i := range chunks {
		assert.Equal(t, firstChunks[i].Text, chunks[i].Text)
		assert.Equal(t, firstChunks[i].Sequence, chunks[i].Sequence)
		assert.Equal(t, 2, chunks[i].Version)
	}
}

func TestIngest_ReplaceThenDeleteByContentID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.coord.Ingest(ctx, domain.IngestRequest{
		Text:   aliceText,
		Fields: domain.Fields{"skills": []string{"python"}, "years_experience": 3},
	})
	require.NoError(t, err)
	h1 := first.DocumentID
	assert.Equal(t, domain.DocumentIDFromText(aliceText), h1)

	second, err := env.coord.Ingest(ctx, domain.IngestRequest{
		Text:   aliceText,
		Fields: domain.Fields{"skills": []string{"python", "django"}, "years_experience": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, h1, second.DocumentID)
	assert.Equal(t, 2, second.Version)

	doc, err := env.metadata.Get(ctx, h1)
	require.NoError(t, err)
	skills, _ := doc.Fields.StringSet("skills")
	assert.Equal(t, []string{"django", "python"}, skills)

	chunks, err := env.vectors.ListChunks(ctx, h1)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, 2, ch.Version)
	}

	require.NoError(t, env.coord.Delete(ctx, h1))
	_, err = env.metadata.Get(ctx, h1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	vec, err := env.embedder.Embed(ctx, "python")
	require.NoError(t, err)
	hits, err := env.vectors.Search(ctx, vec, 10, &driven.VectorFilter{DocumentIDs: []string{h1}})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIngest_RejectsEmptyTextWithoutHint(t *testing.T) {
	env := newTestEnv(t)

	for _, text := range []string{"", "  \n\t "} {
		_, err := env.coord.Ingest(context.Background(), domain.IngestRequest{Text: text})
		require.ErrorIs(t, err, domain.ErrInvalidInput)
		requireStage(t, err, domain.StageValidate)
	}

	n, err := env.metadata.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"failed:validate", "failed:validate"}, env.metrics.ingests)
}

func TestIngest_RejectsInvalidUTF8(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.coord.Ingest(context.Background(), domain.IngestRequest{
		IDHint: "broken",
		Text:   "python \xff\xfe developer",
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	requireStage(t, err, domain.StageValidate)
	assert.Zero(t, env.provider.callCount())
}

func TestIngest_EmptyTextStoresRecordWithoutChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.ingest(t, "blank", "   ", domain.Fields{"name": "Blank"})
	assert.Zero(t, res.Chunks)

	doc, err := env.metadata.Get(ctx, "blank")
	require.NoError(t, err)
	assert.Zero(t, doc.ChunkCount)

	report, err := env.coord.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestIngest_InvalidFields(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.coord.Ingest(context.Background(), domain.IngestRequest{
		IDHint: "bad",
		Text:   aliceText,
		Fields: domain.Fields{"years_experience": "many"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	requireStage(t, err, domain.StageValidate)
	assert.Zero(t, env.provider.callCount())
}

func TestIngest_EmbeddingFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ingest(t, "alice", aliceText, nil)

	down := errors.New("503 service unavailable")
	env.provider.failNext(down, down, down)

	_, err := env.coord.Ingest(ctx, domain.IngestRequest{IDHint: "alice", Text: bobText})
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	requireStage(t, err, domain.StageEmbed)

	doc, err := env.metadata.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, aliceText, doc.Text)

	chunks, err := env.vectors.ListChunks(ctx, "alice")
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.Equal(t, 1, ch.Version)
	}
	assert.Equal(t, []string{"created", "failed:embed"}, env.metrics.ingests)
}

func TestIngest_TransientEmbeddingFailureRetried(t *testing.T) {
	env := newTestEnv(t)
	env.provider.failNext(errors.New("timeout"))

	res := env.ingest(t, "alice", aliceText, nil)
	assert.Equal(t, 1, res.Version)
	assert.Contains(t, env.metrics.retries, "embed")
}

func TestIngest_ChunkWriteFailureIsRepairable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ingest(t, "alice", aliceText, nil)

	env.vectors.inject("upsert", storeUnavailable(), storeUnavailable(), storeUnavailable())
	_, err := env.coord.Ingest(ctx, domain.IngestRequest{IDHint: "alice", Text: bobText})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	requireStage(t, err, domain.StageWriteChunks)

	// The record still describes version 1, whose chunks are gone.
	doc, err := env.metadata.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)

	report, err := env.coord.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, report.Inconsistent, 1)
	assert.Equal(t, ReasonMissingChunks, report.Inconsistent[0].Reason)
	assert.Equal(t, []string{ReasonMissingChunks}, env.metrics.inconsistencies)

	repaired, err := env.coord.Repair(ctx, report)
	require.NoError(t, err)
	require.Len(t, repaired.Reingested, 1)
	assert.Equal(t, 2, repaired.Reingested[0].Version)

	report, err = env.coord.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestIngest_MetadataWriteFailureIsRepairable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ingest(t, "alice", aliceText, nil)

	env.metadata.inject("put", storeUnavailable(), storeUnavailable(), storeUnavailable())
	_, err := env.coord.Ingest(ctx, domain.IngestRequest{IDHint: "alice", Text: bobText})
	requireStage(t, err, domain.StageWriteMetadata)
	assert.Equal(t, 4, env.metadata.count("put"), "one successful write plus three attempts")

	report, err := env.coord.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, report.Inconsistent, 1)
	assert.Equal(t, ReasonMixedVersions, report.Inconsistent[0].Reason)

	_, err = env.coord.Repair(ctx, report)
	require.NoError(t, err)

	doc, err := env.metadata.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)
	assert.Equal(t, aliceText, doc.Text, "repair re-ingests the stored text")

	report, err = env.coord.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestIngest_WritePhaseIgnoresCallerCancellation(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env.vectors.beforeDelete = cancel
	res, err := env.coord.Ingest(ctx, domain.IngestRequest{IDHint: "alice", Text: aliceText})
	require.NoError(t, err)

	doc, err := env.metadata.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, res.Version, doc.Version)
}

func TestIngest_CancelledBeforeStart(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.coord.Ingest(ctx, domain.IngestRequest{IDHint: "alice", Text: aliceText})
	require.Error(t, err)

	_, err = env.metadata.Get(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngest_ExtractorFillsMissingFields(t *testing.T) {
	var sources []string
	var mu sync.Mutex
	env := newTestEnv(t, func(c *envConfig) {
		c.ingestOpts = []IngestOption{WithExtractor(func(_, source string) domain.Fields {
			mu.Lock()
			sources = append(sources, source)
			mu.Unlock()
			return domain.Fields{"name": "Extracted", "skills": []string{"python"}}
		})}
	})
	ctx := context.Background()

	_, err := env.coord.Ingest(ctx, domain.IngestRequest{
		IDHint: "alice", Text: aliceText, Source: "alice.txt",
		Fields: domain.Fields{"name": "Alice"},
	})
	require.NoError(t, err)
	doc, err := env.metadata.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", doc.Fields["name"])
	assert.Equal(t, []string{"python"}, doc.Fields["skills"])
	assert.Equal(t, []string{"alice.txt"}, sources)

	_, err = env.coord.Ingest(ctx, domain.IngestRequest{IDHint: "bob", Text: bobText, NoExtract: true})
	require.NoError(t, err)
	doc, err = env.metadata.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, doc.Fields)
}

func TestIngestBatch_IndependentResultsInOrder(t *testing.T) {
	env := newTestEnv(t, func(c *envConfig) {
		c.ingestOpts = []IngestOption{WithBatchConcurrency(2)}
	})

	results := env.coord.IngestBatch(context.Background(), []domain.IngestRequest{
		{IDHint: "alice", Text: aliceText},
		{IDHint: "bad", Text: bobText, Fields: domain.Fields{"years_experience": "lots"}},
		{IDHint: "bob", Text: bobText},
		{IDHint: "alice", Text: bobText},
	})

	require.Len(t, results, 4)
	assert.True(t, results[0].OK())
	assert.Equal(t, 1, results[0].Version)
	assert.False(t, results[1].OK())
	assert.Equal(t, "bad", results[1].DocumentID)
	assert.ErrorIs(t, results[1].Err, domain.ErrInvalidInput)
	assert.True(t, results[2].OK())
	assert.Equal(t, "bob", results[2].DocumentID)
	assert.True(t, results[3].OK())
	assert.Equal(t, 2, results[3].Version, "duplicate ids run in input order")
}

func TestIngest_ConcurrentSameDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := aliceText
			if i%2 == 1 {
				text = bobText
			}
			_, err := env.coord.Ingest(ctx, domain.IngestRequest{IDHint: "alice", Text: text})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	doc, err := env.metadata.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, writers, doc.Version)

	chunks, err := env.vectors.ListChunks(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, chunks, doc.ChunkCount)
	for _, ch := range chunks {
		assert.Equal(t, writers, ch.Version)
	}
	assert.Zero(t, env.coord.locks.Len())
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ingest(t, "alice", aliceText, nil)
	env.ingest(t, "bob", bobText, nil)

	require.NoError(t, env.coord.Delete(ctx, "alice"))

	_, err := env.metadata.Get(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err := env.vectors.ListChunks(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	bobChunks, err := env.vectors.ListChunks(ctx, "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, bobChunks)

	assert.ErrorIs(t, env.coord.Delete(ctx, "alice"), domain.ErrNotFound)
}

func TestDelete_UnknownSweepsStrayChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.vectors.UpsertChunks(ctx, []domain.Chunk{
		{ID: "stray-1", DocumentID: "ghost", Version: 1, Text: "python", Vector: keywordVector("python")},
	}))

	err := env.coord.Delete(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)

	n, err := env.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDelete_ChunkFailureKeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ingest(t, "alice", aliceText, nil)

	env.vectors.inject("delete", storeUnavailable(), storeUnavailable(), storeUnavailable())
	err := env.coord.Delete(ctx, "alice")
	requireStage(t, err, domain.StageDeleteChunks)

	_, err = env.metadata.Get(ctx, "alice")
	assert.NoError(t, err)
}

func TestAudit_OrphansRepaired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ingest(t, "alice", aliceText, nil)

	require.NoError(t, env.vectors.UpsertChunks(ctx, []domain.Chunk{
		{ID: "orphan-1", DocumentID: "ghost", Version: 3, Text: "java", Vector: keywordVector("java")},
	}))

	report, err := env.coord.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, []string{"ghost"}, report.Orphans)
	assert.Empty(t, report.Inconsistent)
	assert.Equal(t, []string{"orphan"}, env.metrics.inconsistencies)

	result, err := env.coord.Repair(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, result.OrphansDeleted)

	report, err = env.coord.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestRepair_SkipsItemsFixedSinceAudit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ingest(t, "alice", aliceText, nil)

	require.NoError(t, env.vectors.DeleteByDocumentID(ctx, "alice"))
	report, err := env.coord.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, report.Inconsistent, 1)

	// A fresh ingest fixes the document before repair runs.
	env.ingest(t, "alice", aliceText, nil)

	result, err := env.coord.Repair(ctx, report)
	require.NoError(t, err)
	assert.Empty(t, result.Reingested)

	doc, err := env.metadata.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)
}

package services

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cvsearch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/cvsearch/internal/chunker"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// vocabulary gives each keyword its own vector dimension so similarity in
// tests is predictable. The last dimension is a small constant bias that
// keeps every vector non-zero.
var vocabulary = []string{"python", "java", "golang", "kubernetes", "aws", "sql", "react", "rust"}

// fastRetry keeps retry tests quick.
var fastRetry = RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

// fakeProvider is a deterministic keyword-count embedding provider.
type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	inputs   []string
	failures []error

	// wrongCount returns one vector too few when set.
	wrongCount bool
}

var _ driven.EmbeddingService = (*fakeProvider)(nil)

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(vocabulary)+1)
	for i, w := range vocabulary {
		v[i] = float32(strings.Count(lower, w))
	}
	v[len(vocabulary)] = 0.1
	return v
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		if err != nil {
			return nil, err
		}
	}
	f.inputs = append(f.inputs, texts...)
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, keywordVector(t))
	}
	if f.wrongCount && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeProvider) Dimensions() int            { return len(vocabulary) + 1 }
func (f *fakeProvider) ModelName() string          { return "keywords" }
func (f *fakeProvider) Ping(context.Context) error { return nil }
func (f *fakeProvider) Close() error               { return nil }

func (f *fakeProvider) failNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, errs...)
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// faults holds queued errors per operation name.
type faults struct {
	mu     sync.Mutex
	queued map[string][]error
	counts map[string]int
}

func (f *faults) inject(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queued == nil {
		f.queued = make(map[string][]error)
	}
	f.queued[op] = append(f.queued[op], errs...)
}

func (f *faults) next(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[op]++
	q := f.queued[op]
	if len(q) == 0 {
		return nil
	}
	f.queued[op] = q[1:]
	return q[0]
}

func (f *faults) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op]
}

// faultyVectors injects failures into a vector index.
type faultyVectors struct {
	driven.VectorIndex
	faults

	// beforeDelete runs at the start of DeleteByDocumentID.
	beforeDelete func()
}

func (v *faultyVectors) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if err := v.next("upsert"); err != nil {
		return err
	}
	return v.VectorIndex.UpsertChunks(ctx, chunks)
}

func (v *faultyVectors) DeleteByDocumentID(ctx context.Context, id string) error {
	if v.beforeDelete != nil {
		v.beforeDelete()
	}
	if err := v.next("delete"); err != nil {
		return err
	}
	return v.VectorIndex.DeleteByDocumentID(ctx, id)
}

func (v *faultyVectors) Search(ctx context.Context, q []float32, k int, f *driven.VectorFilter) ([]driven.VectorHit, error) {
	if err := v.next("search"); err != nil {
		return nil, err
	}
	return v.VectorIndex.Search(ctx, q, k, f)
}

// faultyMetadata injects failures into a metadata store.
type faultyMetadata struct {
	driven.MetadataStore
	faults
}

func (m *faultyMetadata) Get(ctx context.Context, id string) (*domain.Document, error) {
	if err := m.next("get"); err != nil {
		return nil, err
	}
	return m.MetadataStore.Get(ctx, id)
}

func (m *faultyMetadata) Put(ctx context.Context, doc *domain.Document, expected int) error {
	if err := m.next("put"); err != nil {
		return err
	}
	return m.MetadataStore.Put(ctx, doc, expected)
}

func (m *faultyMetadata) Find(ctx context.Context, f domain.Filter) ([]string, error) {
	if err := m.next("find"); err != nil {
		return nil, err
	}
	return m.MetadataStore.Find(ctx, f)
}

// recordingMetrics captures observations.
type recordingMetrics struct {
	mu              sync.Mutex
	ingests         []string
	plans           []domain.Plan
	candidates      []int
	inconsistencies []string
	retries         []string
}

var _ driven.Metrics = (*recordingMetrics)(nil)

func (r *recordingMetrics) ObserveIngest(created bool, stage domain.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case stage != "":
		r.ingests = append(r.ingests, "failed:"+string(stage))
	case created:
		r.ingests = append(r.ingests, "created")
	default:
		r.ingests = append(r.ingests, "updated")
	}
}

func (r *recordingMetrics) ObserveStage(domain.Stage, time.Duration) {}

func (r *recordingMetrics) ObserveSearch(plan domain.Plan, candidates int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans = append(r.plans, plan)
	r.candidates = append(r.candidates, candidates)
}

func (r *recordingMetrics) ObserveInconsistency(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inconsistencies = append(r.inconsistencies, reason)
}

func (r *recordingMetrics) ObserveRetry(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = append(r.retries, op)
}

// testEnv wires the services over memory stores.
type testEnv struct {
	provider *fakeProvider
	vectors  *faultyVectors
	metadata *faultyMetadata
	metrics  *recordingMetrics
	embedder *Embedder
	coord    *IngestionCoordinator
	planner  *HybridQueryPlanner
	docs     *DocumentService
}

type envConfig struct {
	planner     domain.PlannerSettings
	ingestOpts  []IngestOption
	chunkSize   int
	chunkOverlp int
}

func newTestEnv(t *testing.T, cfgs ...func(*envConfig)) *testEnv {
	t.Helper()

	cfg := envConfig{chunkSize: 60, chunkOverlp: 10}
	for _, fn := range cfgs {
		fn(&cfg)
	}

	ch, err := chunker.New(cfg.chunkSize, cfg.chunkOverlp)
	require.NoError(t, err)

	env := &testEnv{
		provider: &fakeProvider{},
		vectors:  &faultyVectors{VectorIndex: memory.NewVectorIndex()},
		metadata: &faultyMetadata{MetadataStore: memory.NewMetadataStore()},
		metrics:  &recordingMetrics{},
	}
	env.embedder = NewEmbedder(env.provider, WithEmbedRetry(fastRetry), WithEmbedMetrics(env.metrics))

	schema := domain.DefaultSchema()
	opts := append([]IngestOption{
		WithStoreRetry(fastRetry, fastRetry),
		WithIngestMetrics(env.metrics),
	}, cfg.ingestOpts...)
	env.coord = NewIngestionCoordinator(ch, env.embedder, env.vectors, env.metadata, schema, opts...)
	env.planner = NewHybridQueryPlanner(env.embedder, env.vectors, env.metadata, schema,
		WithPlannerSettings(cfg.planner),
		WithReadRetry(fastRetry),
		WithSearchMetrics(env.metrics),
	)
	env.docs = NewDocumentService(env.metadata, env.vectors, schema)
	env.docs.policy = fastRetry
	return env
}

func (e *testEnv) ingest(t *testing.T, id, text string, fields domain.Fields) *domain.IngestResult {
	t.Helper()
	res, err := e.coord.Ingest(context.Background(), domain.IngestRequest{IDHint: id, Text: text, Fields: fields})
	require.NoError(t, err)
	return res
}

func near(t *testing.T, want, got float64) {
	t.Helper()
	require.Less(t, math.Abs(want-got), 1e-5, "want %v, got %v", want, got)
}

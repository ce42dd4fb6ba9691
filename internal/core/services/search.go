package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driving"
	"github.com/custodia-labs/cvsearch/internal/logger"
)

// Ensure HybridQueryPlanner implements the interface.
var _ driving.SearchService = (*HybridQueryPlanner)(nil)

// DefaultQueryTimeout bounds a whole search.
const DefaultQueryTimeout = 15 * time.Second

// HybridQueryPlanner chooses between filter-first and search-first
// retrieval and merges chunk hits into a ranked document list.
//
// When a filter resolves to a bounded candidate set, similarity search is
// restricted to those documents with k equal to their total chunk count,
// so every matching document is ranked. Only broad filters and unfiltered
// queries fall back to over-fetching.
type HybridQueryPlanner struct {
	embedder *Embedder
	vectors  driven.VectorIndex
	metadata driven.MetadataStore
	schema   domain.Schema
	cfg      domain.PlannerSettings
	timeout  time.Duration
	policy   RetryPolicy
	metrics  driven.Metrics
}

// PlannerOption configures a HybridQueryPlanner.
type PlannerOption func(*HybridQueryPlanner)

// WithPlannerSettings overrides thresholds and limits. Zero values keep
// the defaults.
func WithPlannerSettings(s domain.PlannerSettings) PlannerOption {
	return func(p *HybridQueryPlanner) {
		if s.DefaultLimit > 0 {
			p.cfg.DefaultLimit = s.DefaultLimit
		}
		if s.MaxLimit > 0 {
			p.cfg.MaxLimit = s.MaxLimit
		}
		if s.SelectiveThreshold > 0 {
			p.cfg.SelectiveThreshold = s.SelectiveThreshold
		}
		if s.OverFetch > 0 {
			p.cfg.OverFetch = s.OverFetch
		}
		if s.ExhaustiveThreshold > 0 {
			p.cfg.ExhaustiveThreshold = s.ExhaustiveThreshold
		}
		if s.WidenRounds > 0 {
			p.cfg.WidenRounds = s.WidenRounds
		}
	}
}

// WithQueryTimeout bounds each search.
func WithQueryTimeout(d time.Duration) PlannerOption {
	return func(p *HybridQueryPlanner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithReadRetry sets the retry policy for store reads.
func WithReadRetry(r RetryPolicy) PlannerOption {
	return func(p *HybridQueryPlanner) {
		p.policy = r
	}
}

// WithSearchMetrics records plan choices.
func WithSearchMetrics(m driven.Metrics) PlannerOption {
	return func(p *HybridQueryPlanner) {
		p.metrics = m
	}
}

// NewHybridQueryPlanner creates a planner.
func NewHybridQueryPlanner(
	embedder *Embedder,
	vectors driven.VectorIndex,
	metadata driven.MetadataStore,
	schema domain.Schema,
	opts ...PlannerOption,
) *HybridQueryPlanner {
	p := &HybridQueryPlanner{
		embedder: embedder,
		vectors:  vectors,
		metadata: metadata,
		schema:   schema,
		cfg:      domain.DefaultAppSettings().Planner,
		timeout:  DefaultQueryTimeout,
		policy:   ReadRetryPolicy,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.metrics = metricsOrNop(p.metrics)
	return p
}

// scoredDoc is a document's best chunk before hydration.
type scoredDoc struct {
	id        string
	score     float64
	highlight string
	chunkID   string

	// hit is false for candidates without any matching chunk.
	hit bool
}

// Search validates the request, picks a plan and returns ranked documents.
func (p *HybridQueryPlanner) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	logger.Section("Search")
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" && req.Filter.IsEmpty() {
		return nil, fmt.Errorf("%w: empty query with no filter", domain.ErrBadQuery)
	}
	filter, err := req.Filter.Normalise(p.schema)
	if err != nil {
		return nil, err
	}
	limit := p.requested(req.Limit)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var resp *domain.SearchResponse
	if filter.IsEmpty() {
		resp, err = p.searchOnly(ctx, query, p.capped(limit))
	} else {
		resp, err = p.filtered(ctx, query, filter, limit)
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.metrics.ObserveSearch(resp.Plan, resp.Candidates, time.Since(start))
	logger.Info("plan %s: %d results (candidates %d) in %s", resp.Plan, len(resp.Results), resp.Candidates, time.Since(start).Round(time.Millisecond))
	return resp, nil
}

// requested applies the default limit but not the cap. A selective
// candidate set is returned in full when the caller asks for all of it.
func (p *HybridQueryPlanner) requested(n int) int {
	if n <= 0 {
		return p.cfg.DefaultLimit
	}
	return n
}

func (p *HybridQueryPlanner) capped(n int) int {
	return min(n, p.cfg.MaxLimit)
}

func (p *HybridQueryPlanner) filtered(ctx context.Context, query string, filter domain.Filter, limit int) (*domain.SearchResponse, error) {
	var candidates []string
	err := p.read(ctx, "find", func(ctx context.Context) error {
		var err error
		candidates, err = p.metadata.Find(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve filter: %w", err)
	}
	logger.Debug("filter %v matched %d documents", filter, len(candidates))

	if len(candidates) > p.cfg.SelectiveThreshold {
		limit = p.capped(limit)
	}
	switch {
	case query == "":
		return p.filterOnly(ctx, candidates, limit)
	case len(candidates) <= p.cfg.SelectiveThreshold:
		return p.filterThenSearch(ctx, query, candidates, limit)
	default:
		return p.searchThenFilter(ctx, query, candidates, limit)
	}
}

// filterOnly returns candidates in id order without an embedding call.
func (p *HybridQueryPlanner) filterOnly(ctx context.Context, candidates []string, limit int) (*domain.SearchResponse, error) {
	resp := &domain.SearchResponse{Plan: domain.PlanFilterOnly, Candidates: len(candidates)}

	ids := candidates
	if len(ids) > limit {
		ids = ids[:limit]
	}
	docs, err := p.getMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if doc, ok := docs[id]; ok {
			resp.Results = append(resp.Results, domain.SearchResult{Document: doc})
		}
	}
	return resp, nil
}

// filterThenSearch ranks every candidate by searching only their chunks.
func (p *HybridQueryPlanner) filterThenSearch(ctx context.Context, query string, candidates []string, limit int) (*domain.SearchResponse, error) {
	resp := &domain.SearchResponse{Plan: domain.PlanFilterThenSearch, Candidates: len(candidates)}
	if len(candidates) == 0 {
		return resp, nil
	}

	docs, err := p.getMany(ctx, candidates)
	if err != nil {
		return nil, err
	}
	k := 0
	for _, d := range docs {
		k += d.ChunkCount
	}

	best := make(map[string]scoredDoc, len(docs))
	if k > 0 {
		vec, err := p.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		filter := &driven.VectorFilter{DocumentIDs: candidates}

		// One slot past every chunk the records claim. A full page means
		// the index holds more than that, so widen.
		n := k + 1
		for round := 0; ; round++ {
			hits, err := p.search(ctx, vec, n, filter)
			if err != nil {
				return nil, err
			}
			best = bestPerDocument(hits)
			if len(hits) < n || round >= p.cfg.WidenRounds {
				break
			}
			n *= 4
		}
	}

	// Candidates without hits are still reported so coverage is exact.
	ranked := make([]scoredDoc, 0, len(docs))
	for id := range docs {
		if s, ok := best[id]; ok {
			ranked = append(ranked, s)
		} else {
			ranked = append(ranked, scoredDoc{id: id})
		}
	}
	resp.Results = hydrate(rank(ranked), docs, limit)
	return resp, nil
}

// searchThenFilter over-fetches unfiltered hits and keeps candidates.
func (p *HybridQueryPlanner) searchThenFilter(ctx context.Context, query string, candidates []string, limit int) (*domain.SearchResponse, error) {
	resp := &domain.SearchResponse{Plan: domain.PlanSearchThenFilter, Candidates: len(candidates)}

	allowed := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		allowed[id] = true
	}

	ranked, err := p.overFetch(ctx, query, limit*p.cfg.OverFetch, limit, allowed)
	if err != nil {
		return nil, err
	}
	resp.Results, err = p.hydrate(ctx, ranked, limit)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// searchOnly ranks the whole index, scanning it fully when it is small.
func (p *HybridQueryPlanner) searchOnly(ctx context.Context, query string, limit int) (*domain.SearchResponse, error) {
	resp := &domain.SearchResponse{Plan: domain.PlanSearchOnly, Candidates: -1}

	var total int
	err := p.read(ctx, "count", func(ctx context.Context) error {
		var err error
		total, err = p.vectors.Count(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if total == 0 {
		return resp, nil
	}

	rawK := limit * p.cfg.OverFetch
	if total <= p.cfg.ExhaustiveThreshold {
		rawK = total
	}

	ranked, err := p.overFetch(ctx, query, rawK, limit, nil)
	if err != nil {
		return nil, err
	}
	resp.Results, err = p.hydrate(ctx, ranked, limit)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// overFetch searches unfiltered with rawK, widening by 4x while fewer than
// limit distinct allowed documents survive and the index had more hits.
// A nil allowed set admits every document.
func (p *HybridQueryPlanner) overFetch(ctx context.Context, query string, rawK, limit int, allowed map[string]bool) ([]scoredDoc, error) {
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var best map[string]scoredDoc
	for round := 0; ; round++ {
		hits, err := p.search(ctx, vec, rawK, nil)
		if err != nil {
			return nil, err
		}
		best = bestPerDocument(hits)
		if allowed != nil {
			for id := range best {
				if !allowed[id] {
					delete(best, id)
				}
			}
		}
		logger.Debug("over-fetch round %d: k=%d hits=%d documents=%d", round, rawK, len(hits), len(best))
		if len(best) >= limit || len(hits) < rawK || round >= p.cfg.WidenRounds {
			break
		}
		rawK *= 4
	}

	ranked := make([]scoredDoc, 0, len(best))
	for _, s := range best {
		ranked = append(ranked, s)
	}
	return rank(ranked), nil
}

// hydrate loads records for ranked documents, dropping hits whose record is
// missing, and truncates to limit.
func (p *HybridQueryPlanner) hydrate(ctx context.Context, ranked []scoredDoc, limit int) ([]domain.SearchResult, error) {
	ids := make([]string, len(ranked))
	for i, s := range ranked {
		ids[i] = s.id
	}
	docs, err := p.getMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	if dropped := len(ranked) - len(docs); dropped > 0 {
		logger.Debug("dropped %d hits without metadata records", dropped)
	}
	return hydrate(ranked, docs, limit), nil
}

func hydrate(ranked []scoredDoc, docs map[string]domain.Document, limit int) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, limit)
	for _, s := range ranked {
		if len(results) == limit {
			break
		}
		doc, ok := docs[s.id]
		if !ok {
			continue
		}
		results = append(results, domain.SearchResult{
			Document:  doc,
			Score:     s.score,
			Highlight: s.highlight,
			ChunkID:   s.chunkID,
		})
	}
	return results
}

// bestPerDocument keeps each document's maximum-scoring chunk.
func bestPerDocument(hits []driven.VectorHit) map[string]scoredDoc {
	best := make(map[string]scoredDoc)
	for _, h := range hits {
		id := h.Chunk.DocumentID
		cur, ok := best[id]
		if !ok || h.Score > cur.score {
			best[id] = scoredDoc{id: id, score: h.Score, highlight: h.Chunk.Text, chunkID: h.Chunk.ID, hit: true}
		}
	}
	return best
}

// rank sorts by score descending, then document id ascending. Documents
// without hits sort last.
func rank(docs []scoredDoc) []scoredDoc {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].hit != docs[j].hit {
			return docs[i].hit
		}
		if docs[i].score != docs[j].score {
			return docs[i].score > docs[j].score
		}
		return docs[i].id < docs[j].id
	})
	return docs
}

func (p *HybridQueryPlanner) search(ctx context.Context, vec []float32, k int, filter *driven.VectorFilter) ([]driven.VectorHit, error) {
	var hits []driven.VectorHit
	err := p.read(ctx, "vector_search", func(ctx context.Context) error {
		var err error
		hits, err = p.vectors.Search(ctx, vec, k, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

func (p *HybridQueryPlanner) getMany(ctx context.Context, ids []string) (map[string]domain.Document, error) {
	var docs []domain.Document
	err := p.read(ctx, "metadata_get_many", func(ctx context.Context) error {
		var err error
		docs, err = p.metadata.GetMany(ctx, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	out := make(map[string]domain.Document, len(docs))
	for _, d := range docs {
		out[d.ID] = d
	}
	return out, nil
}

func (p *HybridQueryPlanner) read(ctx context.Context, op string, fn func(context.Context) error) error {
	return retry(ctx, p.policy, op, func(time.Duration) { p.metrics.ObserveRetry(op) }, fn)
}

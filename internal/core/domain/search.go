package domain

// Plan names the retrieval strategy chosen for a search.
type Plan string

// Retrieval plans.
const (
	// PlanFilterOnly resolves the filter and skips the embedding call.
	PlanFilterOnly Plan = "filter_only"

	// PlanFilterThenSearch restricts similarity search to the candidate set.
	PlanFilterThenSearch Plan = "filter_then_search"

	// PlanSearchThenFilter over-fetches unfiltered hits and drops non-candidates.
	PlanSearchThenFilter Plan = "search_then_filter"

	// PlanSearchOnly ranks the whole index by similarity.
	PlanSearchOnly Plan = "search_only"
)

// String returns the string representation.
func (p Plan) String() string {
	return string(p)
}

// FullCoverage reports whether every document matching the filter is
// guaranteed to be ranked.
func (p Plan) FullCoverage() bool {
	return p == PlanFilterOnly || p == PlanFilterThenSearch
}

// SearchRequest is a hybrid search query.
type SearchRequest struct {
	// Query is the natural-language text. May be empty when Filter is set.
	Query string

	// Filter restricts results to documents matching every predicate.
	Filter Filter

	// Limit is the number of distinct documents wanted.
	Limit int
}

// SearchResult represents a single ranked document.
type SearchResult struct {
	// Document is the matched document.
	Document Document

	// Score is the maximum chunk similarity.
	Score float64

	// Highlight is the text of the best chunk.
	Highlight string

	// ChunkID identifies the best chunk. Empty when nothing was embedded.
	ChunkID string
}

// SearchResponse is the ranked result of a search.
type SearchResponse struct {
	Plan    Plan
	Results []SearchResult

	// Candidates is the size of the filter's candidate set, or -1 when no
	// filter applied.
	Candidates int
}

package domain

// Inconsistency describes a document whose chunks do not match its record.
type Inconsistency struct {
	DocumentID string
	Version    int

	// Chunks is the number of chunks found in the vector index.
	Chunks int

	// StaleChunks counts chunks carrying a version other than Version.
	StaleChunks int

	Reason string
}

// AuditReport lists consistency violations between the two stores.
type AuditReport struct {
	// Documents is the number of metadata records examined.
	Documents int

	// Orphans are document ids with chunks but no metadata record.
	Orphans []string

	// Inconsistent are documents with missing or mixed-version chunks.
	Inconsistent []Inconsistency
}

// Clean returns true if the audit found nothing to repair.
func (r *AuditReport) Clean() bool {
	return len(r.Orphans) == 0 && len(r.Inconsistent) == 0
}

// RepairResult summarises a repair run.
type RepairResult struct {
	OrphansDeleted []string
	Reingested     []IngestResult
}

// Stats summarises the indexed corpus.
type Stats struct {
	Documents int
	Chunks    int

	// Years statistics over documents that have years_experience.
	WithYears int
	AvgYears  float64
	MinYears  float64
	MaxYears  float64
}

// HealthStatus is the overall outcome of a health check.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
)

// ComponentHealth is the result of checking one dependency.
type ComponentHealth struct {
	Name string

	// Err is nil when the component answered.
	Err error
}

// OK reports whether the component answered.
func (c ComponentHealth) OK() bool {
	return c.Err == nil
}

// Health reports whether the stores and the embedding provider answer.
type Health struct {
	Status     HealthStatus
	Components []ComponentHealth

	// Documents and Chunks are only meaningful when the matching store is OK.
	Documents int
	Chunks    int
}

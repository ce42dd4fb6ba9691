// Package metrics exports ingestion and search measurements in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

const namespace = "cvsearch"

// Verify interface compliance.
var _ driven.Metrics = (*Exporter)(nil)

// Exporter implements driven.Metrics on a Prometheus registry.
type Exporter struct {
	registry *prometheus.Registry

	ingests         *prometheus.CounterVec
	stageLatency    *prometheus.HistogramVec
	searchLatency   *prometheus.HistogramVec
	searchCandidate *prometheus.HistogramVec
	inconsistencies *prometheus.CounterVec
	retries         *prometheus.CounterVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use. A fresh registry is created when nil.
	Registry *prometheus.Registry

	// LatencyBuckets for stage and search histograms, in seconds.
	LatencyBuckets []float64
}

// DefaultConfig returns the default exporter configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}
}

// New creates an exporter and registers its collectors.
func New(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{
		registry: registry,
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Documents ingested, by outcome and failed stage",
		}, []string{"outcome", "stage"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each ingestion stage",
			Buckets:   cfg.LatencyBuckets,
		}, []string{"stage"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search latency by retrieval plan",
			Buckets:   cfg.LatencyBuckets,
		}, []string{"plan"}),
		searchCandidate: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "candidates",
			Help:      "Size of the filtered candidate set by retrieval plan",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"plan"}),
		inconsistencies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inconsistencies_total",
			Help:      "Detected consistency violations between metadata and vectors",
		}, []string{"reason"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried provider calls by operation",
		}, []string{"operation"}),
	}

	registry.MustRegister(
		e.ingests,
		e.stageLatency,
		e.searchLatency,
		e.searchCandidate,
		e.inconsistencies,
		e.retries,
	)
	return e
}

// ObserveIngest records one ingestion outcome.
func (e *Exporter) ObserveIngest(created bool, failedStage domain.Stage) {
	outcome := "updated"
	switch {
	case failedStage != "":
		outcome = "failed"
	case created:
		outcome = "created"
	}
	e.ingests.WithLabelValues(outcome, string(failedStage)).Inc()
}

// ObserveStage records the duration of an ingestion stage.
func (e *Exporter) ObserveStage(stage domain.Stage, d time.Duration) {
	e.stageLatency.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// ObserveSearch records a search. Candidate counts below zero mean no filter
// was applied and are not observed.
func (e *Exporter) ObserveSearch(plan domain.Plan, candidates int, d time.Duration) {
	e.searchLatency.WithLabelValues(plan.String()).Observe(d.Seconds())
	if candidates >= 0 {
		e.searchCandidate.WithLabelValues(plan.String()).Observe(float64(candidates))
	}
}

// ObserveInconsistency counts a consistency violation.
func (e *Exporter) ObserveInconsistency(reason string) {
	e.inconsistencies.WithLabelValues(reason).Inc()
}

// ObserveRetry counts a retried provider call.
func (e *Exporter) ObserveRetry(operation string) {
	e.retries.WithLabelValues(operation).Inc()
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns an HTTP handler serving the registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Summary returns a flat snapshot of counter values keyed by
// "name{label=value,...}", used by the CLI to print totals.
func (e *Exporter) Summary() (map[string]float64, error) {
	families, err := e.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				name += "_count"
				value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			out[name+labelString(m.GetLabel())] = value
		}
	}
	return out, nil
}

func labelString(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, l := range labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.GetName())
		b.WriteByte('=')
		b.WriteString(strconv.Quote(l.GetValue()))
	}
	b.WriteByte('}')
	return b.String()
}

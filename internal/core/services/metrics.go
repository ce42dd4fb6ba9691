package services

import (
	"time"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// nopMetrics discards all measurements.
type nopMetrics struct{}

var _ driven.Metrics = nopMetrics{}

func (nopMetrics) ObserveIngest(bool, domain.Stage) {}
func (nopMetrics) ObserveStage(domain.Stage, time.Duration) {}
func (nopMetrics) ObserveSearch(domain.Plan, int, time.Duration) {}
func (nopMetrics) ObserveInconsistency(string) {}
func (nopMetrics) ObserveRetry(string) {}

func metricsOrNop(m driven.Metrics) driven.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

package telemetry

import "hive/internal/domain"

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (NoopMetrics) ObserveCacheLookup(_ domain.CacheOutcome) {}

func (NoopMetrics) ObserveResolution(_ domain.ResolutionMetric) {}

func (NoopMetrics) SetCacheEntries(_ int) {}

func (NoopMetrics) ObserveAutomationRun(_ domain.AutomationRunMetric) {}

func (NoopMetrics) ObserveAction(_ domain.ActionMetric) {}

func (NoopMetrics) ObserveThrottledEvent(_ string) {}

var _ domain.Metrics = NoopMetrics{}
var _ domain.Metrics = (*NoopMetrics)(nil)

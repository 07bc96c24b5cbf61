package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hive/internal/domain"
)

type PrometheusMetrics struct {
	cacheLookups       *prometheus.CounterVec
	cacheEntries       prometheus.Gauge
	resolutionDuration *prometheus.HistogramVec
	automationRuns     *prometheus.CounterVec
	automationDuration *prometheus.HistogramVec
	actions            *prometheus.CounterVec
	throttledEvents    *prometheus.CounterVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hive_connection_cache_lookups_total",
				Help: "Total number of connection cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		cacheEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hive_connection_cache_entries",
				Help: "Current number of stored connection cache entries",
			},
		),
		resolutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hive_connection_resolution_duration_seconds",
				Help:    "Duration of connection source resolutions in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"segment", "status"},
		),
		automationRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hive_automation_runs_total",
				Help: "Total number of automation evaluations by trigger type and result",
			},
			[]string{"trigger_type", "result"},
		),
		automationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hive_automation_duration_seconds",
				Help:    "Duration of automation evaluations in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"trigger_type"},
		),
		actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hive_automation_actions_total",
				Help: "Total number of dispatched automation actions by type and status",
			},
			[]string{"type", "status"},
		),
		throttledEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hive_throttled_events_total",
				Help: "Total number of automation events refused by the space throttle",
			},
			[]string{"space_id"},
		),
	}
}

func (p *PrometheusMetrics) ObserveCacheLookup(outcome domain.CacheOutcome) {
	p.cacheLookups.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusMetrics) ObserveResolution(metric domain.ResolutionMetric) {
	segment := metric.SourceSegment
	if segment == "" {
		segment = "unknown"
	}
	p.resolutionDuration.WithLabelValues(segment, string(metric.Status)).Observe(metric.Duration.Seconds())
}

func (p *PrometheusMetrics) SetCacheEntries(count int) {
	p.cacheEntries.Set(float64(count))
}

func (p *PrometheusMetrics) ObserveAutomationRun(metric domain.AutomationRunMetric) {
	triggerType := string(metric.TriggerType)
	if triggerType == "" {
		triggerType = "unknown"
	}
	p.automationRuns.WithLabelValues(triggerType, string(metric.Result)).Inc()
	p.automationDuration.WithLabelValues(triggerType).Observe(metric.Duration.Seconds())
}

func (p *PrometheusMetrics) ObserveAction(metric domain.ActionMetric) {
	status := "success"
	if metric.Err != nil {
		status = "error"
	}
	p.actions.WithLabelValues(string(metric.Type), status).Inc()
}

func (p *PrometheusMetrics) ObserveThrottledEvent(spaceID string) {
	p.throttledEvents.WithLabelValues(spaceID).Inc()
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)

package app

import "hive/internal/domain"

// observabilityDefaults returns the metrics and healthz switches used when the
// config leaves them unset. HIVE_METRICS_ENABLED and HIVE_HEALTHZ_ENABLED
// replace the built-in defaults; explicit config values still win.
func observabilityDefaults() (metrics bool, healthz bool) {
	metrics = domain.DefaultObservabilityMetricsEnabled
	healthz = domain.DefaultObservabilityHealthzEnabled
	if value, ok := envBoolOptional(envMetricsEnabled); ok {
		metrics = value
	}
	if value, ok := envBoolOptional(envHealthzEnabled); ok {
		healthz = value
	}
	return metrics, healthz
}

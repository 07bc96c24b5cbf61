package domain

import "time"

// CacheOutcome labels a connection cache lookup.
type CacheOutcome string

const (
	// CacheOutcomeHit indicates a live entry was served.
	CacheOutcomeHit CacheOutcome = "hit"
	// CacheOutcomeMiss indicates no live entry existed.
	CacheOutcomeMiss CacheOutcome = "miss"
	// CacheOutcomeStale indicates an entry existed for a different connection definition.
	CacheOutcomeStale CacheOutcome = "stale"
	// CacheOutcomeBypass indicates the caller skipped the cache.
	CacheOutcomeBypass CacheOutcome = "bypass"
)

// ResolutionMetric captures one connection resolution.
type ResolutionMetric struct {
	SourceSegment string
	Status        ConnectionStatus
	Duration      time.Duration
}

// AutomationRunResult labels the outcome of one automation evaluation.
type AutomationRunResult string

const (
	AutomationRunSucceeded       AutomationRunResult = "succeeded"
	AutomationRunFailed          AutomationRunResult = "failed"
	AutomationRunNotMatched      AutomationRunResult = "not_matched"
	AutomationRunConditionsUnmet AutomationRunResult = "conditions_not_met"
	AutomationRunRateLimited     AutomationRunResult = "rate_limited"
	AutomationRunDisabled        AutomationRunResult = "disabled"
)

// AutomationRunMetric captures one automation evaluation.
type AutomationRunMetric struct {
	TriggerType TriggerType
	Result      AutomationRunResult
	Duration    time.Duration
}

// ActionMetric captures one action dispatch.
type ActionMetric struct {
	Type     ActionType
	Err      error
	Duration time.Duration
}

// Metrics records operational metrics for resolution and automation.
type Metrics interface {
	ObserveCacheLookup(outcome CacheOutcome)
	ObserveResolution(metric ResolutionMetric)
	SetCacheEntries(count int)
	ObserveAutomationRun(metric AutomationRunMetric)
	ObserveAction(metric ActionMetric)
	ObserveThrottledEvent(spaceID string)
}

package domain

import "time"

func secondsOr(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

// CountersTTL returns the cache TTL for values sourced from counters.
func (c ConnectionsConfig) CountersTTL() time.Duration {
	return secondsOr(c.CountersTTLSeconds, DefaultCountersTTLSeconds)
}

// CollectionsTTL returns the cache TTL for values sourced from collections.
func (c ConnectionsConfig) CollectionsTTL() time.Duration {
	return secondsOr(c.CollectionsTTLSeconds, DefaultCollectionsTTLSeconds)
}

// ComputedTTL returns the cache TTL for computed values and any other path.
func (c ConnectionsConfig) ComputedTTL() time.Duration {
	return secondsOr(c.ComputedTTLSeconds, DefaultComputedTTLSeconds)
}

// TimelineTTL returns the cache TTL for values sourced from the timeline.
func (c ConnectionsConfig) TimelineTTL() time.Duration {
	return secondsOr(c.TimelineTTLSeconds, DefaultTimelineTTLSeconds)
}

// EventTimeout bounds one asynchronous automation event run.
func (c AutomationConfig) EventTimeout() time.Duration {
	return secondsOr(c.EventTimeoutSeconds, DefaultEventTimeoutSeconds)
}

// ScheduleInterval returns the schedule runner tick interval.
func (c AutomationConfig) ScheduleInterval() time.Duration {
	return secondsOr(c.ScheduleIntervalSeconds, DefaultScheduleIntervalSeconds)
}

// RequestTimeout bounds one API request.
func (c HTTPConfig) RequestTimeout() time.Duration {
	return secondsOr(c.RequestTimeoutSeconds, DefaultHTTPRequestTimeoutSeconds)
}

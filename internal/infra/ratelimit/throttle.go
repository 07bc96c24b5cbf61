package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// EventThrottle is a per-space token bucket guarding event ingestion.
type EventThrottle struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*throttleEntry
	idleTTL  time.Duration
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewEventThrottle creates a throttle allowing perSecond events per space with the given burst.
// A non-positive perSecond disables throttling.
func NewEventThrottle(perSecond float64, burst int) *EventThrottle {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &EventThrottle{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*throttleEntry),
		idleTTL:  10 * time.Minute,
	}
}

// Allow consumes one token for the space at now.
func (t *EventThrottle) Allow(spaceID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.limiters[spaceID]
	if !ok {
		entry = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[spaceID] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// SetRate updates the rate for every space, including existing buckets.
func (t *EventThrottle) SetRate(perSecond float64, burst int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limit = rate.Inf
	if perSecond > 0 {
		t.limit = rate.Limit(perSecond)
	}
	if burst > 0 {
		t.burst = burst
	}
	for _, entry := range t.limiters {
		entry.limiter.SetLimitAt(now, t.limit)
		entry.limiter.SetBurstAt(now, t.burst)
	}
}

// Prune drops buckets idle since before now minus the idle TTL.
func (t *EventThrottle) Prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for spaceID, entry := range t.limiters {
		if now.Sub(entry.lastSeen) > t.idleTTL {
			delete(t.limiters, spaceID)
			removed++
		}
	}
	return removed
}

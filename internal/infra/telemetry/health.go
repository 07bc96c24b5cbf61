package telemetry

import (
	"sort"
	"sync"
	"time"
)

// HealthReport is served on /healthz.
type HealthReport struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks,omitempty"`
}

// HealthCheck reports one registered background loop.
type HealthCheck struct {
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	LastBeat time.Time `json:"lastBeat,omitempty"`
}

// HealthTracker watches background loops through heartbeats. A loop that
// misses its deadline turns the overall status to "degraded".
type HealthTracker struct {
	mu    sync.Mutex
	loops map[string]*Heartbeat
	now   func() time.Time
}

// Heartbeat is held by one background loop.
type Heartbeat struct {
	tracker *HealthTracker
	name    string
	timeout time.Duration
	last    time.Time
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		loops: make(map[string]*Heartbeat),
		now:   time.Now,
	}
}

// Register adds a loop expected to beat at least once per timeout.
func (t *HealthTracker) Register(name string, timeout time.Duration) *Heartbeat {
	t.mu.Lock()
	defer t.mu.Unlock()
	beat := &Heartbeat{tracker: t, name: name, timeout: timeout}
	t.loops[name] = beat
	return beat
}

// Unregister removes a loop, e.g. after it stops cleanly.
func (t *HealthTracker) Unregister(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.loops, name)
}

// Beat records liveness.
func (h *Heartbeat) Beat() {
	if h == nil || h.tracker == nil {
		return
	}
	h.tracker.mu.Lock()
	h.last = h.tracker.now()
	h.tracker.mu.Unlock()
}

// Report summarises every registered loop.
func (t *HealthTracker) Report() HealthReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	report := HealthReport{Status: "ok"}
	names := make([]string, 0, len(t.loops))
	for name := range t.loops {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		beat := t.loops[name]
		check := HealthCheck{Name: name, Status: "ok", LastBeat: beat.last}
		if beat.last.IsZero() || now.Sub(beat.last) > beat.timeout {
			check.Status = "stale"
			report.Status = "degraded"
		}
		report.Checks = append(report.Checks, check)
	}
	return report
}

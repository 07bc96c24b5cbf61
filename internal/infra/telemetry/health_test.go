package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthTracker_Report(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewHealthTracker()
	tracker.now = func() time.Time { return now }

	assert.Equal(t, "ok", tracker.Report().Status)

	worker := tracker.Register("automation-worker", time.Minute)
	schedule := tracker.Register("schedule-runner", time.Minute)
	assert.Equal(t, "degraded", tracker.Report().Status, "loops start stale until their first beat")

	worker.Beat()
	schedule.Beat()
	report := tracker.Report()
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, []string{"automation-worker", "schedule-runner"}, []string{report.Checks[0].Name, report.Checks[1].Name})

	now = now.Add(2 * time.Minute)
	worker.Beat()
	report = tracker.Report()
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "ok", report.Checks[0].Status)
	assert.Equal(t, "stale", report.Checks[1].Status)

	tracker.Unregister("schedule-runner")
	assert.Equal(t, "ok", tracker.Report().Status)
}

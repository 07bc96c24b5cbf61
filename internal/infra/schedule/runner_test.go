package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/domain"
)

type fakeStore struct {
	mu          sync.Mutex
	automations []domain.ToolAutomation
	next        map[string]time.Time
	listErr     error
}

func (f *fakeStore) ListScheduledAutomations(context.Context) ([]domain.ToolAutomation, error) {
	return f.automations, f.listErr
}

func (f *fakeStore) SetNextRun(_ context.Context, id string, next time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next == nil {
		f.next = map[string]time.Time{}
	}
	f.next[id] = next
	return nil
}

type capturePublisher struct {
	events []domain.AutomationEvent
}

func (c *capturePublisher) Publish(_ context.Context, event domain.AutomationEvent) error {
	c.events = append(c.events, event)
	return nil
}

func TestRunnerTick(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 30, 0, time.UTC)
	due := now.Add(-30 * time.Second)
	later := now.Add(time.Hour)
	store := &fakeStore{automations: []domain.ToolAutomation{
		{ID: "due", DeploymentID: "dep-1", SpaceID: "space", Enabled: true, Trigger: domain.ScheduleTrigger{Cron: "0 9 * * *"}, NextRun: &due},
		{ID: "fresh", DeploymentID: "dep-2", Enabled: true, Trigger: domain.ScheduleTrigger{Cron: "*/5 * * * *"}},
		{ID: "waiting", DeploymentID: "dep-3", Enabled: true, Trigger: domain.ScheduleTrigger{Cron: "0 10 * * *"}, NextRun: &later},
		{ID: "broken", DeploymentID: "dep-4", Enabled: true, Trigger: domain.ScheduleTrigger{Cron: "nope"}, NextRun: &due},
		{ID: "keyword", DeploymentID: "dep-5", Enabled: true, Trigger: domain.KeywordTrigger{Keywords: []string{"x"}}},
	}}
	publisher := &capturePublisher{}
	runner := NewRunner(store, publisher, RunnerOptions{Clock: func() time.Time { return now }})

	published, err := runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, published)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, domain.EventKindSchedule, event.Kind)
	assert.Equal(t, "due", event.Name)
	assert.Equal(t, "dep-1", event.DeploymentID)
	assert.Equal(t, "space", event.SpaceID)

	assert.Equal(t, map[string]time.Time{
		"due":   time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC),
		"fresh": time.Date(2026, 5, 4, 9, 5, 0, 0, time.UTC),
	}, store.next)
}

func TestRunnerTickListError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	runner := NewRunner(store, &capturePublisher{}, RunnerOptions{})
	_, err := runner.Tick(context.Background())
	require.Error(t, err)
}

func TestRunnerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(&fakeStore{}, &capturePublisher{}, RunnerOptions{Interval: time.Millisecond})
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

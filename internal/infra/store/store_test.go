package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/domain"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "hive.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestStoreReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hive.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.PutTool(context.Background(), domain.ToolMetadata{InstanceID: "dep-1", SpaceID: "space"}))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.GetToolMetadata(context.Background(), "dep-1")
	require.ErrorIs(t, err, ErrStoreClosed)

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, reopened.Close())
	}()
	tool, err := reopened.GetToolMetadata(context.Background(), "dep-1")
	require.NoError(t, err)
	require.NotNil(t, tool)
	assert.Equal(t, "space", tool.SpaceID)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestToolsAndSharedState(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	store := openTestStore(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	missing, err := store.GetToolMetadata(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.PutTool(ctx, domain.ToolMetadata{InstanceID: "b", SpaceID: "s1"}))
	require.NoError(t, store.PutTool(ctx, domain.ToolMetadata{InstanceID: "a", SpaceID: "s1"}))
	require.NoError(t, store.PutTool(ctx, domain.ToolMetadata{InstanceID: "c", SpaceID: "s2"}))
	err = store.PutTool(ctx, domain.ToolMetadata{})
	assert.Equal(t, domain.CodeInvalidArgument, codeOf(err))

	tools, err := store.ListTools(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "a", tools[0].InstanceID)
	assert.Equal(t, "b", tools[1].InstanceID)

	state, err := store.GetToolSharedState(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, state)

	written, err := store.PutSharedState(ctx, "a", domain.SharedState{Counters: map[string]float64{"members": 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), written.Version)
	assert.Equal(t, now, written.LastModified)

	written, err = store.PutSharedState(ctx, "a", domain.SharedState{Counters: map[string]float64{"members": 4}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), written.Version)

	state, err = store.GetToolSharedState(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 4.0, state.Counters["members"])
	assert.Equal(t, int64(2), state.Version)
}

func TestElementsAndMutation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutElement(ctx, domain.ToolElement{InstanceID: "dep", ElementID: "z-banner"}))
	require.NoError(t, store.PutElement(ctx, domain.ToolElement{
		InstanceID: "dep",
		ElementID:  "a-counter",
		Config:     map[string]any{"label": "Members"},
	}))

	elements, err := store.GetToolElements(ctx, "dep")
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "a-counter", elements[0].ElementID)
	assert.NotNil(t, elements[1].Config)

	none, err := store.GetToolElements(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, store.MutateElement(ctx, "dep", "a-counter", map[string]any{
		"label":       "Active",
		"style.color": "red",
	}))
	elements, err = store.GetToolElements(ctx, "dep")
	require.NoError(t, err)
	assert.Equal(t, "Active", elements[0].Config["label"])
	assert.Equal(t, map[string]any{"color": "red"}, elements[0].Config["style"])

	err = store.MutateElement(ctx, "dep", "missing", map[string]any{"x": 1})
	require.ErrorIs(t, err, domain.ErrToolNotFound)
	assert.Equal(t, domain.CodeNotFound, codeOf(err))
}

func TestConnections(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	conns := []domain.ToolConnection{
		{ID: "c2", SpaceID: "s1", Source: domain.ConnectionSource{InstanceID: "src", Path: "counters.members"},
			Target: domain.ConnectionTarget{InstanceID: "dst", ElementID: "e1", InputPath: "value"}, Enabled: true},
		{ID: "c1", Source: domain.ConnectionSource{InstanceID: "src", Path: "counters.views"},
			Target: domain.ConnectionTarget{InstanceID: "dst", ElementID: "e2", InputPath: "value"}, Enabled: false},
		{ID: "c3", SpaceID: "s2", Target: domain.ConnectionTarget{InstanceID: "dst"}},
		{ID: "c4", Target: domain.ConnectionTarget{InstanceID: "elsewhere"}},
	}
	for _, conn := range conns {
		require.NoError(t, store.PutConnection(ctx, conn))
	}

	incoming, err := store.GetIncomingConnections(ctx, "dst", "s1")
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	assert.Equal(t, "c1", incoming[0].ID)
	assert.Equal(t, "c2", incoming[1].ID)

	all, err := store.GetIncomingConnections(ctx, "dst", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	conn, err := store.GetConnection(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "counters.members", conn.Source.Path)

	require.NoError(t, store.DeleteConnection(ctx, "c2"))
	_, err = store.GetConnection(ctx, "c2")
	require.ErrorIs(t, err, domain.ErrConnectionNotFound)

	listed, err := store.ListConnections(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestAutomationsRoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	store := openTestStore(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, store.PutTool(ctx, domain.ToolMetadata{InstanceID: "dep-1", SpaceID: "space"}))
	automation := domain.ToolAutomation{
		ID:           "auto-1",
		DeploymentID: "dep-1",
		Name:         "Welcome",
		Enabled:      true,
		Trigger:      domain.KeywordTrigger{Keywords: []string{"hello"}},
		Conditions:   []domain.Condition{{Field: "counters.members", Operator: domain.OperatorGreaterThan, Value: 1.0}},
		Actions: []domain.Action{
			domain.NotifyAction{Channel: domain.NotifyChannelEmail, To: "owner@example.com", Title: "Hi"},
			domain.MutateAction{ElementID: "banner", Mutation: map[string]any{"text": "hello"}},
		},
	}
	require.NoError(t, store.SaveAutomation(ctx, automation))
	require.NoError(t, store.SaveAutomation(ctx, domain.ToolAutomation{
		ID:           "auto-2",
		DeploymentID: "dep-2",
		SpaceID:      "space",
		Enabled:      true,
		Trigger:      domain.ScheduleTrigger{Cron: "0 9 * * *"},
	}))
	require.NoError(t, store.SaveAutomation(ctx, domain.ToolAutomation{
		ID:           "auto-3",
		DeploymentID: "dep-3",
		Enabled:      false,
		Trigger:      domain.ScheduleTrigger{Cron: "0 9 * * *"},
	}))

	loaded, err := store.GetAutomation(ctx, "auto-1")
	require.NoError(t, err)
	assert.Equal(t, automation.Trigger, loaded.Trigger)
	assert.Equal(t, automation.Actions, loaded.Actions)
	assert.Equal(t, now, loaded.CreatedAt)

	_, err = store.GetAutomation(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrAutomationNotFound)

	byDeployment, err := store.ListAutomations(ctx, "dep-1")
	require.NoError(t, err)
	require.Len(t, byDeployment, 1)

	bySpace, err := store.ListSpaceAutomations(ctx, "space")
	require.NoError(t, err)
	require.Len(t, bySpace, 2)
	assert.Equal(t, "auto-1", bySpace[0].ID)
	assert.Equal(t, "auto-2", bySpace[1].ID)

	scheduled, err := store.ListScheduledAutomations(ctx)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "auto-2", scheduled[0].ID)

	next := now.Add(time.Hour)
	require.NoError(t, store.SetNextRun(ctx, "auto-2", next))
	loaded, err = store.GetAutomation(ctx, "auto-2")
	require.NoError(t, err)
	require.NotNil(t, loaded.NextRun)
	assert.True(t, next.Equal(*loaded.NextRun))
}

func TestRecordRunAndLedger(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveAutomation(ctx, domain.ToolAutomation{ID: "auto", DeploymentID: "dep", Enabled: true}))

	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	yesterday := day.Add(-2 * time.Hour)
	require.NoError(t, store.RecordRun(ctx, domain.RunOutcome{AutomationID: "auto", At: yesterday, Success: true}))
	require.NoError(t, store.RecordRun(ctx, domain.RunOutcome{AutomationID: "auto", At: day.Add(time.Hour), Success: true}))
	require.NoError(t, store.RecordRun(ctx, domain.RunOutcome{AutomationID: "auto", At: day.Add(time.Hour), Success: false, Error: "boom"}))

	count, err := store.RunsSince(ctx, "auto", day)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.RunsSince(ctx, "never-run", day)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	automation, err := store.GetAutomation(ctx, "auto")
	require.NoError(t, err)
	assert.Equal(t, int64(3), automation.RunCount)
	assert.Equal(t, int64(1), automation.ErrorCount)
	assert.Equal(t, int64(3), automation.Stats.TimesTriggered)
	assert.Equal(t, int64(2), automation.Stats.SuccessCount)
	assert.Equal(t, int64(1), automation.Stats.FailureCount)
	require.NotNil(t, automation.LastRun)
	assert.True(t, day.Add(time.Hour).Equal(*automation.LastRun))

	removed, err := store.PruneRuns(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	count, err = store.RunsSince(ctx, "auto", day.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	err = store.RecordRun(ctx, domain.RunOutcome{AutomationID: "missing"})
	require.ErrorIs(t, err, domain.ErrAutomationNotFound)
}

func TestNotifyOutbox(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	store := openTestStore(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, store.Notify(ctx, domain.Notification{ID: "n1", AutomationID: "a1", To: "x@example.com"}))
	require.NoError(t, store.Notify(ctx, domain.Notification{ID: "n2", AutomationID: "a2", To: "y@example.com"}))
	require.Error(t, store.Notify(ctx, domain.Notification{}))

	all, err := store.ListNotifications(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "n1", all[0].ID)
	assert.Equal(t, now, all[0].CreatedAt)

	filtered, err := store.ListNotifications(ctx, "a2")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "n2", filtered[0].ID)
}

func codeOf(err error) domain.ErrorCode {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

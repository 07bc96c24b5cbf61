package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/app/catalog"
	"hive/internal/domain"
	"hive/internal/infra/access"
	"hive/internal/infra/dispatch"
	"hive/internal/infra/ratelimit"
)

func TestReloadManager_ApplyUpdatesServices(t *testing.T) {
	ctx := context.Background()
	checker := access.NewOwnerOrAdmin([]string{"alice"})
	throttle := ratelimit.NewEventThrottle(0, 0)
	dispatcher := dispatch.NewDispatcher(nil, nil, nil, dispatch.Options{MaxTriggerDepth: 5})
	manager := NewReloadManager(nil, nil, nil, dispatcher, checker, throttle, nil)
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return now }

	cfg := domain.RuntimeConfig{
		Automation: domain.AutomationConfig{
			MaxTriggerDepth: 2,
			EventsPerSecond: 1,
			EventBurst:      1,
			Timezone:        "UTC",
		},
		Access: domain.AccessConfig{AdminUsers: []string{"bob"}},
	}
	require.NoError(t, manager.Apply(ctx, cfg))

	tool := domain.ToolMetadata{InstanceID: "tool-1", OwnerID: "carol"}
	allowed, err := checker.CanManageTool(ctx, "bob", tool)
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = checker.CanManageTool(ctx, "alice", tool)
	require.NoError(t, err)
	assert.False(t, allowed, "admins are replaced, not merged")

	assert.True(t, throttle.Allow("space", now))
	assert.False(t, throttle.Allow("space", now))

	assert.NoError(t, dispatcher.CheckChain([]string{"a", "b"}, "c"))
	assert.ErrorIs(t, dispatcher.CheckChain([]string{"a", "b", "c"}, "d"), domain.ErrTriggerDepthExceeded)
}

func TestReloadManager_ApplyRejectsUnknownTimezone(t *testing.T) {
	checker := access.NewOwnerOrAdmin([]string{"alice"})
	manager := NewReloadManager(nil, nil, nil, nil, checker, nil, nil)

	err := manager.Apply(context.Background(), domain.RuntimeConfig{
		Automation: domain.AutomationConfig{Timezone: "Mars/Olympus"},
		Access:     domain.AccessConfig{AdminUsers: []string{"bob"}},
	})
	require.Error(t, err)

	allowed, err := checker.CanManageTool(context.Background(), "alice", domain.ToolMetadata{})
	require.NoError(t, err)
	assert.True(t, allowed, "a failed apply leaves services untouched")
}

func TestReloadManager_StartAppliesNewRevisions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "hive.yaml")
	require.NoError(t, os.WriteFile(path, []byte("access:\n  adminUsers:\n    - alice\n"), 0o600))
	provider, err := catalog.NewConfigProvider(ctx, path, nil)
	require.NoError(t, err)

	checker := access.NewOwnerOrAdmin(provider.Snapshot().Config.Access.AdminUsers)
	manager := NewReloadManager(provider, nil, nil, nil, checker, nil, nil)
	manager.Start(ctx)
	assert.Equal(t, uint64(1), manager.AppliedRevision())

	require.NoError(t, os.WriteFile(path, []byte("access:\n  adminUsers:\n    - bob\n"), 0o600))
	_, err = provider.Reload(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		allowed, _ := checker.CanManageTool(ctx, "bob", domain.ToolMetadata{})
		return allowed
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, manager.AppliedRevision(), uint64(2))
}

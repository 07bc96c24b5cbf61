package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/domain"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestConfigProvider_EmptyPathServesDefaults(t *testing.T) {
	provider, err := NewConfigProvider(context.Background(), "", nil)
	require.NoError(t, err)

	snapshot := provider.Snapshot()
	assert.Equal(t, uint64(1), snapshot.Revision)
	assert.Equal(t, domain.DefaultHTTPListenAddress, snapshot.Config.HTTP.ListenAddress)

	changed, err := provider.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestConfigProvider_ReloadPublishesChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hive.yaml")
	writeConfig(t, path, "access:\n  adminUsers:\n    - alice\n")

	provider, err := NewConfigProvider(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, provider.Snapshot().Config.Access.AdminUsers)

	changed, err := provider.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, changed, "unchanged file keeps the revision")

	writeConfig(t, path, "access:\n  adminUsers:\n    - bob\n")
	changed, err = provider.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)

	snapshot := provider.Snapshot()
	assert.Equal(t, uint64(2), snapshot.Revision)
	assert.Equal(t, []string{"bob"}, snapshot.Config.Access.AdminUsers)
}

func TestConfigProvider_InvalidReloadKeepsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hive.yaml")
	writeConfig(t, path, "http:\n  listenAddress: 127.0.0.1:9000\n")

	provider, err := NewConfigProvider(context.Background(), path, nil)
	require.NoError(t, err)

	writeConfig(t, path, "http:\n  listenAddress: nope\n")
	changed, err := provider.Reload(context.Background())
	require.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, "127.0.0.1:9000", provider.Snapshot().Config.HTTP.ListenAddress)
}

func TestConfigProvider_WatchDeliversUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "hive.yaml")
	writeConfig(t, path, "automation:\n  maxTriggerDepth: 3\n")

	provider, err := NewConfigProvider(ctx, path, nil)
	require.NoError(t, err)
	updates := provider.Watch(ctx)

	writeConfig(t, path, "automation:\n  maxTriggerDepth: 7\n")
	_, err = provider.Reload(ctx)
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case update := <-updates:
			if update.State.Config.Automation.MaxTriggerDepth != 7 {
				continue
			}
			assert.GreaterOrEqual(t, update.State.Revision, uint64(2))
			return
		case <-deadline:
			t.Fatal("no config update delivered")
		}
	}
}

func TestShouldReloadForPath(t *testing.T) {
	assert.True(t, shouldReloadForPath("/etc/hive/./hive.yaml", "/etc/hive/hive.yaml"))
	assert.False(t, shouldReloadForPath("/etc/hive/other.yaml", "/etc/hive/hive.yaml"))
	assert.False(t, shouldReloadForPath("", "/etc/hive/hive.yaml"))
}

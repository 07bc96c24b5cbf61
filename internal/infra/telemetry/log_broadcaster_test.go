package telemetry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hive/internal/domain"
)

func TestLogBroadcaster_PublishesEntries(t *testing.T) {
	broadcaster := NewLogBroadcaster(zapcore.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := broadcaster.Subscribe(ctx)
	assert.Equal(t, 1, broadcaster.Subscribers())

	logger := zap.New(broadcaster.Core()).Named("automation")
	logger.Debug("dropped below min level")
	logger.With(AutomationIDField("auto-1")).Warn("action failed", ActionTypeField(domain.ActionTypeNotify))

	select {
	case entry := <-ch:
		assert.Equal(t, "automation", entry.Logger)
		assert.Equal(t, domain.LogLevelWarn, entry.Level)
		assert.Equal(t, "action failed", entry.Message)
		var data map[string]any
		require.NoError(t, json.Unmarshal(entry.DataJSON, &data))
		assert.Equal(t, "auto-1", data[FieldAutomationID])
		assert.Equal(t, "notify", data[FieldActionType])
	case <-time.After(time.Second):
		t.Fatal("expected a log entry")
	}

	cancel()
	require.Eventually(t, func() bool { return broadcaster.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestLogBroadcaster_FullSubscriberDrops(t *testing.T) {
	broadcaster := NewLogBroadcaster(zapcore.DebugLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = broadcaster.Subscribe(ctx)

	logger := zap.New(broadcaster.Core())
	for i := 0; i < DefaultLogBufferSize+3; i++ {
		logger.Info("tick")
	}
	assert.Equal(t, uint64(3), broadcaster.Dropped())
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, domain.LogLevelDebug, logLevel(zapcore.DebugLevel))
	assert.Equal(t, domain.LogLevelError, logLevel(zapcore.ErrorLevel))
	assert.Equal(t, domain.LogLevelFatal, logLevel(zapcore.DPanicLevel))
}

package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"hive/internal/domain"
)

func TestObservabilityDefaults(t *testing.T) {
	t.Setenv(envMetricsEnabled, "")
	t.Setenv(envHealthzEnabled, "")
	metrics, healthz := observabilityDefaults()
	assert.Equal(t, domain.DefaultObservabilityMetricsEnabled, metrics)
	assert.Equal(t, domain.DefaultObservabilityHealthzEnabled, healthz)

	t.Setenv(envMetricsEnabled, "true")
	t.Setenv(envHealthzEnabled, "0")
	metrics, healthz = observabilityDefaults()
	assert.True(t, metrics)
	assert.False(t, healthz)
}

func TestEnvBoolOptional(t *testing.T) {
	t.Setenv("HIVE_TEST_FLAG", "yes")
	_, ok := envBoolOptional("HIVE_TEST_FLAG")
	assert.False(t, ok)

	t.Setenv("HIVE_TEST_FLAG", " FALSE ")
	value, ok := envBoolOptional("HIVE_TEST_FLAG")
	assert.True(t, ok)
	assert.False(t, value)
}

func TestNewLoggingTeesIntoBroadcaster(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	logging := NewLogging(LoggingConfig{Logger: zap.New(core)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := logging.Broadcaster.Subscribe(ctx)

	logging.Logger.Debug("below stream level")
	logging.Logger.Info("engine ready")

	assert.Equal(t, 2, recorded.Len())
	entry := <-entries
	assert.Equal(t, "engine ready", entry.Message)
	assert.Equal(t, "hive", entry.Logger)
	assert.Empty(t, entries)
}

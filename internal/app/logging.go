package app

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hive/internal/infra/telemetry"
)

// LoggingConfig is the logger handed in by the CLI. A nil Broadcaster makes
// the service create its own, capturing StreamLevel and above.
type LoggingConfig struct {
	Logger      *zap.Logger
	Broadcaster *telemetry.LogBroadcaster
	StreamLevel zapcore.Level
}

// Logging is the service logger plus the broadcaster feeding /diagnostics.
type Logging struct {
	Logger      *zap.Logger
	Broadcaster *telemetry.LogBroadcaster
}

func NewLogging(cfg LoggingConfig) Logging {
	base := cfg.Logger
	if base == nil {
		base = zap.NewNop()
	}
	logs := cfg.Broadcaster
	if logs == nil {
		logs = telemetry.NewLogBroadcaster(cfg.StreamLevel)
		base = base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, logs.Core())
		}))
	}
	return Logging{
		Logger:      base.Named("hive").With(zap.String(telemetry.FieldLogSource, telemetry.LogSourceCore)),
		Broadcaster: logs,
	}
}

func NewLogger(logging Logging) *zap.Logger {
	return logging.Logger
}

func NewLogBroadcaster(logging Logging) *telemetry.LogBroadcaster {
	return logging.Broadcaster
}

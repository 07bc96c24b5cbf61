package domain

import (
	"encoding/json"
	"time"
)

// LogLevel is the severity of a captured log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// LogEntry is one structured log line captured for diagnostics.
type LogEntry struct {
	Logger    string          `json:"logger"`
	Level     LogLevel        `json:"level"`
	Timestamp time.Time       `json:"timestamp"`
	Message   string          `json:"message"`
	DataJSON  json.RawMessage `json:"data,omitempty"`
}

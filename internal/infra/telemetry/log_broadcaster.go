package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap/zapcore"

	"hive/internal/domain"
)

// DefaultLogBufferSize bounds each subscriber channel.
const DefaultLogBufferSize = 256

const defaultLoggerName = "hived"

// LogBroadcaster fans zap entries out to subscribers such as the diagnostics
// hub. A full subscriber loses the entry; the logger never blocks.
type LogBroadcaster struct {
	minLevel zapcore.Level
	dropped  atomic.Uint64

	mu   sync.RWMutex
	subs map[chan domain.LogEntry]struct{}
}

func NewLogBroadcaster(minLevel zapcore.Level) *LogBroadcaster {
	return &LogBroadcaster{
		minLevel: minLevel,
		subs:     make(map[chan domain.LogEntry]struct{}),
	}
}

// Core returns a zapcore.Core to tee into an existing logger.
func (b *LogBroadcaster) Core() zapcore.Core {
	return broadcastCore{broadcaster: b}
}

// Subscribe returns a channel of entries that closes when ctx is done.
func (b *LogBroadcaster) Subscribe(ctx context.Context) <-chan domain.LogEntry {
	ch := make(chan domain.LogEntry, DefaultLogBufferSize)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// Subscribers returns the number of active subscriptions.
func (b *LogBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped counts entries lost to full subscribers.
func (b *LogBroadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *LogBroadcaster) publish(entry domain.LogEntry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- entry:
		default:
			b.dropped.Add(1)
		}
	}
}

type broadcastCore struct {
	broadcaster *LogBroadcaster
	fields      []zapcore.Field
}

func (c broadcastCore) Enabled(level zapcore.Level) bool {
	return level >= c.broadcaster.minLevel
}

func (c broadcastCore) With(fields []zapcore.Field) zapcore.Core {
	if len(fields) == 0 {
		return c
	}
	return broadcastCore{
		broadcaster: c.broadcaster,
		fields:      append(append([]zapcore.Field(nil), c.fields...), fields...),
	}
}

func (c broadcastCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return checked
	}
	return checked.AddCore(entry, c)
}

func (c broadcastCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	encoder := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(encoder)
	}
	for _, field := range fields {
		field.AddTo(encoder)
	}

	logEntry := domain.LogEntry{
		Logger:    entry.LoggerName,
		Level:     logLevel(entry.Level),
		Timestamp: entry.Time,
		Message:   entry.Message,
	}
	if logEntry.Logger == "" {
		logEntry.Logger = defaultLoggerName
	}
	if len(encoder.Fields) > 0 {
		// Unencodable fields only cost the entry its data.
		if raw, err := json.Marshal(encoder.Fields); err == nil {
			logEntry.DataJSON = raw
		}
	}
	c.broadcaster.publish(logEntry)
	return nil
}

func (broadcastCore) Sync() error {
	return nil
}

func logLevel(level zapcore.Level) domain.LogLevel {
	switch {
	case level <= zapcore.DebugLevel:
		return domain.LogLevelDebug
	case level == zapcore.InfoLevel:
		return domain.LogLevelInfo
	case level == zapcore.WarnLevel:
		return domain.LogLevelWarn
	case level == zapcore.ErrorLevel:
		return domain.LogLevelError
	default:
		return domain.LogLevelFatal
	}
}

var _ zapcore.Core = broadcastCore{}

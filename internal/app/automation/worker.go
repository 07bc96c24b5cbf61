package automation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hive/internal/domain"
	"hive/internal/infra/eventbus"
	"hive/internal/infra/telemetry"
)

// Subscriber delivers published events to a handler.
type Subscriber interface {
	Subscribe(ctx context.Context, handler eventbus.Handler) error
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	EventTimeout time.Duration
	Logger       *zap.Logger
}

// Worker runs HandleEvent for every event on the bus, off the request path.
type Worker struct {
	engine  *Engine
	bus     Subscriber
	timeout time.Duration
	logger  *zap.Logger
}

func NewWorker(engine *Engine, bus Subscriber, opts WorkerOptions) *Worker {
	timeout := opts.EventTimeout
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultEventTimeoutSeconds) * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		engine:  engine,
		bus:     bus,
		timeout: timeout,
		logger:  logger.Named("automation_worker"),
	}
}

// Start subscribes the worker. Deliveries stop when ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	return w.bus.Subscribe(ctx, w.Handle)
}

// Handle processes one event under the worker's timeout.
func (w *Worker) Handle(ctx context.Context, event domain.AutomationEvent) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	start := time.Now()
	report, err := w.engine.HandleEvent(ctx, event)
	if err != nil {
		w.logger.Warn("event handling failed",
			telemetry.EventField(telemetry.EventWorkerFailure),
			zap.String("eventID", event.ID),
			zap.Error(err),
		)
		return err
	}
	w.logger.Debug("event handled",
		zap.String("eventID", event.ID),
		zap.Int("evaluated", report.Evaluated),
		zap.Int("executed", report.Executed),
		telemetry.DurationField(time.Since(start)),
	)
	return nil
}

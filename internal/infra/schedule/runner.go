package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hive/internal/domain"
	"hive/internal/infra/telemetry"
)

// Store is the slice of the automation store the runner needs.
type Store interface {
	ListScheduledAutomations(ctx context.Context) ([]domain.ToolAutomation, error)
	SetNextRun(ctx context.Context, automationID string, next time.Time) error
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Interval  time.Duration
	Location  *time.Location
	Clock     domain.Clock
	Logger    *zap.Logger
	Heartbeat *telemetry.Heartbeat
}

// Runner publishes one schedule event per due automation on every tick and
// advances the automation's next run.
type Runner struct {
	store     Store
	publisher domain.EventPublisher
	interval  time.Duration
	loc       *time.Location
	now       domain.Clock
	logger    *zap.Logger
	heartbeat *telemetry.Heartbeat
}

func NewRunner(store Store, publisher domain.EventPublisher, opts RunnerOptions) *Runner {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Duration(domain.DefaultScheduleIntervalSeconds) * time.Second
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:     store,
		publisher: publisher,
		interval:  interval,
		loc:       loc,
		now:       clock,
		logger:    logger.Named("schedule"),
		heartbeat: opts.Heartbeat,
	}
}

// Run ticks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.Tick(ctx); err != nil {
			r.logger.Warn("schedule tick failed", telemetry.EventField(telemetry.EventScheduleTick), zap.Error(err))
		}
		r.heartbeat.Beat()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick publishes events for every due automation and returns how many were
// published. An automation seen for the first time is only armed.
func (r *Runner) Tick(ctx context.Context) (int, error) {
	automations, err := r.store.ListScheduledAutomations(ctx)
	if err != nil {
		return 0, err
	}
	now := r.now().UTC()
	published := 0
	for _, automation := range automations {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		trigger, ok := automation.Trigger.(domain.ScheduleTrigger)
		if !ok {
			continue
		}
		logger := r.logger.With(telemetry.AutomationIDField(automation.ID))
		next, err := Next(trigger.Cron, now, r.loc)
		if err != nil {
			logger.Warn("invalid schedule", zap.Error(err))
			continue
		}
		if automation.NextRun != nil && !now.Before(*automation.NextRun) {
			event := domain.AutomationEvent{
				ID:           uuid.NewString(),
				Kind:         domain.EventKindSchedule,
				SpaceID:      automation.SpaceID,
				DeploymentID: automation.DeploymentID,
				Name:         automation.ID,
				OccurredAt:   now,
			}
			if err := r.publisher.Publish(ctx, event); err != nil {
				logger.Warn("publish schedule event failed", zap.Error(err))
				continue
			}
			published++
			logger.Debug("schedule fired", telemetry.EventField(telemetry.EventScheduleTick))
		} else if automation.NextRun != nil {
			continue
		}
		if err := r.store.SetNextRun(ctx, automation.ID, next); err != nil {
			logger.Warn("advance schedule failed", zap.Error(err))
		}
	}
	return published, nil
}

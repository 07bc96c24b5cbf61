// Package automation evaluates automations against inbound events and
// previews them without side effects.
package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"hive/internal/domain"
	"hive/internal/infra/conditions"
	"hive/internal/infra/dispatch"
	"hive/internal/infra/ratelimit"
	"hive/internal/infra/telemetry"
	"hive/internal/infra/telemetry/diagnostics"
)

// ToolReader reads the deployment data automations evaluate against.
type ToolReader interface {
	GetToolSharedState(ctx context.Context, instanceID string) (*domain.SharedState, error)
	GetToolMetadata(ctx context.Context, instanceID string) (*domain.ToolMetadata, error)
}

// Options configures an Engine.
type Options struct {
	Limits   domain.AutomationLimits
	Location *time.Location
	Metrics  domain.Metrics
	Logger   *zap.Logger
	Probe    diagnostics.Probe
	Clock    domain.Clock
}

// Engine runs automations for events.
type Engine struct {
	store      domain.AutomationStore
	tools      ToolReader
	dispatcher *dispatch.Dispatcher
	access     domain.AccessChecker
	metrics    domain.Metrics
	logger     *zap.Logger
	probe      diagnostics.Probe
	now        domain.Clock

	mu     sync.RWMutex
	limits domain.AutomationLimits
	loc    *time.Location
}

// AutomationResult is the outcome for one automation of an event.
type AutomationResult struct {
	AutomationID     string                     `json:"automationId"`
	Result           domain.AutomationRunResult `json:"result"`
	Reason           string                     `json:"reason,omitempty"`
	ActionsSucceeded int                        `json:"actionsSucceeded"`
	ActionsFailed    int                        `json:"actionsFailed"`
	Errors           []string                   `json:"errors,omitempty"`
}

// EventReport summarises how an event was handled.
type EventReport struct {
	EventID   string             `json:"eventId"`
	Evaluated int                `json:"evaluated"`
	Executed  int                `json:"executed"`
	Results   []AutomationResult `json:"results"`
}

func NewEngine(store domain.AutomationStore, tools ToolReader, dispatcher *dispatch.Dispatcher, access domain.AccessChecker, opts Options) *Engine {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	probe := opts.Probe
	if probe == nil {
		probe = diagnostics.NoopProbe{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	limits := opts.Limits
	if limits == (domain.AutomationLimits{}) {
		limits = domain.DefaultAutomationLimits
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		store:      store,
		tools:      tools,
		dispatcher: dispatcher,
		access:     access,
		metrics:    metrics,
		logger:     logger.Named("automation"),
		probe:      probe,
		now:        clock,
		limits:     limits,
		loc:        loc,
	}
}

// SetDefaults replaces the default limits and the day-boundary location.
func (e *Engine) SetDefaults(limits domain.AutomationLimits, loc *time.Location) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limits = limits
	if loc != nil {
		e.loc = loc
	}
}

func (e *Engine) defaults() (domain.AutomationLimits, *time.Location) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.limits, e.loc
}

// HandleEvent evaluates every automation in scope for the event in store
// order. One automation's failure never stops the next; the returned error
// is reserved for failures loading the automations themselves.
func (e *Engine) HandleEvent(ctx context.Context, event domain.AutomationEvent) (EventReport, error) {
	report := EventReport{EventID: event.ID}
	automations, err := e.automationsFor(ctx, event)
	if err != nil {
		return report, err
	}
	for _, automation := range automations {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		result := e.run(ctx, automation, event)
		report.Evaluated++
		if result.Result == domain.AutomationRunSucceeded || result.Result == domain.AutomationRunFailed {
			report.Executed++
		}
		report.Results = append(report.Results, result)
	}
	return report, nil
}

func (e *Engine) automationsFor(ctx context.Context, event domain.AutomationEvent) ([]domain.ToolAutomation, error) {
	switch {
	case event.DeploymentID != "":
		automations, err := e.store.ListAutomations(ctx, event.DeploymentID)
		if err != nil {
			return nil, domain.Wrap(domain.CodeUnavailable, "list automations", err)
		}
		return automations, nil
	case event.SpaceID != "":
		automations, err := e.store.ListSpaceAutomations(ctx, event.SpaceID)
		if err != nil {
			return nil, domain.Wrap(domain.CodeUnavailable, "list space automations", err)
		}
		return automations, nil
	default:
		return nil, domain.E(domain.CodeInvalidArgument, "handle event", "event needs a deploymentId or spaceId", domain.ErrInvalidRequest)
	}
}

func (e *Engine) run(ctx context.Context, automation domain.ToolAutomation, event domain.AutomationEvent) AutomationResult {
	start := time.Now()
	result := AutomationResult{AutomationID: automation.ID}
	logger := e.logger.With(
		telemetry.AutomationIDField(automation.ID),
		telemetry.DeploymentIDField(automation.DeploymentID),
	)
	finish := func(outcome domain.AutomationRunResult, reason string) AutomationResult {
		result.Result = outcome
		result.Reason = reason
		e.metrics.ObserveAutomationRun(domain.AutomationRunMetric{
			TriggerType: automation.TriggerType(),
			Result:      outcome,
			Duration:    time.Since(start),
		})
		return result
	}
	record := func(step string, phase diagnostics.EventPhase, errText string, attrs map[string]string) {
		e.probe.Record(diagnostics.Event{
			EventID:      event.ID,
			AutomationID: automation.ID,
			DeploymentID: automation.DeploymentID,
			Step:         step,
			Phase:        phase,
			Timestamp:    e.now(),
			Duration:     time.Since(start),
			Error:        errText,
			Attributes:   attrs,
		})
	}

	if !automation.Enabled {
		return finish(domain.AutomationRunDisabled, ratelimit.ReasonDisabled)
	}
	if !MatchTrigger(automation, event) {
		return finish(domain.AutomationRunNotMatched, "")
	}
	record(diagnostics.StepTriggerMatch, diagnostics.PhasePass, "", nil)

	state, err := e.stateTree(ctx, automation.DeploymentID, nil)
	if err != nil {
		logger.Warn("load automation state failed", zap.Error(err))
		record(diagnostics.StepConditions, diagnostics.PhaseError, err.Error(), nil)
		result.Errors = append(result.Errors, err.Error())
		return finish(domain.AutomationRunFailed, "state unavailable")
	}
	evaluation := conditions.EvaluateAll(automation.Conditions, conditions.Context{
		State:   state,
		Trigger: event.Metadata(),
	})
	if !evaluation.AllMet {
		record(diagnostics.StepConditions, diagnostics.PhaseSkip, "", nil)
		return finish(domain.AutomationRunConditionsUnmet, "conditions not met")
	}
	record(diagnostics.StepConditions, diagnostics.PhasePass, "", nil)

	now := e.now()
	decision, err := e.checkLimits(ctx, automation, now)
	if err != nil {
		logger.Warn("count automation runs failed", zap.Error(err))
		record(diagnostics.StepRateCheck, diagnostics.PhaseError, err.Error(), nil)
		result.Errors = append(result.Errors, err.Error())
		return finish(domain.AutomationRunFailed, "run ledger unavailable")
	}
	if !decision.CanRun {
		record(diagnostics.StepRateCheck, diagnostics.PhaseSkip, "", map[string]string{"reason": decision.Reason})
		logger.Debug("automation skipped", telemetry.EventField(telemetry.EventAutomationSkip), zap.String("reason", decision.Reason))
		return finish(domain.AutomationRunRateLimited, decision.Reason)
	}
	record(diagnostics.StepRateCheck, diagnostics.PhasePass, "", nil)

	for i, action := range automation.Actions {
		err := e.dispatcher.Dispatch(ctx, dispatch.Request{
			Automation: automation,
			Action:     action,
			Chain:      event.Chain,
		})
		if err != nil {
			result.ActionsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("actions[%d]: %v", i, err))
			continue
		}
		result.ActionsSucceeded++
	}
	success := result.ActionsFailed == 0
	phase := diagnostics.PhasePass
	if !success {
		phase = diagnostics.PhaseError
	}
	record(diagnostics.StepDispatch, phase, strings.Join(result.Errors, "; "), map[string]string{
		"succeeded": fmt.Sprint(result.ActionsSucceeded),
		"failed":    fmt.Sprint(result.ActionsFailed),
	})

	if err := e.store.RecordRun(ctx, domain.RunOutcome{
		AutomationID: automation.ID,
		At:           now,
		Success:      success,
		Error:        strings.Join(result.Errors, "; "),
	}); err != nil {
		logger.Warn("record automation run failed", telemetry.EventField(telemetry.EventStatsFailure), zap.Error(err))
		record(diagnostics.StepStats, diagnostics.PhaseError, err.Error(), nil)
	}

	logger.Info("automation ran",
		telemetry.EventField(telemetry.EventAutomationRun),
		telemetry.TriggerTypeField(automation.TriggerType()),
		zap.Int("actionsSucceeded", result.ActionsSucceeded),
		zap.Int("actionsFailed", result.ActionsFailed),
		telemetry.DurationField(time.Since(start)),
	)
	if success {
		return finish(domain.AutomationRunSucceeded, "")
	}
	return finish(domain.AutomationRunFailed, "one or more actions failed")
}

func (e *Engine) checkLimits(ctx context.Context, automation domain.ToolAutomation, now time.Time) (ratelimit.Decision, error) {
	limits, loc := e.defaults()
	if !automation.Enabled {
		return ratelimit.CanRunAutomation(automation, limits, 0, now), nil
	}
	runs, err := e.store.RunsSince(ctx, automation.ID, ratelimit.PeriodStart(now, loc))
	if err != nil {
		return ratelimit.Decision{}, err
	}
	return ratelimit.CanRunAutomation(automation, limits, runs, now), nil
}

// stateTree returns mock when non-nil, else the deployment's stored state.
// A deployment without state evaluates against an empty tree.
func (e *Engine) stateTree(ctx context.Context, deploymentID string, mock map[string]any) (map[string]any, error) {
	if mock != nil {
		return mock, nil
	}
	state, err := e.tools.GetToolSharedState(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	return state.Tree(), nil
}

var errNoAccessChecker = errors.New("no access checker configured")

// Package dispatch executes automation actions against external collaborators.
package dispatch

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hive/internal/domain"
	"hive/internal/infra/telemetry"
)

// Request carries the context of one action dispatch.
type Request struct {
	Automation domain.ToolAutomation
	Action     domain.Action
	// Chain is the deployments already visited by the event being handled.
	Chain []string
}

// Dispatcher routes each action variant to its collaborator.
type Dispatcher struct {
	notifier domain.Notifier
	mutator  domain.StateMutator
	invoker  domain.ToolInvoker
	metrics  domain.Metrics
	logger   *zap.Logger
	now      domain.Clock
	maxDepth atomic.Int64
}

// Options configures a Dispatcher.
type Options struct {
	MaxTriggerDepth int
	Metrics         domain.Metrics
	Logger          *zap.Logger
	Clock           domain.Clock
}

// NewDispatcher creates a dispatcher over the action collaborators.
func NewDispatcher(notifier domain.Notifier, mutator domain.StateMutator, invoker domain.ToolInvoker, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	depth := opts.MaxTriggerDepth
	if depth <= 0 {
		depth = domain.DefaultMaxTriggerDepth
	}
	d := &Dispatcher{
		notifier: notifier,
		mutator:  mutator,
		invoker:  invoker,
		metrics:  metrics,
		logger:   logger.Named("dispatch"),
		now:      clock,
	}
	d.maxDepth.Store(int64(depth))
	return d
}

// SetMaxTriggerDepth updates the triggerTool chain limit.
func (d *Dispatcher) SetMaxTriggerDepth(depth int) {
	if depth > 0 {
		d.maxDepth.Store(int64(depth))
	}
}

// Dispatch executes one action. Failures are returned, never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	if req.Action == nil {
		return domain.E(domain.CodeInvalidArgument, "dispatch", "action is nil", domain.ErrInvalidRequest)
	}
	start := time.Now()
	err := d.dispatch(ctx, req)
	d.metrics.ObserveAction(domain.ActionMetric{
		Type:     req.Action.Type(),
		Err:      err,
		Duration: time.Since(start),
	})
	if err != nil {
		d.logger.Warn("action failed",
			telemetry.AutomationIDField(req.Automation.ID),
			telemetry.ActionTypeField(req.Action.Type()),
			zap.Error(err),
		)
	}
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) error {
	if err := req.Action.Validate(); err != nil {
		return domain.E(domain.CodeInvalidArgument, "dispatch", err.Error(), domain.ErrInvalidRequest)
	}
	switch action := req.Action.(type) {
	case domain.NotifyAction:
		return d.notify(ctx, req.Automation, action)
	case domain.MutateAction:
		return d.mutate(ctx, req.Automation, action)
	case domain.TriggerToolAction:
		return d.triggerTool(ctx, req, action)
	default:
		return fmt.Errorf("dispatch: unsupported action type %q", req.Action.Type())
	}
}

func (d *Dispatcher) notify(ctx context.Context, automation domain.ToolAutomation, action domain.NotifyAction) error {
	if d.notifier == nil {
		return domain.E(domain.CodeUnavailable, "dispatch notify", "no notifier configured", nil)
	}
	notification := domain.Notification{
		ID:           uuid.NewString(),
		Channel:      action.Channel,
		To:           action.To,
		TemplateID:   action.TemplateID,
		Title:        action.Title,
		Body:         action.Body,
		Data:         action.Data,
		AutomationID: automation.ID,
		DeploymentID: automation.DeploymentID,
		CreatedAt:    d.now(),
	}
	if err := d.notifier.Notify(ctx, notification); err != nil {
		return fmt.Errorf("notify %s %s: %w", action.Channel, action.To, err)
	}
	return nil
}

func (d *Dispatcher) mutate(ctx context.Context, automation domain.ToolAutomation, action domain.MutateAction) error {
	if d.mutator == nil {
		return domain.E(domain.CodeUnavailable, "dispatch mutate", "no state mutator configured", nil)
	}
	if err := d.mutator.MutateElement(ctx, automation.DeploymentID, action.ElementID, action.Mutation); err != nil {
		return fmt.Errorf("mutate element %s: %w", action.ElementID, err)
	}
	return nil
}

func (d *Dispatcher) triggerTool(ctx context.Context, req Request, action domain.TriggerToolAction) error {
	if d.invoker == nil {
		return domain.E(domain.CodeUnavailable, "dispatch triggerTool", "no tool invoker configured", nil)
	}
	chain := NextChain(req.Chain, req.Automation.DeploymentID)
	if err := d.CheckChain(chain, action.DeploymentID); err != nil {
		return err
	}
	invocation := domain.ToolInvocation{
		DeploymentID: action.DeploymentID,
		Event:        action.Event,
		Payload:      action.Payload,
		Chain:        chain,
	}
	if err := d.invoker.InvokeTool(ctx, invocation); err != nil {
		return fmt.Errorf("trigger tool %s: %w", action.DeploymentID, err)
	}
	return nil
}

// CheckChain refuses a triggerTool hop to target when the chain would exceed
// the depth limit or target was already visited.
func (d *Dispatcher) CheckChain(chain []string, target string) error {
	if limit := int(d.maxDepth.Load()); len(chain) > limit {
		return domain.E(domain.CodeFailedPrecond, "dispatch triggerTool",
			fmt.Sprintf("chain depth %d reached limit %d", len(chain), limit), domain.ErrTriggerDepthExceeded)
	}
	if slices.Contains(chain, target) {
		return domain.E(domain.CodeFailedPrecond, "dispatch triggerTool",
			fmt.Sprintf("deployment %s already in chain %v", target, chain), domain.ErrTriggerCycle)
	}
	return nil
}

// NextChain returns chain extended with the invoking deployment, without
// aliasing the input slice.
func NextChain(chain []string, deploymentID string) []string {
	out := make([]string, 0, len(chain)+1)
	out = append(out, chain...)
	if deploymentID != "" && !slices.Contains(out, deploymentID) {
		out = append(out, deploymentID)
	}
	return out
}

// Summary renders the human-readable preview of an action.
func Summary(action domain.Action) (summary, target string) {
	switch a := action.(type) {
	case domain.NotifyAction:
		subject := a.Title
		if subject == "" {
			subject = "template " + a.TemplateID
		}
		return fmt.Sprintf("Send %s notification %q to %s", a.Channel, subject, a.To), a.To
	case domain.MutateAction:
		paths := make([]string, 0, len(a.Mutation))
		for path := range a.Mutation {
			paths = append(paths, path)
		}
		slices.Sort(paths)
		return fmt.Sprintf("Update %d field(s) on element %s: %v", len(paths), a.ElementID, paths), a.ElementID
	case domain.TriggerToolAction:
		return fmt.Sprintf("Trigger event %q on tool %s", a.Event, a.DeploymentID), a.DeploymentID
	case nil:
		return "Unknown action", ""
	default:
		return fmt.Sprintf("Unsupported action %s", action.Type()), ""
	}
}

package automation

import (
	"context"
	"fmt"
	"time"

	"hive/internal/domain"
	"hive/internal/infra/conditions"
	"hive/internal/infra/dispatch"
)

// TestRequest asks for a dry run of one automation.
type TestRequest struct {
	AutomationID string `json:"automationId"`
	DeploymentID string `json:"deploymentId,omitempty"`
	UserID       string `json:"userId"`
	// MockState replaces the deployment's stored state when set.
	MockState map[string]any `json:"mockState,omitempty"`
	// Trigger is the event to test against. A sample event accepted by the
	// automation's trigger is used when nil.
	Trigger *domain.AutomationEvent `json:"trigger,omitempty"`
}

// ActionPreview describes what an action would do.
type ActionPreview struct {
	Type         domain.ActionType `json:"type"`
	Summary      string            `json:"summary"`
	Target       string            `json:"target,omitempty"`
	WouldExecute bool              `json:"wouldExecute"`
	Invalid      string            `json:"invalid,omitempty"`
}

// TestResult is the outcome of a dry run. Nothing is dispatched or recorded.
type TestResult struct {
	AutomationID        string              `json:"automationId"`
	AutomationName      string              `json:"automationName"`
	Enabled             bool                `json:"enabled"`
	CanRun              bool                `json:"canRun"`
	Reason              string              `json:"reason,omitempty"`
	TriggerType         domain.TriggerType  `json:"triggerType"`
	TriggerMatched      bool                `json:"triggerMatched"`
	ConditionsEvaluated int                 `json:"conditionsEvaluated"`
	AllConditionsMet    bool                `json:"allConditionsMet"`
	ConditionResults    []conditions.Detail `json:"conditionResults"`
	Actions             []ActionPreview     `json:"actions"`
	StateSnapshot       map[string]any      `json:"stateSnapshot"`
	Message             string              `json:"message"`
	Timestamp           time.Time           `json:"timestamp"`
}

// TestAutomation previews an automation for a user allowed to manage its
// deployment. Access failures are returned before anything is evaluated.
func (e *Engine) TestAutomation(ctx context.Context, req TestRequest) (TestResult, error) {
	automation, err := e.authorize(ctx, req)
	if err != nil {
		return TestResult{}, err
	}

	state, err := e.stateTree(ctx, automation.DeploymentID, req.MockState)
	if err != nil {
		return TestResult{}, domain.Wrap(domain.CodeUnavailable, "test automation", err)
	}
	event := SampleEvent(automation)
	if req.Trigger != nil {
		event = *req.Trigger
	}

	details := conditions.EvaluateDetailed(automation.Conditions, conditions.Context{
		State:   state,
		Trigger: event.Metadata(),
	})
	allMet := true
	for _, detail := range details {
		if !detail.Passed {
			allMet = false
		}
	}

	now := e.now()
	decision, err := e.checkLimits(ctx, automation, now)
	if err != nil {
		return TestResult{}, domain.Wrap(domain.CodeUnavailable, "test automation", err)
	}

	previews := make([]ActionPreview, 0, len(automation.Actions))
	for _, action := range automation.Actions {
		summary, target := dispatch.Summary(action)
		preview := ActionPreview{Summary: summary, Target: target}
		dispatchable := action != nil
		if action != nil {
			preview.Type = action.Type()
			if err := action.Validate(); err != nil {
				dispatchable = false
				preview.Invalid = err.Error()
			}
		}
		preview.WouldExecute = dispatchable && allMet && decision.CanRun
		previews = append(previews, preview)
	}

	matched := MatchTrigger(automation, event)
	return TestResult{
		AutomationID:        automation.ID,
		AutomationName:      automation.Name,
		Enabled:             automation.Enabled,
		CanRun:              decision.CanRun,
		Reason:              decision.Reason,
		TriggerType:         automation.TriggerType(),
		TriggerMatched:      matched,
		ConditionsEvaluated: len(details),
		AllConditionsMet:    allMet,
		ConditionResults:    details,
		Actions:             previews,
		StateSnapshot:       state,
		Message:             previewMessage(automation, matched, allMet, decision.CanRun, decision.Reason, previews),
		Timestamp:           now,
	}, nil
}

func (e *Engine) authorize(ctx context.Context, req TestRequest) (domain.ToolAutomation, error) {
	const op = "test automation"
	automation, err := e.store.GetAutomation(ctx, req.AutomationID)
	if err != nil {
		return domain.ToolAutomation{}, domain.Wrap(domain.CodeUnavailable, op, err)
	}
	if req.DeploymentID != "" && req.DeploymentID != automation.DeploymentID {
		return domain.ToolAutomation{}, domain.E(domain.CodeNotFound, op,
			fmt.Sprintf("automation %s not found on deployment %s", req.AutomationID, req.DeploymentID), domain.ErrAutomationNotFound)
	}
	tool, err := e.tools.GetToolMetadata(ctx, automation.DeploymentID)
	if err != nil {
		return domain.ToolAutomation{}, domain.Wrap(domain.CodeUnavailable, op, err)
	}
	if tool == nil {
		return domain.ToolAutomation{}, domain.E(domain.CodeNotFound, op,
			fmt.Sprintf("deployment %s not found", automation.DeploymentID), domain.ErrToolNotFound)
	}
	if e.access == nil {
		return domain.ToolAutomation{}, domain.E(domain.CodePermissionDenied, op, "", errNoAccessChecker)
	}
	allowed, err := e.access.CanManageTool(ctx, req.UserID, *tool)
	if err != nil {
		return domain.ToolAutomation{}, domain.Wrap(domain.CodeUnavailable, op, err)
	}
	if !allowed {
		return domain.ToolAutomation{}, domain.E(domain.CodePermissionDenied, op,
			fmt.Sprintf("user %q cannot manage deployment %s", req.UserID, automation.DeploymentID), domain.ErrPermissionDenied)
	}
	return automation, nil
}

func previewMessage(automation domain.ToolAutomation, matched, allMet, canRun bool, reason string, previews []ActionPreview) string {
	executable := 0
	for _, preview := range previews {
		if preview.WouldExecute {
			executable++
		}
	}
	switch {
	case !automation.Enabled:
		return "Automation is disabled"
	case !canRun:
		return "Automation cannot run now: " + reason
	case !allMet:
		return "Conditions are not met; no actions would execute"
	case !matched:
		return fmt.Sprintf("Trigger would not match; %d action(s) would execute on a matching event", executable)
	default:
		return fmt.Sprintf("%d of %d action(s) would execute", executable, len(previews))
	}
}

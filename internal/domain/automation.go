package domain

import (
	"fmt"
	"strings"
	"time"
)

// TriggerType names the event class that makes an automation eligible.
type TriggerType string

const (
	TriggerTypeKeyword  TriggerType = "keyword"
	TriggerTypeEvent    TriggerType = "event"
	TriggerTypeSchedule TriggerType = "schedule"
)

// Trigger is a closed sum type: KeywordTrigger, EventTrigger or ScheduleTrigger.
type Trigger interface {
	Type() TriggerType
	isTrigger()
}

// KeywordTrigger fires when inbound text contains one of the keywords.
type KeywordTrigger struct {
	Keywords []string `json:"keywords"`
}

// EventTrigger fires on an external event with a matching name.
type EventTrigger struct {
	Event string `json:"event"`
}

// ScheduleTrigger fires on a cron schedule.
type ScheduleTrigger struct {
	Cron string `json:"cron"`
}

func (KeywordTrigger) Type() TriggerType  { return TriggerTypeKeyword }
func (EventTrigger) Type() TriggerType    { return TriggerTypeEvent }
func (ScheduleTrigger) Type() TriggerType { return TriggerTypeSchedule }

func (KeywordTrigger) isTrigger()  {}
func (EventTrigger) isTrigger()    {}
func (ScheduleTrigger) isTrigger() {}

// ActionType names an action variant.
type ActionType string

const (
	ActionTypeNotify      ActionType = "notify"
	ActionTypeMutate      ActionType = "mutate"
	ActionTypeTriggerTool ActionType = "triggerTool"
)

// NotifyChannel selects the delivery channel of a notification.
type NotifyChannel string

const (
	NotifyChannelEmail NotifyChannel = "email"
	NotifyChannelPush  NotifyChannel = "push"
)

// Action is a closed sum type: NotifyAction, MutateAction or TriggerToolAction.
type Action interface {
	Type() ActionType
	// Validate reports why the action cannot be dispatched, or nil.
	Validate() error
	isAction()
}

// NotifyAction sends a notification through the notification collaborator.
type NotifyAction struct {
	Channel    NotifyChannel  `json:"channel"`
	To         string         `json:"to"`
	TemplateID string         `json:"templateId,omitempty"`
	Title      string         `json:"title,omitempty"`
	Body       string         `json:"body,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// MutateAction writes path->value updates into an element configuration.
type MutateAction struct {
	ElementID string         `json:"elementId"`
	Mutation  map[string]any `json:"mutation"`
}

// TriggerToolAction invokes another tool instance with a named event.
type TriggerToolAction struct {
	DeploymentID string         `json:"deploymentId"`
	Event        string         `json:"event"`
	Payload      map[string]any `json:"payload,omitempty"`
}

func (NotifyAction) Type() ActionType      { return ActionTypeNotify }
func (MutateAction) Type() ActionType      { return ActionTypeMutate }
func (TriggerToolAction) Type() ActionType { return ActionTypeTriggerTool }

func (NotifyAction) isAction()      {}
func (MutateAction) isAction()      {}
func (TriggerToolAction) isAction() {}

// Validate implements Action.
func (a NotifyAction) Validate() error {
	switch a.Channel {
	case NotifyChannelEmail, NotifyChannelPush:
	default:
		return fmt.Errorf("notify: unsupported channel %q", a.Channel)
	}
	if strings.TrimSpace(a.To) == "" {
		return fmt.Errorf("notify: recipient is required")
	}
	if strings.TrimSpace(a.TemplateID) == "" && strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("notify: templateId or title is required")
	}
	return nil
}

// Validate implements Action.
func (a MutateAction) Validate() error {
	if strings.TrimSpace(a.ElementID) == "" {
		return fmt.Errorf("mutate: elementId is required")
	}
	if len(a.Mutation) == 0 {
		return fmt.Errorf("mutate: mutation is empty")
	}
	return nil
}

// Validate implements Action.
func (a TriggerToolAction) Validate() error {
	if strings.TrimSpace(a.DeploymentID) == "" {
		return fmt.Errorf("triggerTool: deploymentId is required")
	}
	if strings.TrimSpace(a.Event) == "" {
		return fmt.Errorf("triggerTool: event is required")
	}
	return nil
}

// Operator is a condition comparison operator.
type Operator string

const (
	OperatorEquals             Operator = "equals"
	OperatorNotEquals          Operator = "not_equals"
	OperatorGreaterThan        Operator = "greater_than"
	OperatorGreaterThanOrEqual Operator = "greater_than_or_equal"
	OperatorLessThan           Operator = "less_than"
	OperatorLessThanOrEqual    Operator = "less_than_or_equal"
	OperatorContains           Operator = "contains"
	OperatorNotContains        Operator = "not_contains"
	OperatorIn                 Operator = "in"
	OperatorNotIn              Operator = "not_in"
	OperatorStartsWith         Operator = "starts_with"
	OperatorEndsWith           Operator = "ends_with"
	OperatorExists             Operator = "exists"
	OperatorNotExists          Operator = "not_exists"
	OperatorIsEmpty            Operator = "is_empty"
	OperatorIsNotEmpty         Operator = "is_not_empty"
)

// Operators lists every supported operator.
var Operators = []Operator{
	OperatorEquals, OperatorNotEquals,
	OperatorGreaterThan, OperatorGreaterThanOrEqual,
	OperatorLessThan, OperatorLessThanOrEqual,
	OperatorContains, OperatorNotContains,
	OperatorIn, OperatorNotIn,
	OperatorStartsWith, OperatorEndsWith,
	OperatorExists, OperatorNotExists,
	OperatorIsEmpty, OperatorIsNotEmpty,
}

// Valid reports whether the operator is known.
func (o Operator) Valid() bool {
	for _, op := range Operators {
		if op == o {
			return true
		}
	}
	return false
}

// Condition compares the value at Field against Value.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value"`
}

// AutomationLimits bounds how often an automation may run. Zero values mean unset.
type AutomationLimits struct {
	MaxRunsPerDay   int `json:"maxRunsPerDay,omitempty"`
	CooldownSeconds int `json:"cooldownSeconds,omitempty"`
}

// Cooldown returns the cooldown as a duration.
func (l AutomationLimits) Cooldown() time.Duration {
	if l.CooldownSeconds <= 0 {
		return 0
	}
	return time.Duration(l.CooldownSeconds) * time.Second
}

// AutomationStats are best-effort counters updated on every dispatch attempt.
type AutomationStats struct {
	TimesTriggered int64      `json:"timesTriggered"`
	SuccessCount   int64      `json:"successCount"`
	FailureCount   int64      `json:"failureCount"`
	LastTriggered  *time.Time `json:"lastTriggered,omitempty"`
}

// ToolAutomation is a stored rule attached to a deployed tool.
type ToolAutomation struct {
	ID           string            `json:"id"`
	DeploymentID string            `json:"deploymentId"`
	SpaceID      string            `json:"spaceId,omitempty"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Enabled      bool              `json:"enabled"`
	Trigger      Trigger           `json:"-"`
	Conditions   []Condition       `json:"conditions"`
	Actions      []Action          `json:"-"`
	Limits       *AutomationLimits `json:"limits,omitempty"`
	RunCount     int64             `json:"runCount"`
	ErrorCount   int64             `json:"errorCount"`
	LastRun      *time.Time        `json:"lastRun,omitempty"`
	NextRun      *time.Time        `json:"nextRun,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	CreatedBy    string            `json:"createdBy,omitempty"`
	Stats        AutomationStats   `json:"stats"`
}

// EffectiveLimits returns the configured limits or the platform defaults when absent.
func (a ToolAutomation) EffectiveLimits(defaults AutomationLimits) AutomationLimits {
	if a.Limits == nil {
		return defaults
	}
	return *a.Limits
}

// TriggerType returns the automation's trigger type or "" when no trigger is set.
func (a ToolAutomation) TriggerType() TriggerType {
	if a.Trigger == nil {
		return ""
	}
	return a.Trigger.Type()
}

// RunOutcome is recorded after every dispatch attempt.
type RunOutcome struct {
	AutomationID string
	At           time.Time
	Success      bool
	Error        string
}

package domain

import "time"

// EventKind classifies an inbound automation event.
type EventKind string

const (
	// EventKindMessage carries free text (e.g. a chat message) for keyword triggers.
	EventKindMessage EventKind = "message"
	// EventKindExternal is a named external event for event triggers.
	EventKindExternal EventKind = "event"
	// EventKindSchedule is a schedule tick for one automation.
	EventKindSchedule EventKind = "schedule"
)

// TriggerType maps the event kind to the trigger type it can fire.
func (k EventKind) TriggerType() TriggerType {
	switch k {
	case EventKindMessage:
		return TriggerTypeKeyword
	case EventKindExternal:
		return TriggerTypeEvent
	case EventKindSchedule:
		return TriggerTypeSchedule
	default:
		return ""
	}
}

// AutomationEvent is one inbound occurrence evaluated by the automation engine.
type AutomationEvent struct {
	ID           string         `json:"id"`
	Kind         EventKind      `json:"kind"`
	SpaceID      string         `json:"spaceId,omitempty"`
	DeploymentID string         `json:"deploymentId,omitempty"`
	// Name is the caller-supplied discriminator: the event name for external
	// events and the automation id for schedule ticks.
	Name     string         `json:"name,omitempty"`
	Text     string         `json:"text,omitempty"`
	UserID   string         `json:"userId,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
	// Chain lists the deployments already visited by triggerTool dispatch.
	Chain      []string  `json:"chain,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Depth is the number of triggerTool hops that led to this event.
func (e AutomationEvent) Depth() int {
	return len(e.Chain)
}

// Metadata returns the trigger metadata exposed to conditions under "trigger.".
func (e AutomationEvent) Metadata() map[string]any {
	meta := map[string]any{
		"kind":  string(e.Kind),
		"depth": e.Depth(),
	}
	if e.Name != "" {
		meta["name"] = e.Name
		meta["event"] = e.Name
	}
	if e.Text != "" {
		meta["text"] = e.Text
	}
	if e.UserID != "" {
		meta["userId"] = e.UserID
	}
	if e.SpaceID != "" {
		meta["spaceId"] = e.SpaceID
	}
	if e.DeploymentID != "" {
		meta["deploymentId"] = e.DeploymentID
	}
	if e.Payload != nil {
		meta["payload"] = e.Payload
	}
	if !e.OccurredAt.IsZero() {
		meta["occurredAt"] = e.OccurredAt
	}
	return meta
}

package diagnostics

import "time"

// EventPhase describes the outcome of one automation evaluation step.
type EventPhase string

const (
	// PhasePass indicates the step let the automation continue.
	PhasePass EventPhase = "pass"
	// PhaseSkip indicates the step stopped the automation without error.
	PhaseSkip EventPhase = "skip"
	// PhaseError indicates the step failed.
	PhaseError EventPhase = "error"
)

const (
	StepTriggerMatch = "trigger_match"
	StepConditions   = "conditions"
	StepRateCheck    = "rate_check"
	StepDispatch     = "dispatch"
	StepStats        = "stats"
	StepConnection   = "connection"
)

// Event captures one step of an automation run or a connection resolution.
type Event struct {
	EventID      string            `json:"eventId,omitempty"`
	AutomationID string            `json:"automationId,omitempty"`
	DeploymentID string            `json:"deploymentId,omitempty"`
	Step         string            `json:"step"`
	Phase        EventPhase        `json:"phase"`
	Timestamp    time.Time         `json:"timestamp"`
	Duration     time.Duration     `json:"durationNs,omitempty"`
	Error        string            `json:"error,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Probe records diagnostics events in a non-blocking way.
type Probe interface {
	Record(event Event)
}

// NoopProbe ignores all diagnostics events.
type NoopProbe struct{}

func (NoopProbe) Record(Event) {}

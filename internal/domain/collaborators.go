package domain

import (
	"context"
	"time"
)

// ConnectionRepository reads connection definitions and tool state.
type ConnectionRepository interface {
	// GetIncomingConnections lists connections whose target is the instance.
	GetIncomingConnections(ctx context.Context, targetInstanceID, spaceID string) ([]ToolConnection, error)
	// GetConnection returns one connection by id.
	GetConnection(ctx context.Context, connectionID string) (ToolConnection, error)
	// GetToolSharedState returns nil with no error when the instance has no state.
	GetToolSharedState(ctx context.Context, instanceID string) (*SharedState, error)
	// GetToolMetadata returns nil with no error when the instance is unknown.
	GetToolMetadata(ctx context.Context, instanceID string) (*ToolMetadata, error)
}

// ElementRepository reads the element configuration tree of a tool instance.
type ElementRepository interface {
	GetToolElements(ctx context.Context, instanceID string) ([]*ToolElement, error)
}

// AutomationStore persists automations and their run statistics.
type AutomationStore interface {
	GetAutomation(ctx context.Context, automationID string) (ToolAutomation, error)
	ListAutomations(ctx context.Context, deploymentID string) ([]ToolAutomation, error)
	ListSpaceAutomations(ctx context.Context, spaceID string) ([]ToolAutomation, error)
	ListScheduledAutomations(ctx context.Context) ([]ToolAutomation, error)
	SaveAutomation(ctx context.Context, automation ToolAutomation) error
	// RecordRun atomically increments run statistics and the daily ledger.
	RecordRun(ctx context.Context, outcome RunOutcome) error
	// RunsSince counts runs recorded for the automation in the period starting at since.
	RunsSince(ctx context.Context, automationID string, since time.Time) (int, error)
	SetNextRun(ctx context.Context, automationID string, next time.Time) error
}

// Notification is the payload handed to the notification collaborator.
type Notification struct {
	ID           string         `json:"id"`
	Channel      NotifyChannel  `json:"channel"`
	To           string         `json:"to"`
	TemplateID   string         `json:"templateId,omitempty"`
	Title        string         `json:"title,omitempty"`
	Body         string         `json:"body,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	AutomationID string         `json:"automationId"`
	DeploymentID string         `json:"deploymentId"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Notifier sends notifications over email or push.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// StateMutator applies path->value updates to an element configuration.
type StateMutator interface {
	MutateElement(ctx context.Context, deploymentID, elementID string, mutation map[string]any) error
}

// ToolInvocation asks another tool instance to handle a named event.
type ToolInvocation struct {
	DeploymentID string
	Event        string
	Payload      map[string]any
	// Chain is the visited-deployment chain including the invoking deployment.
	Chain []string
}

// ToolInvoker delivers a tool invocation.
type ToolInvoker interface {
	InvokeTool(ctx context.Context, invocation ToolInvocation) error
}

// AccessChecker decides whether a user may manage a tool instance.
type AccessChecker interface {
	CanManageTool(ctx context.Context, userID string, tool ToolMetadata) (bool, error)
}

// EventPublisher hands an automation event to the asynchronous pipeline.
type EventPublisher interface {
	Publish(ctx context.Context, event AutomationEvent) error
}

// Clock returns the current time.
type Clock func() time.Time

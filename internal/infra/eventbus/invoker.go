package eventbus

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hive/internal/domain"
)

// Invoker delivers triggerTool actions as external events scoped to the
// target deployment.
type Invoker struct {
	publisher domain.EventPublisher
	now       domain.Clock
}

// NewInvoker creates a tool invoker publishing through publisher.
func NewInvoker(publisher domain.EventPublisher, clock domain.Clock) *Invoker {
	if clock == nil {
		clock = time.Now
	}
	return &Invoker{publisher: publisher, now: clock}
}

// InvokeTool implements domain.ToolInvoker.
func (i *Invoker) InvokeTool(ctx context.Context, invocation domain.ToolInvocation) error {
	chain := make([]string, len(invocation.Chain))
	copy(chain, invocation.Chain)
	return i.publisher.Publish(ctx, domain.AutomationEvent{
		ID:           uuid.NewString(),
		Kind:         domain.EventKindExternal,
		DeploymentID: invocation.DeploymentID,
		Name:         invocation.Event,
		Payload:      invocation.Payload,
		Chain:        chain,
		OccurredAt:   i.now().UTC(),
	})
}

var _ domain.ToolInvoker = (*Invoker)(nil)

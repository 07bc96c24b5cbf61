// Package eventbus carries automation events from producers (HTTP ingestion,
// the schedule runner, triggerTool dispatch) to the automation worker.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"hive/internal/domain"
	"hive/internal/infra/telemetry"
)

// TopicAutomationEvents is the topic every automation event is published on.
const TopicAutomationEvents = "automation.events"

const defaultOutputBuffer = 256

// Handler processes one delivered event. Errors are logged, never redelivered.
type Handler func(ctx context.Context, event domain.AutomationEvent) error

// Options configures a Bus.
type Options struct {
	OutputBuffer int64
	Logger       *zap.Logger
}

// Bus is an in-process publish/subscribe channel for automation events.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates an in-memory bus.
func New(opts Options) *Bus {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("eventbus")
	buffer := opts.OutputBuffer
	if buffer <= 0 {
		buffer = defaultOutputBuffer
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: buffer,
		}, newZapAdapter(logger)),
		logger: logger,
	}
}

// Publish implements domain.EventPublisher. Events published with no
// subscriber are dropped.
func (b *Bus) Publish(_ context.Context, event domain.AutomationEvent) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return domain.E(domain.CodeUnavailable, "eventbus publish", "bus is closed", nil)
	}
	if event.ID == "" {
		event.ID = watermill.NewUUID()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("kind", string(event.Kind))
	if err := b.pubsub.Publish(TopicAutomationEvents, msg); err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}

// Subscribe starts delivering events to handler on a background goroutine
// until ctx is done or the bus closes.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("eventbus subscribe: handler is required")
	}
	messages, err := b.pubsub.Subscribe(ctx, TopicAutomationEvents)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicAutomationEvents, err)
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range messages {
			b.deliver(ctx, msg, handler)
		}
	}()
	return nil
}

func (b *Bus) deliver(ctx context.Context, msg *message.Message, handler Handler) {
	defer msg.Ack()
	var event domain.AutomationEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		b.logger.Warn("drop undecodable event", zap.String("messageID", msg.UUID), zap.Error(err))
		return
	}
	if err := handler(ctx, event); err != nil {
		b.logger.Warn("event handler failed",
			telemetry.EventField(telemetry.EventWorkerFailure),
			zap.String("eventID", event.ID),
			telemetry.DeploymentIDField(event.DeploymentID),
			zap.Error(err),
		)
	}
}

// Close stops the bus and waits for in-flight deliveries.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}

var _ domain.EventPublisher = (*Bus)(nil)

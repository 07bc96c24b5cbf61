package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/domain"
)

type fakeNotifier struct {
	sent []domain.Notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n domain.Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

type mutation struct {
	deploymentID string
	elementID    string
	values       map[string]any
}

type fakeMutator struct {
	calls []mutation
}

func (f *fakeMutator) MutateElement(_ context.Context, deploymentID, elementID string, values map[string]any) error {
	f.calls = append(f.calls, mutation{deploymentID: deploymentID, elementID: elementID, values: values})
	return nil
}

type fakeInvoker struct {
	invocations []domain.ToolInvocation
}

func (f *fakeInvoker) InvokeTool(_ context.Context, invocation domain.ToolInvocation) error {
	f.invocations = append(f.invocations, invocation)
	return nil
}

type recordingMetrics struct {
	domain.Metrics
	actions []domain.ActionMetric
}

func (m *recordingMetrics) ObserveAction(metric domain.ActionMetric) {
	m.actions = append(m.actions, metric)
}

func newTestDispatcher(depth int) (*Dispatcher, *fakeNotifier, *fakeMutator, *fakeInvoker, *recordingMetrics) {
	notifier := &fakeNotifier{}
	mutator := &fakeMutator{}
	invoker := &fakeInvoker{}
	metrics := &recordingMetrics{}
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	d := NewDispatcher(notifier, mutator, invoker, Options{
		MaxTriggerDepth: depth,
		Metrics:         metrics,
		Clock:           func() time.Time { return now },
	})
	return d, notifier, mutator, invoker, metrics
}

func TestDispatchNotify(t *testing.T) {
	d, notifier, _, _, metrics := newTestDispatcher(0)
	automation := domain.ToolAutomation{ID: "auto", DeploymentID: "dep"}

	err := d.Dispatch(context.Background(), Request{
		Automation: automation,
		Action:     domain.NotifyAction{Channel: domain.NotifyChannelPush, To: "user-1", Title: "Hi"},
	})
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	sent := notifier.sent[0]
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, "auto", sent.AutomationID)
	assert.Equal(t, "dep", sent.DeploymentID)
	assert.Equal(t, time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC), sent.CreatedAt)

	require.Len(t, metrics.actions, 1)
	assert.Equal(t, domain.ActionTypeNotify, metrics.actions[0].Type)
	assert.NoError(t, metrics.actions[0].Err)
}

func TestDispatchNotifyFailureIsReturned(t *testing.T) {
	d, notifier, _, _, metrics := newTestDispatcher(0)
	notifier.err = errors.New("smtp down")

	err := d.Dispatch(context.Background(), Request{
		Automation: domain.ToolAutomation{ID: "auto"},
		Action:     domain.NotifyAction{Channel: domain.NotifyChannelEmail, To: "a@example.com", TemplateID: "welcome"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, notifier.sent, 1, "no retries")
	require.Len(t, metrics.actions, 1)
	assert.Error(t, metrics.actions[0].Err)
}

func TestDispatchMutate(t *testing.T) {
	d, _, mutator, _, _ := newTestDispatcher(0)
	err := d.Dispatch(context.Background(), Request{
		Automation: domain.ToolAutomation{ID: "auto", DeploymentID: "dep"},
		Action:     domain.MutateAction{ElementID: "banner", Mutation: map[string]any{"text": "hi"}},
	})
	require.NoError(t, err)
	require.Len(t, mutator.calls, 1)
	assert.Equal(t, "dep", mutator.calls[0].deploymentID)
	assert.Equal(t, "banner", mutator.calls[0].elementID)
}

func TestDispatchRejectsInvalidAction(t *testing.T) {
	d, _, mutator, _, _ := newTestDispatcher(0)
	err := d.Dispatch(context.Background(), Request{
		Action: domain.MutateAction{ElementID: "banner"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Empty(t, mutator.calls)

	err = d.Dispatch(context.Background(), Request{})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestDispatchMissingCollaborator(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, Options{})
	err := d.Dispatch(context.Background(), Request{
		Action: domain.TriggerToolAction{DeploymentID: "dep-b", Event: "ping"},
	})
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeUnavailable, code)
}

func TestDispatchTriggerToolExtendsChain(t *testing.T) {
	d, _, _, invoker, _ := newTestDispatcher(0)
	err := d.Dispatch(context.Background(), Request{
		Automation: domain.ToolAutomation{ID: "auto", DeploymentID: "dep-b"},
		Action:     domain.TriggerToolAction{DeploymentID: "dep-c", Event: "ping", Payload: map[string]any{"n": 1}},
		Chain:      []string{"dep-a"},
	})
	require.NoError(t, err)
	require.Len(t, invoker.invocations, 1)
	invocation := invoker.invocations[0]
	assert.Equal(t, "dep-c", invocation.DeploymentID)
	assert.Equal(t, "ping", invocation.Event)
	assert.Equal(t, []string{"dep-a", "dep-b"}, invocation.Chain)
}

func TestDispatchTriggerToolRefusesCycle(t *testing.T) {
	d, _, _, invoker, _ := newTestDispatcher(0)
	err := d.Dispatch(context.Background(), Request{
		Automation: domain.ToolAutomation{ID: "auto", DeploymentID: "dep-b"},
		Action:     domain.TriggerToolAction{DeploymentID: "dep-a", Event: "ping"},
		Chain:      []string{"dep-a"},
	})
	require.ErrorIs(t, err, domain.ErrTriggerCycle)
	assert.Empty(t, invoker.invocations)

	err = d.Dispatch(context.Background(), Request{
		Automation: domain.ToolAutomation{ID: "auto", DeploymentID: "dep-a"},
		Action:     domain.TriggerToolAction{DeploymentID: "dep-a", Event: "ping"},
	})
	require.ErrorIs(t, err, domain.ErrTriggerCycle, "a tool cannot trigger itself")
}

func TestDispatchTriggerToolDepthLimit(t *testing.T) {
	d, _, _, invoker, _ := newTestDispatcher(2)
	err := d.Dispatch(context.Background(), Request{
		Automation: domain.ToolAutomation{ID: "auto", DeploymentID: "dep-b"},
		Action:     domain.TriggerToolAction{DeploymentID: "dep-z", Event: "ping"},
		Chain:      []string{"dep-a"},
	})
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), Request{
		Automation: domain.ToolAutomation{ID: "auto", DeploymentID: "dep-c"},
		Action:     domain.TriggerToolAction{DeploymentID: "dep-z", Event: "ping"},
		Chain:      []string{"dep-a", "dep-b"},
	})
	require.ErrorIs(t, err, domain.ErrTriggerDepthExceeded)
	assert.Len(t, invoker.invocations, 1)

	d.SetMaxTriggerDepth(3)
	require.NoError(t, d.CheckChain([]string{"a", "b", "c"}, "z"))
	d.SetMaxTriggerDepth(0)
	require.NoError(t, d.CheckChain([]string{"a", "b", "c"}, "z"), "non-positive depth is ignored")
}

func TestNextChainDoesNotAlias(t *testing.T) {
	base := make([]string, 1, 4)
	base[0] = "a"
	next := NextChain(base, "b")
	other := NextChain(base, "c")
	assert.Equal(t, []string{"a", "b"}, next)
	assert.Equal(t, []string{"a", "c"}, other)
	assert.Equal(t, []string{"a"}, NextChain(base, "a"))
	assert.Equal(t, []string{"a"}, NextChain(base, ""))
}

func TestSummary(t *testing.T) {
	summary, target := Summary(domain.NotifyAction{Channel: domain.NotifyChannelEmail, To: "a@example.com", Title: "Welcome"})
	assert.Equal(t, `Send email notification "Welcome" to a@example.com`, summary)
	assert.Equal(t, "a@example.com", target)

	summary, _ = Summary(domain.NotifyAction{Channel: domain.NotifyChannelPush, To: "u", TemplateID: "t1"})
	assert.Equal(t, `Send push notification "template t1" to u`, summary)

	summary, target = Summary(domain.MutateAction{ElementID: "banner", Mutation: map[string]any{"b": 1, "a": 2}})
	assert.Equal(t, "Update 2 field(s) on element banner: [a b]", summary)
	assert.Equal(t, "banner", target)

	summary, target = Summary(domain.TriggerToolAction{DeploymentID: "dep", Event: "ping"})
	assert.Equal(t, `Trigger event "ping" on tool dep`, summary)
	assert.Equal(t, "dep", target)

	summary, target = Summary(nil)
	assert.Equal(t, "Unknown action", summary)
	assert.Empty(t, target)
}

package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/domain"
	"hive/internal/infra/store"
)

func TestLoadSeed(t *testing.T) {
	t.Setenv("SEED_OWNER_EMAIL", "alice@example.com")

	seed, err := LoadSeed(filepath.Join("testdata", "seed.yaml"))
	require.NoError(t, err)
	require.Len(t, seed.Tools, 2)
	require.Len(t, seed.Connections, 2)
	require.Len(t, seed.Automations, 2)

	assert.Equal(t, "members-tool", seed.Tools[0].InstanceID)
	assert.Equal(t, "alice", seed.Tools[0].OwnerID)
	require.NotNil(t, seed.Tools[0].State)
	assert.Equal(t, 5.0, seed.Tools[0].State.Counters["members"])
	assert.NotEmpty(t, seed.Connections[1].ID, "missing ids are generated")
	assert.Equal(t, "count", seed.Connections[1].Transform)

	welcome := seed.Automations[0]
	assert.Equal(t, domain.KeywordTrigger{Keywords: []string{"hello", "hi"}}, welcome.Trigger)
	require.Len(t, welcome.Actions, 1)
	notify, ok := welcome.Actions[0].(domain.NotifyAction)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", notify.To)
	assert.Equal(t, &domain.AutomationLimits{MaxRunsPerDay: 10}, welcome.Limits)
	assert.Equal(t, domain.ScheduleTrigger{Cron: "0 0 * * *"}, seed.Automations[1].Trigger)
}

func TestParseSeedRejectsInvalidEntries(t *testing.T) {
	_, err := ParseSeed([]byte(`
tools:
  - name: nameless
connections:
  - id: c1
    source: {instanceId: a}
    target: {instanceId: b, elementId: e, inputPath: v}
    transform: frobnicate
automations:
  - deploymentId: a
    trigger: {type: schedule, cron: "not cron"}
    conditions:
      - {field: x, operator: roughly}
    actions:
      - {type: mutate, elementId: e}
`))
	require.Error(t, err)
	for _, fragment := range []string{
		"tools[0]: instanceId is required",
		"connections[0]: source instanceId and path are required",
		"connections[0]: unknown transform",
		"automations[0]: parse cron",
		`automations[0].conditions[0]: unknown operator "roughly"`,
		"automations[0].actions[0]: mutate: mutation is empty",
	} {
		assert.Contains(t, err.Error(), fragment)
	}
}

func TestParseSeedRejectsUnknownActionType(t *testing.T) {
	_, err := ParseSeed([]byte(`
automations:
  - deploymentId: a
    trigger: {type: event, event: ping}
    actions:
      - {type: teleport}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode seed")
}

func TestSeedApply(t *testing.T) {
	t.Setenv("SEED_OWNER_EMAIL", "alice@example.com")
	seed, err := LoadSeed(filepath.Join("testdata", "seed.yaml"))
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "hive.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})
	ctx := context.Background()

	summary, err := seed.Apply(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, SeedSummary{Tools: 2, States: 1, Elements: 1, Connections: 2, Automations: 2}, summary)

	incoming, err := st.GetIncomingConnections(ctx, "dashboard", "space-1")
	require.NoError(t, err)
	assert.Len(t, incoming, 2)

	elements, err := st.GetToolElements(ctx, "dashboard")
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "Members", elements[0].Config["label"])

	scheduled, err := st.ListScheduledAutomations(ctx)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "nightly", scheduled[0].ID)
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedStateTree(t *testing.T) {
	modified := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	state := &SharedState{
		Counters:     map[string]float64{"members": 3},
		Collections:  map[string][]any{"tasks": {"a", "b"}},
		Timeline:     []TimelineEvent{{ID: "e1", Type: "joined", UserID: "u1", Timestamp: modified}},
		Computed:     map[string]any{"ratio": 0.5},
		Version:      4,
		LastModified: modified,
	}

	tree := state.Tree()
	assert.Equal(t, float64(3), tree["counters"].(map[string]any)["members"])
	assert.Equal(t, []any{"a", "b"}, tree["collections"].(map[string]any)["tasks"])
	assert.Equal(t, int64(4), tree["version"])
	timeline := tree["timeline"].([]any)
	require.Len(t, timeline, 1)
	assert.Equal(t, "u1", timeline[0].(map[string]any)["userId"])

	tree["collections"].(map[string]any)["tasks"].([]any)[0] = "changed"
	assert.Equal(t, "a", state.Collections["tasks"][0], "tree does not alias state slices")
}

func TestSharedStateTreeNil(t *testing.T) {
	var state *SharedState
	assert.Empty(t, state.Tree())
	assert.NotNil(t, EmptySharedState().Counters)
}

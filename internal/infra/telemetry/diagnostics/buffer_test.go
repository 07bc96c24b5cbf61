package diagnostics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacklogKeepsNewest(t *testing.T) {
	backlog := NewBacklog[string](3, 0)
	assert.Empty(t, backlog.Recent(0))

	for _, v := range []string{"a", "b"} {
		backlog.store(v)
	}
	assert.Equal(t, []string{"a", "b"}, backlog.Recent(0))

	for _, v := range []string{"c", "d", "e"} {
		backlog.store(v)
	}
	assert.Equal(t, []string{"c", "d", "e"}, backlog.Recent(0))
	assert.Equal(t, []string{"d", "e"}, backlog.Recent(2))
	assert.Equal(t, []string{"c", "d", "e"}, backlog.Recent(10))
}

func TestBacklogIntakeOverflow(t *testing.T) {
	backlog := NewBacklog[int](4, 1)
	backlog.Push(1)
	backlog.Push(2)
	backlog.Push(3)
	assert.Equal(t, uint64(2), backlog.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backlog.Run(ctx)
	backlog.Run(ctx)
	backlog.Push(4)
	require.Eventually(t, func() bool {
		recent := backlog.Recent(0)
		return len(recent) == 2 && recent[0] == 1 && recent[1] == 4
	}, time.Second, 5*time.Millisecond)
}

func TestNilBacklog(t *testing.T) {
	var backlog *Backlog[int]
	backlog.Push(1)
	backlog.Run(context.Background())
	assert.Nil(t, backlog.Recent(0))
	assert.Zero(t, backlog.Dropped())
}

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	from := time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)

	next, err := Next("0 9 * * *", from, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC), next)

	tokyo := time.FixedZone("JST", 9*60*60)
	next, err = Next("0 9 * * *", from, tokyo)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC), next)

	next, err = Next("*/15 * * * *", from, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 4, 8, 45, 0, 0, time.UTC), next)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("@hourly"))
	assert.Error(t, Validate(""))
	assert.Error(t, Validate("not a cron"))
}

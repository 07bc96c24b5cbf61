package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventThrottle_PerSpaceBurst(t *testing.T) {
	throttle := NewEventThrottle(1, 2)
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	assert.True(t, throttle.Allow("space-a", now))
	assert.True(t, throttle.Allow("space-a", now))
	assert.False(t, throttle.Allow("space-a", now))
	assert.True(t, throttle.Allow("space-b", now), "spaces have independent buckets")

	assert.True(t, throttle.Allow("space-a", now.Add(time.Second)))
}

func TestEventThrottle_Unlimited(t *testing.T) {
	throttle := NewEventThrottle(0, 0)
	now := time.Now()
	for i := 0; i < 100; i++ {
		assert.True(t, throttle.Allow("space", now))
	}
}

func TestEventThrottle_SetRateAndPrune(t *testing.T) {
	throttle := NewEventThrottle(0, 1)
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	assert.True(t, throttle.Allow("space", now))

	throttle.SetRate(1, 1, now)
	assert.True(t, throttle.Allow("space", now.Add(time.Second)))
	assert.False(t, throttle.Allow("space", now.Add(time.Second)))

	assert.Equal(t, 0, throttle.Prune(now.Add(time.Minute)))
	assert.Equal(t, 1, throttle.Prune(now.Add(time.Hour)))
}

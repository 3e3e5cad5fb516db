package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRateLimiter()
	r.now = func() time.Time { return now }

	assert.False(t, r.IsLimited(1, "tariff"))
	assert.True(t, r.IsLimited(1, "tariff"))
	assert.False(t, r.IsLimited(2, "tariff"), "limits are per user")
	assert.False(t, r.IsLimited(1, "/start"), "limits are per key")

	now = now.Add(11 * time.Second)
	assert.False(t, r.IsLimited(1, "tariff"))

	assert.False(t, r.IsLimited(1, "/unknown"))
	now = now.Add(1500 * time.Millisecond)
	assert.False(t, r.IsLimited(1, "/unknown"), "fallback limit applies to unknown keys")
}

func TestRateLimiterPrune(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRateLimiter()
	r.now = func() time.Time { return now }

	r.IsLimited(1, "/start")
	now = now.Add(time.Minute)
	r.IsLimited(2, "/start")
	r.Prune()

	assert.NotContains(t, r.lastCall, int64(1))
	assert.Contains(t, r.lastCall, int64(2))
}

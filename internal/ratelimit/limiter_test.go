package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hoopvalue/engine/internal/domain"
)

func TestLimiter_BurstThenThrottle(t *testing.T) {
	l := New("markets", Config{RequestsPerSecond: 0.1, Burst: 1, MaxWait: 30 * time.Millisecond})

	require.True(t, l.Allow(), "first request should consume the burst token")
	require.False(t, l.Allow(), "second immediate request should be denied")
}

func TestLimiter_AcquireTimesOutAsThrottled(t *testing.T) {
	l := New("gamelog", Config{RequestsPerSecond: 0.1, Burst: 1, MaxWait: 20 * time.Millisecond})
	require.NoError(t, l.Acquire(context.Background()))

	err := l.Acquire(context.Background())
	require.Error(t, err)
	var throttled *domain.ThrottledError
	require.ErrorAs(t, err, &throttled)
}

func TestManager_UnregisteredUpstreamPassesThrough(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Acquire(context.Background(), "unknown-upstream"))
}

func TestManager_RegisteredUpstreamIsThrottled(t *testing.T) {
	m := NewManager()
	m.Register("teamform", Config{RequestsPerSecond: 0.1, Burst: 1, MaxWait: 15 * time.Millisecond})

	require.NoError(t, m.Acquire(context.Background(), "teamform"))
	require.Error(t, m.Acquire(context.Background(), "teamform"))
}

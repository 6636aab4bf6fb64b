package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New("markets", Config{ConsecutiveFailures: 3, Window: time.Second, Cooldown: 20 * time.Millisecond})

	require.True(t, cb.Allow())
	cb.RecordFailure()
	require.True(t, cb.Allow())
	cb.RecordFailure()
	require.True(t, cb.Allow())
	cb.RecordFailure()

	require.Equal(t, Open, cb.State())
	require.False(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenSingleTrialThenClose(t *testing.T) {
	cb := New("gamelog", Config{ConsecutiveFailures: 2, Window: time.Second, Cooldown: 10 * time.Millisecond})
	cb.RecordFailure()
	cb.RecordFailure()
	require.Equal(t, Open, cb.State())

	time.Sleep(15 * time.Millisecond)
	require.True(t, cb.Allow(), "cooldown elapsed, should move to half-open and allow one trial")
	require.Equal(t, HalfOpen, cb.State())
	require.False(t, cb.Allow(), "a second concurrent call must not also be admitted")

	cb.RecordSuccess()
	require.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New("teamform", Config{ConsecutiveFailures: 1, Window: time.Second, Cooldown: 5 * time.Millisecond})
	cb.RecordFailure()
	require.Equal(t, Open, cb.State())

	time.Sleep(10 * time.Millisecond)
	require.True(t, cb.Allow())
	cb.RecordFailure()
	require.Equal(t, Open, cb.State())
}

func TestCircuitBreaker_FailuresOutsideWindowDoNotAccumulate(t *testing.T) {
	cb := New("markets", Config{ConsecutiveFailures: 2, Window: 5 * time.Millisecond, Cooldown: time.Second})
	cb.RecordFailure()
	time.Sleep(10 * time.Millisecond)
	cb.RecordFailure()
	require.Equal(t, Closed, cb.State(), "a stale failure outside the window should not combine with a fresh one")
}

func TestGobreakerAdapter_SatisfiesInterface(t *testing.T) {
	var b Breaker = NewGobreakerAdapter("gamelog-alt", Config{ConsecutiveFailures: 2, Window: time.Second, Cooldown: 10 * time.Millisecond})
	require.True(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, Open, b.State())
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hoopvalue/engine/internal/breaker"
	"github.com/hoopvalue/engine/internal/domain"
)

func TestExecutor_NonTransientFailsImmediately(t *testing.T) {
	e := New(Config{MaxAttempts: 5, BaseDelay: time.Millisecond, Factor: 2})
	calls := 0
	err := e.Do(context.Background(), "markets", nil, func(ctx context.Context) error {
		calls++
		return &domain.BadUpstream{Reason: "bad json"}
	})
	require.Error(t, err)
	require.Equal(t, 1, calls, "non-transient errors must not be retried")
}

func TestExecutor_TransientRetriesThenSucceeds(t *testing.T) {
	e := New(Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2})
	calls := 0
	err := e.Do(context.Background(), "gamelog", nil, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return MarkTransient(errors.New("503"))
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestExecutor_ExhaustsToTransientExhausted(t *testing.T) {
	e := New(Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2})
	calls := 0
	err := e.Do(context.Background(), "gamelog", nil, func(ctx context.Context) error {
		calls++
		return MarkTransient(errors.New("timeout"))
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)

	var exhausted *domain.TransientExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Attempts)
}

func TestExecutor_DoesNotRetryWhenCircuitOpen(t *testing.T) {
	cb := breaker.New("markets", breaker.Config{ConsecutiveFailures: 1, Window: time.Second, Cooldown: time.Minute})
	cb.RecordFailure() // opens the circuit

	e := New(Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2})
	calls := 0
	err := e.Do(context.Background(), "markets", cb, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.Error(t, err)
	require.Equal(t, 0, calls, "open circuit must short-circuit before invoking fn")

	var circuitOpen *domain.CircuitOpenError
	require.ErrorAs(t, err, &circuitOpen)
}

func TestExecutor_RespectsContextCancellation(t *testing.T) {
	e := New(Config{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, Factor: 2})
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := e.Do(ctx, "gamelog", nil, func(ctx context.Context) error {
		calls++
		return MarkTransient(errors.New("503"))
	})
	require.Error(t, err)
}

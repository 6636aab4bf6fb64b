// Package retry implements the bounded-retry executor from §4.3:
// exponential backoff with jitter, a declared transient-error set, and
// a circuit-aware short circuit. Adapted from cryptorun's
// internal/infrastructure/async/pool.go retry/backoff fields and
// internal/provider/circuit_breaker.go's Call(fn) wrapper shape.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/hoopvalue/engine/internal/breaker"
	"github.com/hoopvalue/engine/internal/domain"
)

// Config parameterizes the executor.
type Config struct {
	MaxAttempts int           // A, default 3
	BaseDelay   time.Duration // d0
	Factor      float64       // f, default 2
}

// DefaultConfig matches §4.3's stated defaults.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Second, Factor: 2}
}

// Transient reports whether an error belongs to the declared
// transient set: network errors, timeouts, HTTP 429/5xx, or an
// explicit Retry outcome. Callers mark their own errors by
// implementing this interface, or retry.MarkTransient wraps one.
type Transient interface {
	Transient() bool
}

type transientError struct{ error }

func (transientError) Transient() bool { return true }

// MarkTransient wraps err so IsTransient reports true for it.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err}
}

// IsTransient classifies err per §4.3. BadUpstream and
// PlayerNotFound are explicitly non-transient and surfaced
// immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var badUpstream *domain.BadUpstream
	if errors.As(err, &badUpstream) {
		return false
	}
	var playerNotFound *domain.PlayerNotFound
	if errors.As(err, &playerNotFound) {
		return false
	}
	var t Transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}

// Executor runs operations with retry, backoff, jitter, and a
// circuit-breaker guard.
type Executor struct {
	cfg Config
	rnd *rand.Rand
}

// New constructs an Executor.
func New(cfg Config) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	if cfg.Factor <= 0 {
		cfg.Factor = DefaultConfig().Factor
	}
	return &Executor{cfg: cfg, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Do runs fn, retrying on transient errors up to MaxAttempts, honoring
// ctx cancellation and refusing to retry while cb reports the circuit
// open. On non-transient error, it returns immediately. On exhaustion
// of a transient error, it returns *domain.TransientExhaustedError.
func (e *Executor) Do(ctx context.Context, upstream string, cb breaker.Breaker, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if cb != nil && !cb.Allow() {
			return &domain.CircuitOpenError{Upstream: upstream}
		}

		err := fn(ctx)
		if err == nil {
			if cb != nil {
				cb.RecordSuccess()
			}
			return nil
		}

		if cb != nil {
			cb.RecordFailure()
		}

		if !IsTransient(err) {
			return err
		}
		lastErr = err

		if attempt == e.cfg.MaxAttempts {
			break
		}

		delay := e.backoff(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return &domain.TransientExhaustedError{Upstream: upstream, Attempts: e.cfg.MaxAttempts, Last: lastErr}
}

// backoff computes the delay before retrying after attempt k: full
// jitter sampled uniformly from [0, d0*f^(k-1)), per §4.3.
func (e *Executor) backoff(attempt int) time.Duration {
	scale := pow(e.cfg.Factor, attempt-1)
	window := time.Duration(float64(e.cfg.BaseDelay) * scale)
	if window <= 0 {
		return 0
	}
	return time.Duration(e.rnd.Int63n(int64(window)))
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

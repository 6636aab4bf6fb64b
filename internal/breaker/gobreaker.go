package breaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// GobreakerAdapter satisfies Breaker by delegating to
// github.com/sony/gobreaker, giving operators a drop-in alternative
// backend with the library's own generation-counted sliding-window
// counters instead of the hand-rolled consecutive-failure tracker in
// CircuitBreaker. Nothing in internal/config selects it: NewDeps builds
// the hand-rolled CircuitBreaker, and callers construct this adapter
// explicitly.
type GobreakerAdapter struct {
	cb *gobreaker.CircuitBreaker
}

var errBreakerProbeDenied = errors.New("gobreaker: probe denied")

// NewGobreakerAdapter builds an adapter configured to approximate this
// spec's consecutive-failure-then-cooldown-then-single-probe contract.
func NewGobreakerAdapter(name string, cfg Config) *GobreakerAdapter {
	timeout := cfg.Cooldown
	if timeout <= 0 {
		timeout = probeCooldownFloor
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // single half-open trial, per §4.2
		Interval:    cfg.Window,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.ConsecutiveFailures)
		},
	}
	return &GobreakerAdapter{cb: gobreaker.NewCircuitBreaker(st)}
}

// Allow reports whether gobreaker would currently admit a call,
// without itself performing a state transition side effect beyond
// what gobreaker.State() triggers internally.
func (g *GobreakerAdapter) Allow() bool {
	return g.cb.State() != gobreaker.StateOpen
}

func (g *GobreakerAdapter) RecordSuccess() {
	_, _ = g.cb.Execute(func() (interface{}, error) { return nil, nil })
}

func (g *GobreakerAdapter) RecordFailure() {
	_, _ = g.cb.Execute(func() (interface{}, error) { return nil, errBreakerProbeDenied })
}

func (g *GobreakerAdapter) State() State {
	switch g.cb.State() {
	case gobreaker.StateClosed:
		return Closed
	case gobreaker.StateOpen:
		return Open
	case gobreaker.StateHalfOpen:
		return HalfOpen
	default:
		return Closed
	}
}

// Call executes fn through gobreaker directly, which is the more
// idiomatic way to drive this backend (RecordSuccess/RecordFailure
// above exist only to satisfy the shared Breaker interface).
func (g *GobreakerAdapter) Call(fn func() error) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

var _ Breaker = (*GobreakerAdapter)(nil)

// probeCooldownFloor guards against a misconfigured zero cooldown
// turning the half-open probe into a busy loop.
const probeCooldownFloor = 50 * time.Millisecond

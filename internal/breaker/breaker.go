// Package breaker implements the per-upstream circuit breaker from
// §4.2: opens after N consecutive failures within a window, short
// circuits for a cooldown, then allows a single half-open trial
// before closing. Adapted from cryptorun's
// internal/provider/circuit_breaker.go, generalized from a
// failure-rate trigger to the consecutive-failure trigger this spec
// requires, and keyed per upstream instead of per provider.
package breaker

import (
	"sync"
	"time"

	"github.com/hoopvalue/engine/internal/domain"
)

// State is the circuit breaker's current disposition.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config parameterizes a Breaker.
type Config struct {
	// ConsecutiveFailures opens the circuit once this many failures in
	// a row have landed inside Window.
	ConsecutiveFailures int
	Window              time.Duration
	Cooldown            time.Duration
}

// DefaultConfig matches the teacher's defaults, adapted to this spec's
// consecutive-failure trigger.
func DefaultConfig() Config {
	return Config{
		ConsecutiveFailures: 5,
		Window:              60 * time.Second,
		Cooldown:            30 * time.Second,
	}
}

// Breaker is the interface both the hand-rolled and gobreaker-backed
// implementations satisfy, so callers (internal/retry) never know
// which backend is in play.
type Breaker interface {
	// Allow reports whether a call may proceed, transitioning
	// Open->HalfOpen when the cooldown has elapsed.
	Allow() bool
	// RecordSuccess reports a successful call outcome.
	RecordSuccess()
	// RecordFailure reports a failed call outcome.
	RecordFailure()
	State() State
}

// CircuitBreaker is the primary, teacher-grounded implementation.
type CircuitBreaker struct {
	name   string
	config Config

	mu                sync.Mutex
	state             State
	consecutiveFails  int
	windowStart       time.Time
	nextProbeAt       time.Time
	halfOpenInFlight  bool
}

// New constructs a CircuitBreaker for the given upstream name.
func New(name string, cfg Config) *CircuitBreaker {
	if cfg.ConsecutiveFailures <= 0 {
		cfg.ConsecutiveFailures = DefaultConfig().ConsecutiveFailures
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	return &CircuitBreaker{name: name, config: cfg, state: Closed}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a call may proceed right now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	switch cb.state {
	case Closed:
		return true
	case Open:
		if now.After(cb.nextProbeAt) {
			cb.state = HalfOpen
			cb.halfOpenInFlight = true
			return true
		}
		return false
	case HalfOpen:
		// Only one trial call is allowed while half-open.
		if cb.halfOpenInFlight {
			return false
		}
		cb.halfOpenInFlight = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == HalfOpen {
		cb.close()
		return
	}
	cb.consecutiveFails = 0
	cb.windowStart = time.Time{}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	if cb.state == HalfOpen {
		cb.open(now)
		return
	}

	if cb.windowStart.IsZero() || now.Sub(cb.windowStart) > cb.config.Window {
		cb.windowStart = now
		cb.consecutiveFails = 0
	}
	cb.consecutiveFails++

	if cb.consecutiveFails >= cb.config.ConsecutiveFailures {
		cb.open(now)
	}
}

func (cb *CircuitBreaker) open(now time.Time) {
	cb.state = Open
	cb.halfOpenInFlight = false
	cb.nextProbeAt = now.Add(cb.config.Cooldown)
}

func (cb *CircuitBreaker) close() {
	cb.state = Closed
	cb.consecutiveFails = 0
	cb.windowStart = time.Time{}
	cb.halfOpenInFlight = false
}

// CallErr wraps a function with circuit-breaker protection, returning
// a *domain.CircuitOpenError immediately when the breaker is open.
func (cb *CircuitBreaker) CallErr(upstream string, fn func() error) error {
	if !cb.Allow() {
		return &domain.CircuitOpenError{Upstream: upstream}
	}
	err := fn()
	if err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

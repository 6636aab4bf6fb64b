// Package ratelimit provides a per-upstream token-bucket limiter built
// on golang.org/x/time/rate, adapted from cryptorun's
// internal/net/ratelimit/limiter.go. Rather than keying by host, this
// keys by upstream name (Markets, GameLog, TeamForm) per spec §6 E4.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hoopvalue/engine/internal/domain"
)

// Config is one upstream's {rate, burst, max_wait} triple.
type Config struct {
	RequestsPerSecond float64
	Burst             int
	MaxWait           time.Duration
}

// Limiter wraps a single upstream's token bucket.
type Limiter struct {
	name    string
	maxWait time.Duration
	rl      *rate.Limiter
}

// New constructs a Limiter for one upstream.
func New(name string, cfg Config) *Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		name:    name,
		maxWait: cfg.MaxWait,
		rl:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

// Acquire blocks until a token is available or max_wait elapses,
// returning a *domain.ThrottledError on timeout per §4.2.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx := ctx
	var cancel context.CancelFunc
	if l.maxWait > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, l.maxWait)
		defer cancel()
	}

	if err := l.rl.Wait(waitCtx); err != nil {
		return &domain.ThrottledError{Upstream: l.name, Waited: l.maxWait.String()}
	}
	return nil
}

// Allow is a non-blocking check, useful for metrics/diagnostics.
func (l *Limiter) Allow() bool {
	return l.rl.Allow()
}

// Manager owns one Limiter per upstream.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{limiters: make(map[string]*Limiter)}
}

// Register installs a Limiter for the given upstream.
func (m *Manager) Register(upstream string, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[upstream] = New(upstream, cfg)
}

// Acquire blocks on the named upstream's limiter. Unregistered
// upstreams are allowed through immediately (no limiter configured).
func (m *Manager) Acquire(ctx context.Context, upstream string) error {
	m.mu.RLock()
	l, ok := m.limiters[upstream]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return l.Acquire(ctx)
}

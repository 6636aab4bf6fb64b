package domain

import "fmt"

// ErrCode is a stable error classification, mirrored in logs and in
// UnitError so operators can alert on a code without string-matching
// messages.
type ErrCode string

const (
	ErrCodeBadUpstream    ErrCode = "bad_upstream"
	ErrCodePlayerNotFound ErrCode = "player_not_found"
	ErrCodeCircuitOpen    ErrCode = "circuit_open"
	ErrCodeThrottled      ErrCode = "throttled"
	ErrCodeTransient      ErrCode = "transient_exhausted"
	ErrCodeIntegrity      ErrCode = "integrity_error"
	ErrCodeUnit           ErrCode = "unit_error"
)

// BadUpstream signals a payload that failed an adapter invariant.
// Non-retryable: the affected record is dropped and a warning emitted.
type BadUpstream struct {
	Reason  string
	Excerpt string
}

func (e *BadUpstream) Error() string {
	return fmt.Sprintf("bad upstream payload: %s (%s)", e.Reason, e.Excerpt)
}

// PlayerNotFound signals that a normalized player key is unresolvable
// upstream. The prop is dropped; the key is recorded as a Missing Player.
type PlayerNotFound struct {
	NormalizedKey string
}

func (e *PlayerNotFound) Error() string {
	return fmt.Sprintf("player not found: %s", e.NormalizedKey)
}

// CircuitOpenError is returned when a call is short-circuited by an
// open breaker. Treated as a soft-miss by callers.
type CircuitOpenError struct {
	Upstream string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for upstream %q", e.Upstream)
}

// ThrottledError is returned when rate-limiter acquisition exceeds
// max_wait. Treated as a soft-miss by callers.
type ThrottledError struct {
	Upstream string
	Waited   string
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled on upstream %q after waiting %s", e.Upstream, e.Waited)
}

// TransientExhaustedError is returned when the retry executor exhausts
// all attempts on a transient error.
type TransientExhaustedError struct {
	Upstream string
	Attempts int
	Last     error
}

func (e *TransientExhaustedError) Error() string {
	return fmt.Sprintf("transient exhausted on %q after %d attempts: %v", e.Upstream, e.Attempts, e.Last)
}

func (e *TransientExhaustedError) Unwrap() error { return e.Last }

// IntegrityError marks a post-compute invariant violation (I1/I2/I3).
// The owning Recommendation is downgraded to tier D.
type IntegrityError struct {
	Invariant string
	Detail    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation %s: %s", e.Invariant, e.Detail)
}

// UnitError covers any uncaught failure inside an orchestrator worker;
// the unit's output is discarded and this is recorded instead.
type UnitError struct {
	Game    Game
	Code    ErrCode
	Message string
}

func (e UnitError) Error() string {
	return fmt.Sprintf("unit error [%s] for game %s vs %s: %s", e.Code, e.AwayAtHome(), e.Game.TipTime, e.Message)
}

func (e UnitError) AwayAtHome() string {
	return e.Game.AwayTeam + " @ " + e.Game.HomeTeam
}

// FailureNote documents a game unit that failed entirely. Analyze does
// not construct it: a failed unit contributes no Recommendation and no
// Tier D entry, and is reported only as a UnitError in RunOutput.Errors.
type FailureNote struct {
	Game   Game
	Reason string
}

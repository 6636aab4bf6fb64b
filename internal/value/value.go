// Package value implements Value & Validation (C8): fair odds, edge,
// EV, the EV-identity recheck (invariant I1), and the pre-tier filters
// of §4.8. Grounded on cryptorun's internal/scoring/validation.go-style
// invariant recheck pattern (recompute, compare, attach a note on
// drift, hard-fail beyond a tolerance).
package value

import (
	"math"

	"github.com/hoopvalue/engine/internal/domain"
)

const (
	evIdentitySoftTolerance = 0.001
	evIdentityHardTolerance = 0.01

	minEVPerProbForNonS = 0.08
)

// Input bundles everything C8 needs: the combined probability from C6,
// the market odds, and the precomputed EV carried forward (if any)
// from an earlier stage, so the identity recheck has something to
// compare against.
type Input struct {
	P         float64
	Odds      float64
	PriorEV   float64 // EV as computed elsewhere; 0 if not yet computed
	HasPriorEV bool
	SampleSize int
	Watchlist  bool
	TierWouldBeS bool // whether ignoring ev_per_prob, tier gates already say S
}

// Outcome is C8's result: either a ValueResult with Drop=false, or
// Drop=true with Reason explaining which filter triggered.
type Outcome struct {
	Result domain.ValueResult
	Drop   bool
	Reason string
	// Integrity is set when I1's hard tolerance was violated; the
	// pipeline must downgrade the recommendation to tier D rather than
	// drop it outright.
	Integrity *domain.IntegrityError
}

// Compute derives fair odds, edge, and EV, rechecks invariant I1, and
// applies the §4.8 pre-tier filters.
func Compute(in Input) Outcome {
	if in.P <= 0 {
		return Outcome{Drop: true, Reason: "fair_odds undefined at p=0"}
	}

	fairOdds := 1 / in.P
	impliedP := 1 / in.Odds
	edge := in.P - impliedP
	ev := in.P*in.Odds - 1
	var notes []string
	var integrity *domain.IntegrityError

	if in.HasPriorEV {
		drift := math.Abs(ev - in.PriorEV)
		switch {
		case drift > evIdentityHardTolerance:
			integrity = &domain.IntegrityError{
				Invariant: "I1",
				Detail:    "ev recomputed from p and odds diverges from prior ev by more than 0.01",
			}
			notes = append(notes, "EVRecomputed")
		case drift > evIdentitySoftTolerance:
			notes = append(notes, "EVRecomputed")
		}
	}

	evPerProb := 0.0
	if in.P != 0 {
		evPerProb = ev / in.P
	}

	mispricing := in.Odds - fairOdds

	result := domain.ValueResult{
		FairOdds:   fairOdds,
		Odds:       in.Odds,
		Mispricing: mispricing,
		ImpliedP:   impliedP,
		Edge:       edge,
		EV:         ev,
		EVPerProb:  evPerProb,
		Kelly:      kellyStake(in.P, in.Odds),
		Notes:      notes,
	}

	if integrity != nil {
		return Outcome{Result: result, Integrity: integrity}
	}

	if edge <= 0 {
		return Outcome{Result: result, Drop: true, Reason: "edge <= 0"}
	}
	if in.P < 0.50 && !in.Watchlist {
		return Outcome{Result: result, Drop: true, Reason: "p < 0.50 and not watchlisted"}
	}
	if evPerProb < minEVPerProbForNonS && !in.TierWouldBeS {
		return Outcome{Result: result, Drop: true, Reason: "ev_per_prob below floor and tier would not be S"}
	}

	return Outcome{Result: result}
}

// kellyStake is informational only (§4.8/§Glossary): the full Kelly
// fraction f* = (p*(o-1) - (1-p)) / (o-1), capped at a conservative
// ceiling since it never participates in tier gating.
func kellyStake(p, odds float64) domain.KellyStake {
	b := odds - 1
	if b <= 0 {
		return domain.KellyStake{}
	}
	f := (p*b - (1 - p)) / b
	if f < 0 {
		f = 0
	}
	const ceiling = 0.25
	capped := f
	if capped > ceiling {
		capped = ceiling
	}
	return domain.KellyStake{Fraction: f, Capped: capped}
}

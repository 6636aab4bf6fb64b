// Package confidence implements the Confidence Engine (C7): a single
// parameterized pipeline of ordered adjustments applied to a base
// confidence score, per §4.7. Grounded on cryptorun's
// internal/scoring/model.go Calculator.Calculate, which accumulates a
// CompositeScore.Parts attribution map across ordered factor stages;
// generalized here into an ordered slice of adjustment funcs that each
// append to ConfidenceResult.Penalties.
package confidence

import (
	"math"

	"github.com/hoopvalue/engine/internal/domain"
)

// PriorWeightFunc resolves the Bayesian-shrinkage prior weight for a
// sample size n. DefaultPriorWeight implements spec.md's bucketed
// table; swapping in a continuous curve (e.g. log(n+1)/log(21)) needs
// only a different func, no interface change (Open Question #2).
type PriorWeightFunc func(n int) float64

// DefaultPriorWeight is spec.md §4.7 step 2's bucketed prior-weight
// table.
func DefaultPriorWeight(n int) float64 {
	switch {
	case n < 8:
		return 15
	case n < 12:
		return 10
	case n < 20:
		return 6
	default:
		return 3
	}
}

// Evidence bundles everything the adjustment chain reads. Fields map
// directly onto the upstream C5/C6/C8 outputs that feed each step.
type Evidence struct {
	SampleSize    int
	RawP          float64 // combined probability before shrinkage
	VolatilityCV  float64
	RoleTrend     domain.RoleTrend
	MinutesVariance float64 // fraction of recent mean, e.g. 0.22 = 22%
	ProbabilityAdjustment float64 // from MatchupFactors
	Stat          domain.Stat
	Line          float64
	Disagreement  float64
	Edge          float64
	ImpliedP      float64

	PriorWeight PriorWeightFunc // nil uses DefaultPriorWeight
}

const flagSuppressInEfficientZone = "SuppressInEfficientZone"

// Compute runs the 8-step adjustment chain in order and classifies
// risk, per §4.7.
func Compute(ev Evidence) domain.ConfidenceResult {
	priorWeightFn := ev.PriorWeight
	if priorWeightFn == nil {
		priorWeightFn = DefaultPriorWeight
	}

	base := clamp(ev.RawP*100, 0, 100)

	result := domain.ConfidenceResult{
		Base:      base,
		Penalties: map[string]float64{},
	}

	highCount := 0

	cap := sampleSizeCap(ev.SampleSize)
	adjusted := math.Min(base, cap)
	if adjusted < base {
		result.Penalties["sample_size_cap"] = adjusted - base
		if ev.SampleSize < 15 {
			highCount++
		}
	}

	// Shrinkage must run against the step-1 capped value, not RawP
	// directly, and its result re-clamped to the same cap — otherwise a
	// high-RawP/low-n case can shrink back above the sample-size cap
	// step 1 just enforced.
	adjustedP := bayesianShrink(adjusted/100, ev.SampleSize, priorWeightFn(ev.SampleSize))
	shrunk := clamp(adjustedP*100, 0, cap)
	if shrunk != adjusted {
		result.Penalties["bayesian_shrinkage"] = shrunk - adjusted
	}
	running := shrunk
	result.AfterShrinkage = running

	if p := volatilityPenalty(ev.VolatilityCV); p != 0 {
		result.Penalties["volatility"] = p
		running += p
	}

	if p := roleChangePenalty(ev.RoleTrend, ev.MinutesVariance); p != 0 {
		result.Penalties["role_change"] = p
		running += p
		if ev.RoleTrend == domain.RoleFalling {
			highCount++
		}
	}

	matchupAdj := clamp(ev.ProbabilityAdjustment*50, -10, 10)
	if matchupAdj != 0 {
		result.Penalties["matchup_adjustment"] = matchupAdj
		running += matchupAdj
	}

	if p := lineDifficultyPenalty(ev.Stat, ev.Line); p != 0 {
		result.Penalties["line_difficulty"] = p
		running += p
	}

	if ev.Disagreement > 0.10 {
		result.Penalties["disagreement"] = -5
		running += -5
	}

	if ev.Edge < 0.03 && ev.ImpliedP >= 0.55 && ev.ImpliedP <= 0.60 && running < 85 {
		result.Flags = append(result.Flags, flagSuppressInEfficientZone)
	}

	if ev.VolatilityCV > 0.40 {
		// "minutes volatile" in the EXTREME/HIGH count is the sharpest
		// volatility bucket, not every nonzero volatility penalty.
		highCount++
	}

	running = clamp(running, 0, 95)
	result.Final = running
	result.Risk = classifyRisk(running, highCount)
	result.MultiSafe = result.Risk == domain.RiskLow || result.Risk == domain.RiskMedium

	return result
}

func sampleSizeCap(n int) float64 {
	switch {
	case n < 15:
		return 75
	case n < 30:
		return 85
	case n < 60:
		return 90
	default:
		return 95
	}
}

// bayesianShrink implements §4.7 step 2's shrinkage toward the 0.50
// league-mean cover rate.
func bayesianShrink(pRaw float64, n int, priorWeight float64) float64 {
	denom := priorWeight + float64(n)
	if denom == 0 {
		return 0.5
	}
	return (priorWeight*0.5 + float64(n)*pRaw) / denom
}

func volatilityPenalty(cv float64) float64 {
	switch {
	case cv > 0.40:
		return -15
	case cv > 0.30:
		return -8
	case cv > 0.20:
		return -3
	default:
		return 0
	}
}

func roleChangePenalty(trend domain.RoleTrend, minutesVariance float64) float64 {
	var p float64
	if trend != domain.RoleStable && trend != "" {
		p -= 15
	}
	if minutesVariance > 0.20 {
		p -= 5
	}
	return p
}

// lineDifficultyPenalty applies only to the points family, per §4.7
// step 6.
func lineDifficultyPenalty(stat domain.Stat, line float64) float64 {
	if stat != domain.StatPoints {
		return 0
	}
	switch {
	case line >= 35:
		return -10
	case line >= 30:
		return -5
	default:
		return 0
	}
}

func classifyRisk(final float64, highCount int) domain.RiskClass {
	switch {
	case final < 50 || highCount >= 3:
		return domain.RiskExtreme
	case final < 60 || highCount == 2:
		return domain.RiskHigh
	case final < 70 || highCount == 1:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

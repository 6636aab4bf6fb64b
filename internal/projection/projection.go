// Package projection implements the Projection Engine (C6): up to
// five forecasting paths combined into one ProjectionResult via a
// weighted mean with a disagreement penalty. Grounded on cryptorun's
// internal/scoring/model.go Calculator.Calculate, which combines a
// momentum core with orthogonal residual layers under regime weights
// and tracks per-part attribution in a parts map — generalized here
// from "regime-weighted factor residuals" to "availability-weighted
// projection paths."
package projection

import (
	"math"

	"github.com/hoopvalue/engine/internal/domain"
)

const (
	pathDeterministicName = "deterministic"
	pathEmpiricalName     = "empirical"
	pathRegressionName    = "regression"
	pathMarketName        = "market_implied"
	pathBayesianName      = "bayesian"

	// MinSample is I4's sample discipline floor.
	MinSample = 5

	disagreementThreshold  = 0.10
	fightingMarketThreshold = 0.15
)

var defaultWeights = map[string]float64{
	pathDeterministicName: 0.45,
	pathEmpiricalName:     0.25,
	pathRegressionName:    0.20,
	pathMarketName:        0.10,
	pathBayesianName:      0.05,
}

// ExtraBook is an additional bookmaker's two-way market, used only to
// enrich the market-implied disagreement signal (§4.6 DOMAIN STACK
// note) — never a primary path.
type ExtraBook struct {
	OverOdds, UnderOdds float64
	Weight              float64
}

// Input bundles everything the five paths need.
type Input struct {
	Market domain.Market
	Odds   domain.Odds

	// ExtraBooks supplies additional bookmakers for the market-implied
	// path's de-vigged, multi-book consensus. May be empty.
	ExtraBooks []ExtraBook

	GameLog   []domain.GameLogEntry // ascending, already horizon-filtered
	PlayerCtx domain.PlayerContext
	Matchup   domain.MatchupFactors

	ExpectedMinutes float64
	PerMinuteRate   float64 // per-minute production over the last 10 games
	DaysRest        int
	IsHome          bool

	// RecencyDecay r in (0,1]; 1.0 (default) disables decay.
	RecencyDecay float64

	// ModelOnly marks that no sample-backed path is expected to be
	// available (e.g. a player debut); relaxes I4's sample floor.
	ModelOnly bool
}

type pathOutput struct {
	name          string
	mean          float64
	meanValid     bool
	prob          float64
	available     bool
	bayesEffectiveN float64
}

func (p pathOutput) effectiveN() float64 { return p.bayesEffectiveN }

// Compute runs all applicable paths and combines them per §4.6.
func Compute(in Input) domain.ProjectionResult {
	decay := in.RecencyDecay
	if decay <= 0 {
		decay = 1.0
	}

	recent := recentWindow(in.GameLog)
	cv := coefficientOfVariation(recent, in.Market.Stat, decay)

	det := deterministicPath(in)
	emp := empiricalPath(in, decay)
	reg := regressionPath(in)
	bay := bayesianPath(in, decay)
	mkt := marketImpliedPath(in)

	primary := []pathOutput{det, emp, reg, bay}
	usable := make([]pathOutput, 0, 4)
	for _, p := range primary {
		if p.available {
			usable = append(usable, p)
		}
	}

	var combinedValue, combinedProb float64
	var disagreement float64
	methods := make([]string, 0, 5)
	var notes []string
	fightingMarket := false

	if len(usable) == 0 {
		// Market-implied becomes the sole path, per the preserved
		// Open Question decision: never primary unless nothing else
		// is available.
		combinedProb = mkt.prob
		combinedValue = in.Market.Line
		methods = append(methods, pathMarketName)
		notes = append(notes, "no primary path available, market-implied used as fallback")
	} else {
		weights := renormalize(usable)
		for i, p := range usable {
			combinedValue += weights[i] * p.mean
			combinedProb += weights[i] * p.prob
			methods = append(methods, p.name)
		}

		disagreement = disagreementOf(usable)
		if disagreement > disagreementThreshold {
			notes = append(notes, "path disagreement exceeds 10%")
		}

		if mkt.available {
			if math.Abs(combinedProb-mkt.prob) > fightingMarketThreshold {
				fightingMarket = true
				notes = append(notes, "fighting the market: combined probability diverges from market-implied by >15%")
			}
		}
	}

	combinedProb = clampProbability(combinedProb)

	margin := signedMargin(in.Market, combinedValue)

	sampleSize := len(recent)
	evidence := domain.ProjectionEvidence{
		SampleSize:       sampleSize,
		RecentWindowSize: len(recent),
		BayesEffectiveN:  bay.effectiveN(),
		VolatilityCV:     cv,
		MethodsUsed:      methods,
		ModelOnly:        in.ModelOnly || len(usable) == 0,
		Disagreement:     disagreement,
		FightingMarket:   fightingMarket,
		Notes:            notes,
	}

	return domain.ProjectionResult{
		MarketKey:            in.Market.Key(),
		ProjectedValue:       combinedValue,
		ProjectedProbability: combinedProb,
		ProjectionMargin:     margin,
		Evidence:             evidence,
	}
}

// renormalize divides each usable path's default weight by the sum of
// usable default weights, so unavailable paths drop out cleanly.
func renormalize(usable []pathOutput) []float64 {
	sum := 0.0
	for _, p := range usable {
		sum += defaultWeights[p.name]
	}
	weights := make([]float64, len(usable))
	if sum == 0 {
		even := 1.0 / float64(len(usable))
		for i := range weights {
			weights[i] = even
		}
		return weights
	}
	for i, p := range usable {
		weights[i] = defaultWeights[p.name] / sum
	}
	return weights
}

// disagreementOf is the coefficient of variation of the usable paths'
// means: stdev/mean, per §4.6.
func disagreementOf(usable []pathOutput) float64 {
	means := make([]float64, 0, len(usable))
	for _, p := range usable {
		if p.meanValid {
			means = append(means, p.mean)
		}
	}
	if len(means) < 2 {
		return 0
	}
	mean := 0.0
	for _, m := range means {
		mean += m
	}
	mean /= float64(len(means))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, m := range means {
		d := m - mean
		variance += d * d
	}
	variance /= float64(len(means))
	return math.Sqrt(variance) / math.Abs(mean)
}

func signedMargin(m domain.Market, combinedValue float64) float64 {
	if m.Side == domain.SideUnder {
		return m.Line - combinedValue
	}
	return combinedValue - m.Line
}

func clampProbability(p float64) float64 {
	if math.IsNaN(p) {
		return 0.5
	}
	if p < 0.02 {
		return 0.02
	}
	if p > 0.98 {
		return 0.98
	}
	return p
}

// normalCoverProbability estimates P(side covers) assuming the stat is
// Normally distributed around mean with sigma = cv*mean.
func normalCoverProbability(mean, line, cv float64, side domain.Side) float64 {
	sigma := math.Abs(cv * mean)
	if sigma == 0 {
		if (side == domain.SideUnder && mean < line) || (side != domain.SideUnder && mean > line) {
			return 0.98
		}
		return 0.02
	}
	z := (line - mean) / sigma
	pUnder := 0.5 * (1 + math.Erf(z/math.Sqrt2))
	if side == domain.SideUnder {
		return pUnder
	}
	return 1 - pUnder
}

func recentWindow(log []domain.GameLogEntry) []domain.GameLogEntry {
	return log
}

func statSeries(log []domain.GameLogEntry, stat domain.Stat) []float64 {
	out := make([]float64, 0, len(log))
	for _, e := range log {
		if v, ok := e.StatValues[stat]; ok {
			out = append(out, v)
		}
	}
	return out
}

// decayWeights returns exponential recency weights for n entries,
// newest-last, with decay factor r applied per step back from the end.
func decayWeights(n int, r float64) []float64 {
	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		stepsBack := n - 1 - i
		weights[i] = math.Pow(r, float64(stepsBack))
	}
	return weights
}

func weightedMean(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum, wSum float64
	for i, v := range values {
		sum += v * weights[i]
		wSum += weights[i]
	}
	if wSum == 0 {
		return 0
	}
	return sum / wSum
}

func coefficientOfVariation(log []domain.GameLogEntry, stat domain.Stat, decay float64) float64 {
	values := statSeries(log, stat)
	if len(values) < 2 {
		return ProfileFor(stat).DefaultCV
	}
	weights := decayWeights(len(values), decay)
	mean := weightedMean(values, weights)
	if mean == 0 {
		return ProfileFor(stat).DefaultCV
	}
	var variance, wSum float64
	for i, v := range values {
		d := v - mean
		variance += weights[i] * d * d
		wSum += weights[i]
	}
	if wSum == 0 {
		return ProfileFor(stat).DefaultCV
	}
	sd := math.Sqrt(variance / wSum)
	return sd / math.Abs(mean)
}

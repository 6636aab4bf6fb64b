package projection

import (
	"github.com/hoopvalue/engine/internal/domain"
	"github.com/hoopvalue/engine/internal/oddsmath"
)

// deterministicPath: projected_value = expected_minutes * per_minute_rate
// * pace_multiplier * defense_multiplier, per §4.6 path 1.
func deterministicPath(in Input) pathOutput {
	if in.ExpectedMinutes <= 0 || in.PerMinuteRate <= 0 {
		return pathOutput{name: pathDeterministicName}
	}
	pace := orOne(in.Matchup.PaceMultiplier)
	defense := orOne(in.Matchup.DefenseMultiplier)
	mean := in.ExpectedMinutes * in.PerMinuteRate * pace * defense

	cv := ProfileFor(in.Market.Stat).DefaultCV
	if len(in.GameLog) >= 2 {
		cv = coefficientOfVariation(in.GameLog, in.Market.Stat, 1.0)
	}
	prob := normalCoverProbability(mean, in.Market.Line, cv, in.Market.Side)

	return pathOutput{name: pathDeterministicName, mean: mean, meanValid: true, prob: prob, available: true}
}

// empiricalPath: fraction of the player's last N games covering the
// line, per §4.6 path 2. No home/away or minutes-bucket filter is
// applied. Contributes its probability directly, and its mean as
// the average qualifying stat value.
func empiricalPath(in Input, decay float64) pathOutput {
	values := statSeries(in.GameLog, in.Market.Stat)
	if len(values) < MinSample && !in.ModelOnly {
		return pathOutput{name: pathEmpiricalName}
	}
	if len(values) == 0 {
		return pathOutput{name: pathEmpiricalName}
	}

	weights := decayWeights(len(values), decay)
	var coverWeight, totalWeight, valueWeight, valueSum float64
	for i, v := range values {
		w := weights[i]
		totalWeight += w
		covers := v > in.Market.Line
		if in.Market.Side == domain.SideUnder {
			covers = v < in.Market.Line
		}
		if covers {
			coverWeight += w
		}
		valueSum += v * w
		valueWeight += w
	}
	if totalWeight == 0 || valueWeight == 0 {
		return pathOutput{name: pathEmpiricalName}
	}

	prob := clampProbability(coverWeight / totalWeight)
	mean := valueSum / valueWeight

	return pathOutput{name: pathEmpiricalName, mean: mean, meanValid: true, prob: prob, available: true}
}

// regressionPath: linear fit of stat on {minutes, is_home, days_rest},
// predicted at today's context, per §4.6 path 3. Implemented as
// ordinary least squares via the normal equations over up to three
// features; falls back to unavailable when the log is too small to
// fit.
func regressionPath(in Input) pathOutput {
	rows := buildRegressionRows(in.GameLog, in.Market.Stat)
	if len(rows) < MinSample {
		return pathOutput{name: pathRegressionName}
	}

	coeffs, ok := fitOLS(rows)
	if !ok {
		return pathOutput{name: pathRegressionName}
	}

	todaysHome := 0.0
	if in.IsHome {
		todaysHome = 1.0
	}
	mean := coeffs[0] + coeffs[1]*in.ExpectedMinutes + coeffs[2]*todaysHome + coeffs[3]*float64(in.DaysRest)
	if mean < 0 {
		mean = 0
	}

	cv := coefficientOfVariation(in.GameLog, in.Market.Stat, 1.0)
	prob := normalCoverProbability(mean, in.Market.Line, cv, in.Market.Side)

	return pathOutput{name: pathRegressionName, mean: mean, meanValid: true, prob: prob, available: true}
}

type regressionRow struct {
	minutes, isHome, daysRest, y float64
}

func buildRegressionRows(log []domain.GameLogEntry, stat domain.Stat) []regressionRow {
	rows := make([]regressionRow, 0, len(log))
	for i, e := range log {
		v, ok := e.StatValues[stat]
		if !ok {
			continue
		}
		home := 0.0
		if e.IsHome {
			home = 1.0
		}
		daysRest := 2.0
		if i > 0 {
			daysRest = float64(e.Date.Sub(log[i-1].Date).Hours() / 24)
		}
		rows = append(rows, regressionRow{minutes: e.MinutesPlayed, isHome: home, daysRest: daysRest, y: v})
	}
	return rows
}

// fitOLS solves for [intercept, minutesCoef, homeCoef, restCoef] via
// the normal equations X^T X beta = X^T y, using Gaussian elimination
// on the resulting 4x4 system.
func fitOLS(rows []regressionRow) ([4]float64, bool) {
	var xtx [4][4]float64
	var xty [4]float64

	for _, r := range rows {
		x := [4]float64{1, r.minutes, r.isHome, r.daysRest}
		for i := 0; i < 4; i++ {
			xty[i] += x[i] * r.y
			for j := 0; j < 4; j++ {
				xtx[i][j] += x[i] * x[j]
			}
		}
	}

	return solve4(xtx, xty)
}

// solve4 performs Gaussian elimination with partial pivoting on a 4x4
// system; returns ok=false if the matrix is (near-)singular.
func solve4(a [4][4]float64, b [4]float64) ([4]float64, bool) {
	const eps = 1e-9
	var zero [4]float64

	for col := 0; col < 4; col++ {
		pivot := col
		best := absf(a[col][col])
		for r := col + 1; r < 4; r++ {
			if absf(a[r][col]) > best {
				best = absf(a[r][col])
				pivot = r
			}
		}
		if best < eps {
			return zero, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := 0; r < 4; r++ {
			if r == col {
				continue
			}
			factor := a[r][col] / a[col][col]
			for c := col; c < 4; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	var x [4]float64
	for i := 0; i < 4; i++ {
		x[i] = b[i] / a[i][i]
	}
	return x, true
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// bayesianPath: prior = season mean, likelihood = last-K games,
// posterior is a precision-weighted (Normal-Normal) update, per
// §4.6 path 5.
func bayesianPath(in Input, decay float64) pathOutput {
	values := statSeries(in.GameLog, in.Market.Stat)
	if len(values) == 0 {
		return pathOutput{name: pathBayesianName}
	}

	seasonMean := mean(values)
	k := values
	if len(values) > 10 {
		k = values[len(values)-10:]
	}
	likelihoodMean := mean(k)

	cv := coefficientOfVariation(in.GameLog, in.Market.Stat, decay)
	sigma := absf(cv * seasonMean)
	if sigma == 0 {
		sigma = 1
	}
	priorVariance := sigma * sigma * 4 // diffuse prior: 2x the per-game sigma
	likelihoodVariance := sigma * sigma / float64(len(k))

	priorPrecision := 1 / priorVariance
	likelihoodPrecision := 1 / likelihoodVariance
	posteriorPrecision := priorPrecision + likelihoodPrecision
	posteriorMean := (priorPrecision*seasonMean + likelihoodPrecision*likelihoodMean) / posteriorPrecision
	effectiveN := likelihoodPrecision / priorPrecision * float64(len(k))

	prob := normalCoverProbability(posteriorMean, in.Market.Line, cv, in.Market.Side)

	return pathOutput{
		name: pathBayesianName, mean: posteriorMean, meanValid: true, prob: prob,
		available: len(values) >= 1, bayesEffectiveN: effectiveN,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// marketImpliedPath: p_market = clamp(1/odds, 0.02, 0.98); enriched by
// a multi-book de-vigged consensus when additional books are supplied,
// per §4.6 path 4's DOMAIN STACK enrichment.
func marketImpliedPath(in Input) pathOutput {
	if in.Odds <= 1.0 {
		return pathOutput{name: pathMarketName}
	}
	p := oddsmath.ImpliedProbability(float64(in.Odds))

	if len(in.ExtraBooks) > 0 {
		overs := make([]float64, 0, len(in.ExtraBooks)+1)
		weights := make([]float64, 0, len(in.ExtraBooks)+1)

		primaryOver := p
		if in.Market.Side == domain.SideUnder {
			primaryOver = 1 - p
		}
		overs = append(overs, primaryOver)
		weights = append(weights, 1.0)

		for _, b := range in.ExtraBooks {
			if b.OverOdds <= 1 || b.UnderOdds <= 1 {
				continue
			}
			overImplied := oddsmath.ImpliedProbability(b.OverOdds)
			underImplied := oddsmath.ImpliedProbability(b.UnderOdds)
			deviggedOver, _ := oddsmath.RemoveVig(overImplied, underImplied)
			w := b.Weight
			if w <= 0 {
				w = 1.0
			}
			overs = append(overs, deviggedOver)
			weights = append(weights, w)
		}

		consensusOver, consensusUnder := oddsmath.ConsensusProbability(overs, weights)
		if in.Market.Side == domain.SideUnder {
			p = consensusUnder
		} else {
			p = consensusOver
		}
	}

	return pathOutput{name: pathMarketName, prob: clampProbability(p), available: true}
}

func orOne(v float64) float64 {
	if v <= 0 {
		return 1.0
	}
	return v
}

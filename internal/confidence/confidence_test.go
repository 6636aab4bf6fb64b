package confidence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hoopvalue/engine/internal/domain"
)

func baseEvidence() Evidence {
	return Evidence{
		SampleSize:   40,
		RawP:         0.70,
		VolatilityCV: 0.15,
		RoleTrend:    domain.RoleStable,
	}
}

func TestCompute_SampleSizeCapBoundsBase(t *testing.T) {
	ev := baseEvidence()
	ev.SampleSize = 10
	ev.RawP = 0.99 // base would be ~99 without the cap

	result := Compute(ev)

	require.LessOrEqual(t, result.Base, 100.0)
	require.Contains(t, result.Penalties, "sample_size_cap")
}

func TestCompute_BayesianShrinkagePullsTowardLeagueMean(t *testing.T) {
	ev := baseEvidence()
	ev.SampleSize = 4 // prior weight 15 dominates
	ev.RawP = 0.95

	result := Compute(ev)

	require.Less(t, result.AfterShrinkage, 95.0)
	require.Greater(t, result.AfterShrinkage, 50.0)
}

func TestCompute_BayesianShrinkageNeverExceedsSampleSizeCap(t *testing.T) {
	ev := baseEvidence()
	ev.SampleSize = 14 // cap=75 for n<15
	ev.RawP = 0.98     // base=98, would shrink to 83.6 if computed from raw

	result := Compute(ev)

	require.LessOrEqual(t, result.AfterShrinkage, 75.0, "shrinkage must not undo the step-1 sample-size cap")
	require.LessOrEqual(t, result.Penalties["bayesian_shrinkage"], 0.0, "shrinkage must never add back above the cap")
}

func TestCompute_VolatilityPenaltyTiers(t *testing.T) {
	high := baseEvidence()
	high.VolatilityCV = 0.45
	resultHigh := Compute(high)
	require.Equal(t, -15.0, resultHigh.Penalties["volatility"])

	mid := baseEvidence()
	mid.VolatilityCV = 0.35
	resultMid := Compute(mid)
	require.Equal(t, -8.0, resultMid.Penalties["volatility"])

	low := baseEvidence()
	low.VolatilityCV = 0.10
	resultLow := Compute(low)
	require.NotContains(t, resultLow.Penalties, "volatility")
}

func TestCompute_RoleChangeAndMinutesVariancePenalties(t *testing.T) {
	ev := baseEvidence()
	ev.RoleTrend = domain.RoleFalling
	ev.MinutesVariance = 0.25

	result := Compute(ev)

	require.Equal(t, -20.0, result.Penalties["role_change"])
}

func TestCompute_MatchupAdjustmentClampedToTenPoints(t *testing.T) {
	ev := baseEvidence()
	ev.ProbabilityAdjustment = 0.5 // would be 25 points uncapped

	result := Compute(ev)

	require.Equal(t, 10.0, result.Penalties["matchup_adjustment"])
}

func TestCompute_LineDifficultyOnlyAppliesToPoints(t *testing.T) {
	points := baseEvidence()
	points.Stat = domain.StatPoints
	points.Line = 36

	result := Compute(points)
	require.Equal(t, -10.0, result.Penalties["line_difficulty"])

	rebounds := baseEvidence()
	rebounds.Stat = domain.StatRebounds
	rebounds.Line = 36

	result = Compute(rebounds)
	require.NotContains(t, result.Penalties, "line_difficulty")
}

func TestCompute_DisagreementPenaltyAboveThreshold(t *testing.T) {
	ev := baseEvidence()
	ev.Disagreement = 0.15

	result := Compute(ev)

	require.Equal(t, -5.0, result.Penalties["disagreement"])
}

func TestCompute_SuppressInEfficientZoneFlag(t *testing.T) {
	ev := baseEvidence()
	ev.SampleSize = 10 // keeps final below 85
	ev.RawP = 0.56
	ev.Edge = 0.02
	ev.ImpliedP = 0.57

	result := Compute(ev)

	require.Contains(t, result.Flags, "SuppressInEfficientZone")
}

func TestCompute_RiskClassification(t *testing.T) {
	strong := baseEvidence()
	strong.SampleSize = 80
	strong.RawP = 0.80
	result := Compute(strong)
	require.Equal(t, domain.RiskLow, result.Risk)
	require.True(t, result.MultiSafe)

	weak := baseEvidence()
	weak.SampleSize = 6
	weak.RawP = 0.52
	weak.VolatilityCV = 0.50
	weak.RoleTrend = domain.RoleFalling
	weak.MinutesVariance = 0.30
	result = Compute(weak)
	require.Equal(t, domain.RiskExtreme, result.Risk)
	require.False(t, result.MultiSafe)
}

func TestCompute_FinalNeverExceedsNinetyFive(t *testing.T) {
	ev := baseEvidence()
	ev.SampleSize = 200
	ev.RawP = 0.99

	result := Compute(ev)

	require.LessOrEqual(t, result.Final, 95.0)
}

func TestDefaultPriorWeight_BucketsMatchSpec(t *testing.T) {
	require.Equal(t, 15.0, DefaultPriorWeight(3))
	require.Equal(t, 10.0, DefaultPriorWeight(10))
	require.Equal(t, 6.0, DefaultPriorWeight(15))
	require.Equal(t, 3.0, DefaultPriorWeight(25))
}

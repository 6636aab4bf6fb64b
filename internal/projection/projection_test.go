package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hoopvalue/engine/internal/domain"
)

func sampleLog(n int, base float64, statKind domain.Stat) []domain.GameLogEntry {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	log := make([]domain.GameLogEntry, 0, n)
	for i := 0; i < n; i++ {
		v := base + float64(i%3) - 1 // base-1, base, base+1 repeating
		log = append(log, domain.GameLogEntry{
			Date:          start.AddDate(0, 0, i*2),
			Opponent:      "OPP",
			IsHome:        i%2 == 0,
			MinutesPlayed: 32,
			StatValues:    map[domain.Stat]float64{statKind: v},
			Win:           i%2 == 0,
		})
	}
	return log
}

func baseInput() Input {
	return Input{
		Market: domain.Market{
			Kind:     domain.MarketPlayerProp,
			Side:     domain.SideOver,
			Line:     24.5,
			PlayerID: "player-1",
			Stat:     domain.StatPoints,
		},
		Odds:            1.91,
		GameLog:         sampleLog(12, 25, domain.StatPoints),
		Matchup:         domain.MatchupFactors{PaceMultiplier: 1.02, DefenseMultiplier: 1.01},
		ExpectedMinutes: 33,
		PerMinuteRate:   0.78,
		DaysRest:        2,
		IsHome:          true,
		RecencyDecay:    0.9,
	}
}

func TestCompute_AllPathsAvailableProducesReasonableProjection(t *testing.T) {
	result := Compute(baseInput())

	require.Greater(t, result.ProjectedValue, 0.0)
	require.GreaterOrEqual(t, result.ProjectedProbability, 0.02)
	require.LessOrEqual(t, result.ProjectedProbability, 0.98)
	require.True(t, result.Evidence.HasMethod(pathDeterministicName))
	require.True(t, result.Evidence.HasMethod(pathEmpiricalName))
	require.False(t, result.Evidence.HasMethod(pathMarketName), "market-implied never blends as primary when other paths are available")
}

func TestCompute_NoPrimaryPathFallsBackToMarketImplied(t *testing.T) {
	in := baseInput()
	in.GameLog = nil
	in.ExpectedMinutes = 0
	in.PerMinuteRate = 0
	in.ModelOnly = true

	result := Compute(in)

	require.True(t, result.Evidence.HasMethod(pathMarketName))
	require.True(t, result.Evidence.ModelOnly)
	require.Contains(t, result.Evidence.Notes, "no primary path available, market-implied used as fallback")
}

func TestCompute_FightingMarketFlagsLargeDivergence(t *testing.T) {
	in := baseInput()
	// Market heavily favors the under (odds imply over is unlikely) while
	// the game log strongly supports the over.
	in.Odds = 4.0
	in.Market.Line = 10.0
	in.GameLog = sampleLog(12, 30, domain.StatPoints)
	in.ExpectedMinutes = 36
	in.PerMinuteRate = 0.85

	result := Compute(in)

	require.True(t, result.Evidence.FightingMarket)
}

func TestCompute_DisagreementNoteWhenPathsDiverge(t *testing.T) {
	in := baseInput()
	in.PerMinuteRate = 2.0 // deterministic mean wildly out of step with empirical/regression
	in.ExpectedMinutes = 38

	result := Compute(in)

	require.Greater(t, result.Evidence.Disagreement, 0.0)
}

func TestDeterministicPath_UnavailableWithoutMinutesOrRate(t *testing.T) {
	in := baseInput()
	in.ExpectedMinutes = 0

	out := deterministicPath(in)

	require.False(t, out.available)
}

func TestEmpiricalPath_BelowSampleFloorUnavailableUnlessModelOnly(t *testing.T) {
	in := baseInput()
	in.GameLog = sampleLog(2, 25, domain.StatPoints)

	out := empiricalPath(in, 1.0)
	require.False(t, out.available)

	in.ModelOnly = true
	out = empiricalPath(in, 1.0)
	require.True(t, out.available)
}

func TestRegressionPath_UnavailableWithShortLog(t *testing.T) {
	in := baseInput()
	in.GameLog = sampleLog(3, 25, domain.StatPoints)

	out := regressionPath(in)

	require.False(t, out.available)
}

func TestBayesianPath_EffectiveNPositiveWithSample(t *testing.T) {
	in := baseInput()

	out := bayesianPath(in, 0.9)

	require.True(t, out.available)
	require.Greater(t, out.bayesEffectiveN, 0.0)
}

func TestMarketImpliedPath_ConsensusNarrowsAcrossBooks(t *testing.T) {
	in := baseInput()
	in.ExtraBooks = []ExtraBook{
		{OverOdds: 1.88, UnderOdds: 1.95, Weight: 1},
		{OverOdds: 1.93, UnderOdds: 1.90, Weight: 1},
	}

	out := marketImpliedPath(in)

	require.True(t, out.available)
	require.GreaterOrEqual(t, out.prob, 0.02)
	require.LessOrEqual(t, out.prob, 0.98)
}

func TestNormalCoverProbability_ZeroSigmaIsDeterministic(t *testing.T) {
	require.Equal(t, 0.98, normalCoverProbability(30, 25, 0, domain.SideOver))
	require.Equal(t, 0.02, normalCoverProbability(20, 25, 0, domain.SideOver))
}

func TestRenormalize_EvenSplitWhenWeightsSumToZero(t *testing.T) {
	usable := []pathOutput{{name: "unknown-a"}, {name: "unknown-b"}}
	weights := renormalize(usable)
	require.InDelta(t, 0.5, weights[0], 1e-9)
	require.InDelta(t, 0.5, weights[1], 1e-9)
}

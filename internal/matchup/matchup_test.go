package matchup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hoopvalue/engine/internal/domain"
)

func TestCompute_FavorableMatchup(t *testing.T) {
	team := domain.TeamForm{TeamID: "LAL", PaceEstimate: 101, StrengthIndex: 5}
	opponent := domain.TeamForm{
		TeamID:        "BOS",
		PaceEstimate:  103,
		StrengthIndex: 2,
		AllowedByStat: map[domain.Stat]float64{domain.StatPoints: 118},
	}

	out := Compute(Inputs{
		Team: team, Opponent: opponent, Stat: domain.StatPoints,
		LeaguePace: 100, LeagueAllowed: 112,
	})

	require.InDelta(t, 1.02, out.PaceMultiplier, 0.01)
	require.InDelta(t, 1.0536, out.DefenseMultiplier, 0.01)
	require.Equal(t, 1.00, out.BlowoutRisk)
	require.True(t, out.Favorable)
	require.Empty(t, out.Notes)
}

func TestCompute_ClampsExtremeMultipliers(t *testing.T) {
	team := domain.TeamForm{TeamID: "A", PaceEstimate: 130, StrengthIndex: 0}
	opponent := domain.TeamForm{
		TeamID: "B", PaceEstimate: 130, StrengthIndex: 0,
		AllowedByStat: map[domain.Stat]float64{domain.StatPoints: 200},
	}
	out := Compute(Inputs{Team: team, Opponent: opponent, Stat: domain.StatPoints, LeaguePace: 100, LeagueAllowed: 100})

	require.Equal(t, multiplierCeil, out.PaceMultiplier)
	require.Equal(t, multiplierCeil, out.DefenseMultiplier)
}

func TestCompute_BlowoutRiskTiers(t *testing.T) {
	base := domain.TeamForm{TeamID: "A", PaceEstimate: 100}
	cases := []struct {
		diff float64
		want float64
	}{
		{diff: 12, want: 0.92},
		{diff: 7, want: 0.96},
		{diff: 3, want: 1.00},
	}
	for _, c := range cases {
		team := base
		team.StrengthIndex = c.diff
		opponent := domain.TeamForm{TeamID: "B", PaceEstimate: 100, StrengthIndex: 0}
		out := Compute(Inputs{Team: team, Opponent: opponent, Stat: domain.StatAssists, LeaguePace: 100})
		require.Equal(t, c.want, out.BlowoutRisk)
	}
}

func TestCompute_MissingDataFallsBackToLeagueMean(t *testing.T) {
	team := domain.TeamForm{TeamID: "A"}
	opponent := domain.TeamForm{TeamID: "B"}
	out := Compute(Inputs{Team: team, Opponent: opponent, Stat: domain.StatPoints})

	require.Equal(t, 1.00, out.PaceMultiplier)
	require.Equal(t, 1.00, out.DefenseMultiplier)
	require.Len(t, out.Notes, 2)
}

func TestRankForStat_TiesBrokenByTeamID(t *testing.T) {
	teams := []domain.TeamForm{
		{TeamID: "ZZZ", AllowedByStat: map[domain.Stat]float64{domain.StatPoints: 110}},
		{TeamID: "AAA", AllowedByStat: map[domain.Stat]float64{domain.StatPoints: 110}},
	}
	rank := rankForStat(teams, "AAA", domain.StatPoints, 110)
	require.Equal(t, 1, rank)
}

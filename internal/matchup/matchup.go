// Package matchup implements the Matchup Engine (C5): pure,
// clamped-multiplier functions over two teams' form data. Grounded on
// cryptorun's internal/scoring/weights_regime.go clamped table-lookup
// style, generalized from a regime axis to a stat axis.
package matchup

import (
	"math"
	"sort"

	"github.com/hoopvalue/engine/internal/domain"
)

const (
	multiplierFloor = 0.85
	multiplierCeil  = 1.15
	leagueMean      = 1.00
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Inputs bundles the data the Matchup Engine needs for one
// (team, opponent, stat) triple.
type Inputs struct {
	Team          domain.TeamForm
	Opponent      domain.TeamForm
	Stat          domain.Stat
	LeaguePace    float64
	LeagueAllowed float64
	// AllOpponents supplies every team's AllowedByStat for the rank
	// computation; pass nil to skip ranking (OpponentRankForStat -> 0).
	AllOpponents []domain.TeamForm
}

// Compute derives MatchupFactors per §4.5. Missing multipliers fall
// back to the league mean (1.00) and are noted in the output.
func Compute(in Inputs) domain.MatchupFactors {
	var notes []string

	pace := leagueMean
	if in.LeaguePace > 0 && in.Team.PaceEstimate > 0 && in.Opponent.PaceEstimate > 0 {
		pace = clamp(((in.Team.PaceEstimate+in.Opponent.PaceEstimate)/2)/in.LeaguePace, multiplierFloor, multiplierCeil)
	} else {
		notes = append(notes, "pace_multiplier: missing data, used league mean")
	}

	defense := leagueMean
	allowed, haveAllowed := in.Opponent.AllowedByStat[in.Stat]
	if haveAllowed && in.LeagueAllowed > 0 {
		defense = clamp(allowed/in.LeagueAllowed, multiplierFloor, multiplierCeil)
	} else {
		notes = append(notes, "defense_multiplier: missing data, used league mean")
	}

	strengthDiff := math.Abs(in.Team.StrengthIndex - in.Opponent.StrengthIndex)
	var blowout float64
	switch {
	case strengthDiff > 10:
		blowout = 0.92
	case strengthDiff > 5:
		blowout = 0.96
	default:
		blowout = 1.00
	}

	total := pace * defense * blowout
	probAdj := clamp((total-1)*0.5, -0.5, 0.5)

	rank := 0
	if in.AllOpponents != nil {
		rank = rankForStat(in.AllOpponents, in.Opponent.TeamID, in.Stat, in.LeagueAllowed)
	}

	return domain.MatchupFactors{
		PaceMultiplier:        pace,
		DefenseMultiplier:     defense,
		BlowoutRisk:           blowout,
		TotalAdjustment:       total,
		Favorable:             total > 1.00,
		OpponentRankForStat:   rank,
		ProbabilityAdjustment: probAdj,
		Notes:                 notes,
	}
}

// rankForStat derives a 1..N rank from defense_multiplier, ties broken
// by team_id, per §4.5.
func rankForStat(teams []domain.TeamForm, opponentID string, stat domain.Stat, leagueAllowed float64) int {
	type ranked struct {
		teamID     string
		multiplier float64
	}
	rs := make([]ranked, 0, len(teams))
	for _, tf := range teams {
		m := leagueMean
		if allowed, ok := tf.AllowedByStat[stat]; ok && leagueAllowed > 0 {
			m = clamp(allowed/leagueAllowed, multiplierFloor, multiplierCeil)
		}
		rs = append(rs, ranked{teamID: tf.TeamID, multiplier: m})
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].multiplier != rs[j].multiplier {
			return rs[i].multiplier < rs[j].multiplier
		}
		return rs[i].teamID < rs[j].teamID
	})
	for i, r := range rs {
		if r.teamID == opponentID {
			return i + 1
		}
	}
	return 0
}

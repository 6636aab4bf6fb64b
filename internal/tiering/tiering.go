// Package tiering implements Tiering & Correlation (C9): the ordered
// S/A/B/C/D gate table, per-game correlation caps, and shared-stat-
// family confidence penalties of §4.9. Grounded on cryptorun's
// internal/gates/thresholds.go regime-bucketed threshold tables and
// internal/gates/policy_matrix.go's ranked, ordered-evaluation style
// (VenueRank.Priority: lower wins) — generalized here into a first-
// match-wins slice of gate predicates evaluated in tier order.
package tiering

import (
	"sort"

	"github.com/hoopvalue/engine/internal/domain"
)

const (
	noteExcessCorrelation = "ExcessCorrelation"
	maxPlayerPropsPerGame = 2
)

// candidate bundles a Recommendation before tiering decisions with the
// fields the gate table and correlation rules read.
type Candidate struct {
	Game        domain.Game
	Market      domain.Market
	EV          float64
	Edge        float64
	P           float64
	Confidence  float64
	Mispricing  float64
	SampleSize  int
	ProjectedProbability float64
	ProjectionMargin      float64
}

// gate is one row of the ordered S/A/B/C/D table: first match wins.
type gate struct {
	tier domain.Tier
	match func(Candidate) bool
}

var gateTable = []gate{
	{domain.TierS, func(c Candidate) bool {
		return c.EV >= 0.20 && c.Edge >= 0.12 && c.P >= 0.68
	}},
	{domain.TierA, func(c Candidate) bool {
		return c.EV >= 0.10 && c.Edge >= 0.08 && c.P >= 0.75
	}},
	{domain.TierB, func(c Candidate) bool {
		return c.EV >= 0.05 && c.Edge >= 0.04
	}},
	{domain.TierC, func(c Candidate) bool {
		return c.Confidence >= 60 && c.Edge >= 0.05 && c.Mispricing >= 0.10 && c.SampleSize >= 5
	}},
}

// Classify walks the gate table in order and returns the first
// matching tier, defaulting to D ("avoid") per §4.9.
func Classify(c Candidate) domain.Tier {
	for _, g := range gateTable {
		if g.match(c) {
			return g.tier
		}
	}
	return domain.TierD
}

// Unit pairs a Recommendation with the Candidate facts tiering needs,
// so ApplyCorrelationRules can mutate the Recommendation in place
// while reasoning over the plain Candidate.
type Unit struct {
	Rec       *domain.Recommendation
	Candidate Candidate
}

// ApplyCorrelationRules applies §4.9's global, cross-recommendation
// rules: at most maxPlayerPropsPerGame PlayerProp recommendations per
// game (overflow demoted to C), and a scaled confidence penalty for
// any two selections sharing (Game, stat family). Operates across the
// whole run's emitted recommendations, not per-unit.
func ApplyCorrelationRules(units []Unit) {
	byGame := map[[3]string][]int{}
	for i, u := range units {
		if u.Candidate.Market.Kind != domain.MarketPlayerProp {
			continue
		}
		key := u.Candidate.Game.Key()
		byGame[key] = append(byGame[key], i)
	}

	for _, indices := range byGame {
		demoteExcessPerGame(units, indices)
	}

	bySharedStat := map[string][]int{}
	for i, u := range units {
		if u.Candidate.Market.Kind != domain.MarketPlayerProp {
			continue
		}
		key := sharedStatKey(u.Candidate.Game, u.Candidate.Market.Stat)
		bySharedStat[key] = append(bySharedStat[key], i)
	}
	for _, indices := range bySharedStat {
		penalizeSharedStatFamily(units, indices)
	}
}

func sharedStatKey(g domain.Game, stat domain.Stat) string {
	k := g.Key()
	return k[0] + "|" + k[1] + "|" + k[2] + "|" + string(stat)
}

// demoteExcessPerGame sorts this game's PlayerProp units by
// projected_probability desc and demotes any beyond
// maxPlayerPropsPerGame to tier C.
func demoteExcessPerGame(units []Unit, indices []int) {
	if len(indices) <= maxPlayerPropsPerGame {
		return
	}
	sorted := append([]int(nil), indices...)
	sort.Slice(sorted, func(i, j int) bool {
		return units[sorted[i]].Candidate.ProjectedProbability > units[sorted[j]].Candidate.ProjectedProbability
	})
	for _, idx := range sorted[maxPlayerPropsPerGame:] {
		rec := units[idx].Rec
		rec.Tier = domain.TierC
		rec.Notes = append(rec.Notes, noteExcessCorrelation)
	}
}

// penalizeSharedStatFamily applies a scaled confidence penalty to all
// but the top-ranked (by projected_probability) selection sharing a
// (Game, stat family), scaled by the lower-ranked selection's own
// projection margin per §4.9.
func penalizeSharedStatFamily(units []Unit, indices []int) {
	if len(indices) < 2 {
		return
	}
	sorted := append([]int(nil), indices...)
	sort.Slice(sorted, func(i, j int) bool {
		return units[sorted[i]].Candidate.ProjectedProbability > units[sorted[j]].Candidate.ProjectedProbability
	})
	for _, idx := range sorted[1:] {
		margin := units[idx].Candidate.ProjectionMargin
		penalty := sharedStatPenalty(margin)
		rec := units[idx].Rec
		rec.Confidence.Penalties["shared_stat_family"] = penalty
		rec.Confidence.Final += penalty
		if rec.Confidence.Final < 0 {
			rec.Confidence.Final = 0
		}
	}
}

func sharedStatPenalty(margin float64) float64 {
	switch {
	case margin < 2:
		return -10
	case margin < 4:
		return -6
	default:
		return -4
	}
}

// FinalScore computes the output-ordering-only score of §4.9; it never
// participates in tier gating.
func FinalScore(ev, confidence, edge float64) float64 {
	return ev*100 + confidence*0.2 + edge*50
}

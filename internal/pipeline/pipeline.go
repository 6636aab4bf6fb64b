package pipeline

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hoopvalue/engine/internal/adapters"
	"github.com/hoopvalue/engine/internal/cache"
	"github.com/hoopvalue/engine/internal/domain"
	"github.com/hoopvalue/engine/internal/orchestrator"
	"github.com/hoopvalue/engine/internal/projection"
	"github.com/hoopvalue/engine/internal/telemetry"
	"github.com/hoopvalue/engine/internal/tiering"
)

var tierRank = map[domain.Tier]int{
	domain.TierS: 0,
	domain.TierA: 1,
	domain.TierB: 2,
	domain.TierC: 3,
	domain.TierD: 4,
}

// Analyze is C10: it acquires the game list, runs one bounded-
// concurrency unit per game, applies §4.9's global correlation rules
// across every emitted recommendation, orders the result
// deterministically, and summarizes run health, per §4.10.
func (d *Deps) Analyze(ctx context.Context, in domain.RunInput) (domain.RunOutput, error) {
	runID := uuid.NewString()
	logger := telemetry.ForRun(telemetry.Component(log.Logger, "pipeline"), runID)
	logger.Info().Int("requested_games", len(in.Games)).Int("workers", in.Workers).Msg("analyze run starting")

	if in.Strict && len(in.Games) == 0 {
		return domain.RunOutput{}, errors.New("invalid RunInput: strict mode requires a non-empty game list")
	}

	raw, err := d.fetchGameList(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("game list fetch failed")
		return domain.RunOutput{}, err
	}
	games, err := adapters.ParseGameList(raw)
	if err != nil {
		logger.Error().Err(err).Msg("game list parse failed")
		return domain.RunOutput{}, err
	}
	games = filterRequested(games, in.Games)

	if in.Horizon != (domain.GameLogHorizon{}) {
		d.Horizon = in.Horizon
	}
	d.drainMissing() // reset any leftover accumulator from a prior call
	d.loadSlateOpponents(ctx, games)

	cfg := orchestrator.Config{Workers: in.Workers}
	orchResult := orchestrator.Run(ctx, cfg, games, d.processGame)

	// processGame only returns the domain.Recommendation values; rerun
	// the per-unit tiering facts so ApplyCorrelationRules has Candidate
	// context. Recomputing Candidate from the Recommendation itself
	// keeps the orchestrator.UnitFunc signature to what §5 specifies
	// (no tiering.Unit leaking through it).
	units := make([]tiering.Unit, len(orchResult.Recommendations))
	for i := range orchResult.Recommendations {
		rec := &orchResult.Recommendations[i]
		units[i] = tiering.Unit{
			Rec: rec,
			Candidate: tiering.Candidate{
				Game:                 rec.Game,
				Market:               rec.Market,
				EV:                   rec.Value.EV,
				Edge:                 rec.Value.Edge,
				P:                    rec.Projection.ProjectedProbability,
				Confidence:           rec.Confidence.Final,
				Mispricing:           rec.Value.Mispricing,
				SampleSize:           rec.Projection.Evidence.SampleSize,
				ProjectedProbability: rec.Projection.ProjectedProbability,
				ProjectionMargin:     rec.Projection.ProjectionMargin,
			},
		}
	}
	tiering.ApplyCorrelationRules(units)

	recs := make([]domain.Recommendation, len(units))
	for i, u := range units {
		recs[i] = *u.Rec
	}
	sortRecommendations(recs)

	missing := dedupeMissing(d.drainMissing())

	out := domain.RunOutput{
		RunID:           runID,
		Recommendations: recs,
		Health:          summarize(recs, orchResult.Errors),
		Errors:          orchResult.Errors,
		MissingPlayers:  missing,
	}
	logger.Info().
		Int("recommendations", len(out.Recommendations)).
		Int("unit_errors", len(out.Errors)).
		Int("missing_players", len(out.MissingPlayers)).
		Msg("analyze run complete")

	if in.ArchiveRun {
		if d.Archive != nil {
			if err := d.Archive.Save(ctx, runID, in.RequestedAt, out); err != nil {
				logger.Error().Err(err).Msg("run archive save failed")
			}
		}
		if d.RedisCache != nil {
			key := cache.Key{Upstream: "run_archive", EntityID: runID, QueryShape: "output"}
			if err := d.RedisCache.Set(ctx, key, out, 0); err != nil {
				logger.Error().Err(err).Msg("run archive redis mirror failed")
			}
		}
	}

	return out, nil
}

// filterRequested narrows the upstream's full game list down to the
// GameRefs the caller asked for; an empty RunInput.Games means "all."
func filterRequested(games []domain.Game, refs []domain.GameRef) []domain.Game {
	if len(refs) == 0 {
		return games
	}
	wanted := make(map[string]bool, len(refs))
	for _, r := range refs {
		wanted[r.GameID] = true
	}
	out := make([]domain.Game, 0, len(refs))
	for _, g := range games {
		if wanted[g.GameID] {
			out = append(out, g)
		}
	}
	return out
}

func dedupeMissing(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// sortRecommendations orders output deterministically by
// (tier rank, final_score desc, projected_probability desc,
// tip_time asc), per §4.4/§4.10.
func sortRecommendations(recs []domain.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if tierRank[a.Tier] != tierRank[b.Tier] {
			return tierRank[a.Tier] < tierRank[b.Tier]
		}
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if a.Projection.ProjectedProbability != b.Projection.ProjectedProbability {
			return a.Projection.ProjectedProbability > b.Projection.ProjectedProbability
		}
		return a.Game.TipTime.Before(b.Game.TipTime)
	})
}

// summarize computes the HealthSnapshot over a completed run's
// recommendations, per §4.10/§8's P7 (EV-identity violations surfaced)
// and P8 (sample-floor violations surfaced).
func summarize(recs []domain.Recommendation, errs []domain.UnitError) domain.HealthSnapshot {
	h := domain.HealthSnapshot{TierCounts: map[domain.Tier]int{}}
	if len(recs) == 0 {
		return h
	}

	var sumP, sumEV, sumConf float64
	for _, r := range recs {
		sumP += r.Projection.ProjectedProbability
		sumEV += r.Value.EV
		sumConf += r.Confidence.Final
		h.TierCounts[r.Tier]++

		if len(r.Warnings) > 0 {
			h.EVIdentityViolations++
		}
		if r.Projection.Evidence.SampleSize < projection.MinSample && !r.Projection.Evidence.ModelOnly {
			h.SampleFloorViolations++
		}
	}

	h.Count = len(recs)
	h.MeanP = sumP / float64(len(recs))
	h.MeanEV = sumEV / float64(len(recs))
	h.MeanConfidence = sumConf / float64(len(recs))
	return h
}

// Validate checks a single Recommendation against invariants I1-I5
// (§3/§8 P1-P8), returning every violation found rather than
// short-circuiting on the first. I6 (the per-game correlation cap) has
// no per-Recommendation shape to check here — it is a property of a
// game's whole recommendation set, enforced globally by
// tiering.ApplyCorrelationRules before recommendations ever reach this
// function.
func Validate(r domain.Recommendation) domain.ValidationResult {
	var violations []string

	// I1: ev = p*odds - 1, within the hard tolerance.
	expectedEV := r.Projection.ProjectedProbability*float64(r.Odds) - 1
	if math.Abs(expectedEV-r.Value.EV) > 0.01 {
		violations = append(violations, "I1: ev does not match p*odds-1 within tolerance")
	}

	// I2: odds strictly > 1.0.
	if r.Odds <= 1.0 {
		violations = append(violations, "I2: odds must be strictly greater than 1.0")
	}

	// I3: fair_odds = 1/p.
	if r.Projection.ProjectedProbability > 0 {
		expectedFair := 1 / r.Projection.ProjectedProbability
		if math.Abs(expectedFair-r.Value.FairOdds) > 0.01 {
			violations = append(violations, "I3: fair_odds does not match 1/p within tolerance")
		}
	}

	// I4: sample discipline — ModelOnly recommendations are exempt.
	if r.Projection.Evidence.SampleSize < projection.MinSample && !r.Projection.Evidence.ModelOnly {
		violations = append(violations, "I4: sample size below floor without ModelOnly relaxation")
	}

	// I5: confidence bounded to [0, 95].
	if r.Confidence.Final < 0 || r.Confidence.Final > 95 {
		violations = append(violations, "I5: confidence out of [0,95] bounds")
	}

	return domain.ValidationResult{OK: len(violations) == 0, Violations: violations}
}

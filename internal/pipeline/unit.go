package pipeline

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/hoopvalue/engine/internal/adapters"
	"github.com/hoopvalue/engine/internal/confidence"
	"github.com/hoopvalue/engine/internal/domain"
	"github.com/hoopvalue/engine/internal/matchup"
	"github.com/hoopvalue/engine/internal/projection"
	"github.com/hoopvalue/engine/internal/tiering"
	"github.com/hoopvalue/engine/internal/value"
)

// unitResult is one game unit's full processing output, kept
// alongside the tiering.Candidate facts so ApplyCorrelationRules can
// run once, globally, after every unit has finished.
type unitResult struct {
	units          []tiering.Unit
	missingPlayers []string
	notes          []string
}

// processGame implements §4.4's five numbered steps for one game: it
// is the orchestrator.UnitFunc wired in pipeline.go.
func (d *Deps) processGame(ctx context.Context, game domain.Game) ([]domain.Recommendation, *domain.UnitError) {
	res, err := d.runGameUnit(ctx, game)
	if err != nil {
		return nil, &domain.UnitError{Game: game, Code: classifyUnitError(err), Message: err.Error()}
	}

	recs := make([]domain.Recommendation, 0, len(res.units))
	for _, u := range res.units {
		recs = append(recs, *u.Rec)
	}
	return recs, nil
}

// runGameUnit acquires the game's markets (step 1), resolves each
// player-prop candidate's evidence (step 2), computes matchup factors
// once per (team, opponent, stat) (step 3), then invokes Projection,
// Confidence, and Value for each candidate (step 4), emitting local
// recommendations (step 5).
func (d *Deps) runGameUnit(ctx context.Context, game domain.Game) (unitResult, error) {
	raw, err := d.fetchGamePayload(ctx, game.GameID)
	if err != nil {
		return unitResult{}, err
	}

	parsed, err := adapters.ParseGamePayload(raw)
	if err != nil {
		return unitResult{}, err
	}

	result := unitResult{notes: append([]string(nil), parsed.Notes...)}
	if len(parsed.Props) > 0 {
		result.notes = append(result.notes, "insights carried "+strconv.Itoa(len(parsed.Props))+" textual player-prop mentions")
	}
	matchupCache := make(map[string]domain.MatchupFactors)

	for _, quote := range parsed.Quotes {
		if quote.Market.Kind != domain.MarketPlayerProp {
			continue
		}

		playerKey := quote.Market.PlayerID
		playerCtx, log, ok, perr := d.resolvePlayerEvidence(ctx, playerKey)
		if perr != nil {
			return unitResult{}, perr
		}
		if !ok {
			result.missingPlayers = append(result.missingPlayers, playerKey)
			d.recordMissing(playerKey)
			continue
		}

		opponentTeam := game.HomeTeam
		isHome := false
		if playerCtx.TeamID == game.HomeTeam {
			opponentTeam = game.AwayTeam
			isHome = true
		}

		mf, merr := d.matchupFor(ctx, matchupCache, playerCtx.TeamID, opponentTeam, quote.Market.Stat)
		if merr != nil {
			return unitResult{}, merr
		}

		expectedMinutes, perMinuteRate := evidenceRates(log, quote.Market.Stat)
		daysRest := daysRestFor(log, game)

		proj := projection.Compute(projection.Input{
			Market:          quote.Market,
			Odds:            quote.Odds,
			GameLog:         log,
			PlayerCtx:       playerCtx,
			Matchup:         mf,
			ExpectedMinutes: expectedMinutes,
			PerMinuteRate:   perMinuteRate,
			DaysRest:        daysRest,
			IsHome:          isHome,
		})

		impliedP := 0.0
		if quote.Odds > 0 {
			impliedP = 1 / float64(quote.Odds)
		}
		edge := proj.ProjectedProbability - impliedP

		conf := confidence.Compute(confidence.Evidence{
			SampleSize:            proj.Evidence.SampleSize,
			RawP:                  proj.ProjectedProbability,
			VolatilityCV:          proj.Evidence.VolatilityCV,
			RoleTrend:             playerCtx.RoleTrend,
			MinutesVariance:       minutesVariance(log),
			ProbabilityAdjustment: mf.ProbabilityAdjustment,
			Stat:                  quote.Market.Stat,
			Line:                  quote.Market.Line,
			Disagreement:          proj.Evidence.Disagreement,
			Edge:                  edge,
			ImpliedP:              impliedP,
		})

		val := value.Compute(value.Input{
			P:          proj.ProjectedProbability,
			Odds:       float64(quote.Odds),
			SampleSize: proj.Evidence.SampleSize,
		})
		if val.Drop {
			result.notes = append(result.notes, "dropped "+quote.Market.Key()+": "+val.Reason)
			continue
		}

		tier := domain.TierD
		if val.Integrity == nil {
			tier = tiering.Classify(tiering.Candidate{
				Game:                  game,
				Market:                quote.Market,
				EV:                    val.Result.EV,
				Edge:                  val.Result.Edge,
				P:                     proj.ProjectedProbability,
				Confidence:            conf.Final,
				Mispricing:            val.Result.Mispricing,
				SampleSize:            proj.Evidence.SampleSize,
				ProjectedProbability:  proj.ProjectedProbability,
				ProjectionMargin:      proj.ProjectionMargin,
			})
		}

		var warnings []string
		if val.Integrity != nil {
			warnings = append(warnings, val.Integrity.Error())
		}

		rec := &domain.Recommendation{
			Game:       game,
			Market:     quote.Market,
			Odds:       quote.Odds,
			Projection: proj,
			Matchup:    mf,
			Confidence: conf,
			Value:      val.Result,
			Tier:       tier,
			Warnings:   warnings,
			Notes:      append([]string(nil), val.Result.Notes...),
			FinalScore: tiering.FinalScore(val.Result.EV, conf.Final, val.Result.Edge),
		}

		result.units = append(result.units, tiering.Unit{
			Rec: rec,
			Candidate: tiering.Candidate{
				Game:                  game,
				Market:                quote.Market,
				EV:                    val.Result.EV,
				Edge:                  val.Result.Edge,
				P:                     proj.ProjectedProbability,
				Confidence:            conf.Final,
				Mispricing:            val.Result.Mispricing,
				SampleSize:            proj.Evidence.SampleSize,
				ProjectedProbability:  proj.ProjectedProbability,
				ProjectionMargin:      proj.ProjectionMargin,
			},
		})
	}

	return result, nil
}

// classifyUnitError maps a unit's terminal error to the ErrCode
// operators alert on, per §5's failure taxonomy.
func classifyUnitError(err error) domain.ErrCode {
	var circuitOpen *domain.CircuitOpenError
	if errors.As(err, &circuitOpen) {
		return domain.ErrCodeCircuitOpen
	}
	var throttled *domain.ThrottledError
	if errors.As(err, &throttled) {
		return domain.ErrCodeThrottled
	}
	var exhausted *domain.TransientExhaustedError
	if errors.As(err, &exhausted) {
		return domain.ErrCodeTransient
	}
	var badUpstream *domain.BadUpstream
	if errors.As(err, &badUpstream) {
		return domain.ErrCodeBadUpstream
	}
	return domain.ErrCodeUnit
}

// resolvePlayerEvidence fetches a player's context and horizon-bounded
// game log, cache-first. A PlayerNotFound is a soft miss: the caller
// records the key and moves on, per §6 E3.
func (d *Deps) resolvePlayerEvidence(ctx context.Context, playerKey string) (domain.PlayerContext, []domain.GameLogEntry, bool, error) {
	playerCtx, err := d.fetchPlayerContext(ctx, playerKey)
	if err != nil {
		var notFound *domain.PlayerNotFound
		if errors.As(err, &notFound) {
			return domain.PlayerContext{}, nil, false, nil
		}
		return domain.PlayerContext{}, nil, false, err
	}

	log, err := d.fetchGameLog(ctx, playerKey)
	if err != nil {
		var notFound *domain.PlayerNotFound
		if errors.As(err, &notFound) {
			return domain.PlayerContext{}, nil, false, nil
		}
		return domain.PlayerContext{}, nil, false, err
	}

	return playerCtx, log, true, nil
}

// matchupFor computes MatchupFactors once per (team, opponent, stat)
// triple within a unit, per §4.4 step 3, caching the result locally
// since several markets on the same game can share a triple.
func (d *Deps) matchupFor(ctx context.Context, cache map[string]domain.MatchupFactors, teamID, opponentID string, stat domain.Stat) (domain.MatchupFactors, error) {
	key := teamID + "|" + opponentID + "|" + string(stat)
	if mf, ok := cache[key]; ok {
		return mf, nil
	}

	team, err := d.fetchTeamForm(ctx, teamID)
	if err != nil {
		return domain.MatchupFactors{}, err
	}
	opponent, err := d.fetchTeamForm(ctx, opponentID)
	if err != nil {
		return domain.MatchupFactors{}, err
	}

	leagueAllowed := 0.0
	if d.LeagueAllowed != nil {
		leagueAllowed = d.LeagueAllowed[stat]
	}

	mf := matchup.Compute(matchup.Inputs{
		Team:          team,
		Opponent:      opponent,
		Stat:          stat,
		LeaguePace:    d.LeaguePace,
		LeagueAllowed: leagueAllowed,
		AllOpponents:  d.allOpponents,
	})
	cache[key] = mf
	return mf, nil
}

// evidenceRates derives ExpectedMinutes and PerMinuteRate from the
// most recent games in log, the inputs the Projection Engine's
// deterministic path needs. Both are season/recent averages; the
// projection paths themselves handle unavailability.
func evidenceRates(log []domain.GameLogEntry, stat domain.Stat) (expectedMinutes, perMinuteRate float64) {
	n := len(log)
	if n == 0 {
		return 0, 0
	}
	window := 10
	if window > n {
		window = n
	}
	start := n - window

	var minutesSum, statSum float64
	for _, g := range log[start:] {
		minutesSum += g.MinutesPlayed
	}
	expectedMinutes = minutesSum / float64(window)
	if expectedMinutes <= 0 {
		return expectedMinutes, 0
	}

	for _, g := range log[start:] {
		statSum += g.StatValues[stat]
	}
	perMinuteRate = (statSum / float64(window)) / expectedMinutes
	return expectedMinutes, perMinuteRate
}

// minutesVariance is the coefficient of variation of recent minutes
// played, the signal C7's role-change penalty reads.
func minutesVariance(log []domain.GameLogEntry) float64 {
	n := len(log)
	if n < 2 {
		return 0
	}
	window := 10
	if window > n {
		window = n
	}
	start := n - window

	var sum float64
	for _, g := range log[start:] {
		sum += g.MinutesPlayed
	}
	mean := sum / float64(window)
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, g := range log[start:] {
		d := g.MinutesPlayed - mean
		variance += d * d
	}
	variance /= float64(window)
	return math.Sqrt(variance) / mean
}

// daysRestFor computes whole days between a player's most recent
// logged game and this game's tip time.
func daysRestFor(log []domain.GameLogEntry, game domain.Game) int {
	if len(log) == 0 {
		return 0
	}
	last := log[len(log)-1].Date
	hours := game.TipTime.Sub(last).Hours()
	if hours < 0 {
		return 0
	}
	return int(hours / 24)
}

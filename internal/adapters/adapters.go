// Package adapters implements the Evidence Adapter (C1): total,
// non-throwing conversion of opaque upstream payloads into domain
// types, per §6 E1-E3. Grounded on cryptorun's
// internal/infrastructure/datafacade conversion style (provider
// payload -> domain type, never panicking, errors surfaced as typed
// BadUpstream values attached to notes rather than propagated).
package adapters

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/hoopvalue/engine/internal/domain"
)

// GamePayload is the JSON shape a Markets upstream is expected to
// serve for one game (E1). Unrecognized markets and unparseable
// insights are dropped with a note rather than rejecting the payload.
type GamePayload struct {
	GameID   string        `json:"game_id"`
	TipTime  time.Time     `json:"tip_time"`
	AwayTeam string        `json:"away_team"`
	HomeTeam string        `json:"home_team"`
	Markets  []MarketEntry `json:"markets"`
	Insights []string      `json:"insights"`
}

// MarketEntry is one market line as served by the upstream.
type MarketEntry struct {
	Kind     string  `json:"kind"` // moneyline_away|moneyline_home|spread|total|player_prop
	Side     string  `json:"side"`
	Line     float64 `json:"line"`
	WholeNumber bool  `json:"whole_number"` // true if Line is a "k+" phrasing, not k-0.5
	PlayerID string  `json:"player_id"`
	Stat     string  `json:"stat"`
	Odds     float64 `json:"odds"`
}

// MarketQuote pairs a parsed Market with its validated Odds.
type MarketQuote struct {
	Market domain.Market
	Odds   domain.Odds
}

// ParsedGame is the per-game conversion result: the Game, its
// recognized (Market, Odds) pairs, the parsed player-prop insights,
// and notes for anything dropped along the way.
type ParsedGame struct {
	Game    domain.Game
	Quotes  []MarketQuote
	Props   []ParsedProp
	Notes   []string
}

// ParseGameList decodes a list of opaque game-list payloads into
// Games, per E1.
func ParseGameList(raw []byte) ([]domain.Game, error) {
	var entries []struct {
		GameID   string    `json:"game_id"`
		TipTime  time.Time `json:"tip_time"`
		AwayTeam string    `json:"away_team"`
		HomeTeam string    `json:"home_team"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &domain.BadUpstream{Reason: "unparseable game list payload", Excerpt: excerpt(raw)}
	}

	type collisionKey struct {
		tipTime  time.Time
		away     string
		home     string
	}
	seen := make(map[collisionKey]bool, len(entries))

	games := make([]domain.Game, 0, len(entries))
	for _, e := range entries {
		key := collisionKey{tipTime: e.TipTime, away: e.AwayTeam, home: e.HomeTeam}
		if seen[key] {
			return nil, &domain.BadUpstream{Reason: "duplicate game entry collides on tip_time/away_team/home_team", Excerpt: excerpt(raw)}
		}
		seen[key] = true

		games = append(games, domain.Game{
			GameID:   e.GameID,
			TipTime:  e.TipTime,
			AwayTeam: e.AwayTeam,
			HomeTeam: e.HomeTeam,
		})
	}
	return games, nil
}

// ParseGamePayload converts one game's opaque payload into a
// ParsedGame, per E1. Total: malformed markets and insights are
// dropped with a note, never aborting the whole conversion — only a
// structurally undecodable payload returns an error.
func ParseGamePayload(raw []byte) (ParsedGame, error) {
	var payload GamePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ParsedGame{}, &domain.BadUpstream{Reason: "unparseable game payload", Excerpt: excerpt(raw)}
	}

	game := domain.Game{
		GameID:   payload.GameID,
		TipTime:  payload.TipTime,
		AwayTeam: payload.AwayTeam,
		HomeTeam: payload.HomeTeam,
	}

	quotes, notes := parseMarkets(payload.Markets)

	props := make([]ParsedProp, 0, len(payload.Insights))
	for _, text := range payload.Insights {
		if p, ok := ParsePlayerPropInsight(text); ok {
			props = append(props, p)
		} else {
			notes = append(notes, "unparseable insight dropped: "+text)
		}
	}

	return ParsedGame{Game: game, Quotes: quotes, Props: props, Notes: notes}, nil
}

var recognizedKinds = map[string]domain.MarketKind{
	"moneyline_away": domain.MarketMoneylineAway,
	"moneyline_home": domain.MarketMoneylineHome,
	"spread":         domain.MarketSpread,
	"total":          domain.MarketTotal,
	"player_prop":    domain.MarketPlayerProp,
}

var recognizedStats = map[string]domain.Stat{
	"points":   domain.StatPoints,
	"rebounds": domain.StatRebounds,
	"assists":  domain.StatAssists,
	"threes":   domain.StatThrees,
	"blocks":   domain.StatBlocks,
	"steals":   domain.StatSteals,
}

var recognizedSides = map[string]domain.Side{
	"over":  domain.SideOver,
	"under": domain.SideUnder,
	"home":  domain.SideHome,
	"away":  domain.SideAway,
}

// parseMarkets converts each MarketEntry into a (Market, Odds) pair,
// dropping unrecognized markets, stats, sides, or invalid odds with a
// note rather than failing the whole payload.
func parseMarkets(entries []MarketEntry) ([]MarketQuote, []string) {
	quotes := make([]MarketQuote, 0, len(entries))
	var notes []string

	for _, e := range entries {
		kind, ok := recognizedKinds[e.Kind]
		if !ok {
			notes = append(notes, "unrecognized market ignored: "+e.Kind)
			continue
		}

		market := domain.Market{Kind: kind, Line: e.Line}

		if kind == domain.MarketTotal || kind == domain.MarketSpread || kind == domain.MarketPlayerProp {
			side, ok := recognizedSides[e.Side]
			if !ok {
				notes = append(notes, "unrecognized side ignored for "+e.Kind)
				continue
			}
			market.Side = side
		}

		if kind == domain.MarketPlayerProp {
			stat, ok := recognizedStats[e.Stat]
			if !ok {
				notes = append(notes, "unrecognized stat ignored for player_prop")
				continue
			}
			market.Stat = stat
			market.PlayerID = e.PlayerID
		}

		if e.WholeNumber {
			market.Line = domain.WholeNumberLine(e.Line)
		}

		odds, err := domain.NewOdds(e.Odds)
		if err != nil {
			notes = append(notes, "invalid odds ignored for "+e.Kind)
			continue
		}

		quotes = append(quotes, MarketQuote{Market: market, Odds: odds})
	}

	return quotes, notes
}

func excerpt(raw []byte) string {
	const max = 120
	s := string(raw)
	if len(s) > max {
		return s[:max]
	}
	return s
}

// GameLogPayload is the JSON shape a GameLog upstream serves for one
// normalized player key (E3).
type GameLogPayload struct {
	Entries []GameLogEntryDTO `json:"entries"`
}

// GameLogEntryDTO is one historical game row as served by the
// upstream.
type GameLogEntryDTO struct {
	Date          time.Time          `json:"date"`
	Opponent      string             `json:"opponent"`
	IsHome        bool               `json:"is_home"`
	MinutesPlayed float64            `json:"minutes_played"`
	StatValues    map[string]float64 `json:"stat_values"`
	Win           bool               `json:"win"`
}

// ParseGameLog converts a raw game-log payload into ascending,
// de-duplicated, horizon-filtered entries, per E3.
func ParseGameLog(raw []byte, horizon domain.GameLogHorizon, asOf time.Time) ([]domain.GameLogEntry, error) {
	var payload GameLogPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &domain.BadUpstream{Reason: "unparseable game log payload", Excerpt: excerpt(raw)}
	}

	byDate := make(map[time.Time]domain.GameLogEntry, len(payload.Entries))
	order := make([]time.Time, 0, len(payload.Entries))
	for _, e := range payload.Entries {
		stats := make(map[domain.Stat]float64, len(e.StatValues))
		for k, v := range e.StatValues {
			if stat, ok := recognizedStats[k]; ok {
				stats[stat] = v
			}
		}
		entry := domain.GameLogEntry{
			Date:          e.Date,
			Opponent:      e.Opponent,
			IsHome:        e.IsHome,
			MinutesPlayed: e.MinutesPlayed,
			StatValues:    stats,
			Win:           e.Win,
		}
		if _, seen := byDate[e.Date]; !seen {
			order = append(order, e.Date)
		}
		byDate[e.Date] = entry // later entry for the same date wins (dedup by date)
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	cutoffByDays := asOf.AddDate(0, 0, -horizon.MaxDays)
	result := make([]domain.GameLogEntry, 0, len(order))
	for _, d := range order {
		if d.Before(cutoffByDays) {
			continue
		}
		result = append(result, byDate[d])
	}
	if len(result) > horizon.MaxGames {
		result = result[len(result)-horizon.MaxGames:]
	}

	return result, nil
}

var nameSuffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
}

// NormalizePlayerKey implements E3's exact normalization rule:
// lowercase; "." stripped, "-" replaced with a space; collapse
// whitespace; strip name suffixes. Every " to" substring is removed
// right after lowercasing, before the rest of normalization runs.
func NormalizePlayerKey(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " to", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "-", " ")

	fields := strings.Fields(s)
	if len(fields) > 0 && nameSuffixes[strings.Trim(fields[len(fields)-1], ",")] {
		fields = fields[:len(fields)-1]
	}

	return strings.Join(fields, " ")
}

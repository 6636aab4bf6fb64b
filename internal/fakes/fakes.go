// Package fakes provides fixture-backed, deterministic implementations
// of the internal/ports interfaces for testing the pipeline end to
// end, without a real upstream. Grounded on cryptorun's
// internal/infrastructure/datafacade/fakes/deterministic.go
// (DeterministicFakeProvider) — generalized here from hash-derived
// synthetic data to hand-authored fixed fixtures, since
// properties_test.go needs exact control over the scenarios it
// exercises rather than merely-consistent random data.
package fakes

import (
	"context"

	"github.com/hoopvalue/engine/internal/domain"
)

// Markets is a fixture-backed ports.MarketsProvider. GameList and
// Payloads are raw bytes exactly as ParseGameList/ParseGamePayload
// expect; Failures lets a scenario force a given game's payload fetch
// to always error (e.g. to drive retry exhaustion).
type Markets struct {
	GameList []byte
	Payloads map[string][]byte
	Failures map[string]error
}

func (m *Markets) FetchGameList(ctx context.Context) ([]byte, error) {
	return m.GameList, nil
}

func (m *Markets) FetchGamePayload(ctx context.Context, gameID string) ([]byte, error) {
	if err, ok := m.Failures[gameID]; ok {
		return nil, err
	}
	if b, ok := m.Payloads[gameID]; ok {
		return b, nil
	}
	return nil, &domain.BadUpstream{Reason: "no fixture for game", Excerpt: gameID}
}

// GameLog is a fixture-backed ports.GameLogProvider, keyed by the
// normalized player key the adapters layer passes through unchanged
// (fixtures here use the raw player_id from the market fixtures as the
// key directly, since the two spaces coincide in these tests).
type GameLog struct {
	Contexts map[string]domain.PlayerContext
	Logs     map[string][]domain.GameLogEntry
}

func (g *GameLog) FetchPlayerContext(ctx context.Context, key string) (domain.PlayerContext, error) {
	pc, ok := g.Contexts[key]
	if !ok {
		return domain.PlayerContext{}, &domain.PlayerNotFound{NormalizedKey: key}
	}
	return pc, nil
}

func (g *GameLog) FetchGameLog(ctx context.Context, key string, horizon domain.GameLogHorizon) ([]domain.GameLogEntry, error) {
	log, ok := g.Logs[key]
	if !ok {
		return nil, &domain.PlayerNotFound{NormalizedKey: key}
	}
	return log, nil
}

// TeamForm is a fixture-backed ports.TeamFormProvider.
type TeamForm struct {
	Forms map[string]domain.TeamForm
}

func (t *TeamForm) FetchTeamForm(ctx context.Context, teamID string) (domain.TeamForm, error) {
	tf, ok := t.Forms[teamID]
	if !ok {
		return domain.TeamForm{}, &domain.BadUpstream{Reason: "no fixture for team", Excerpt: teamID}
	}
	return tf, nil
}

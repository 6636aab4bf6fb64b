// Package ports declares the upstream contracts the core depends on
// (E1-E3 of §6), decoupled from any concrete transport. Grounded on
// cryptorun's internal/infrastructure/datafacade provider-interface
// style, where each data source is an interface the application layer
// depends on and a fakes package satisfies for tests.
package ports

import (
	"context"

	"github.com/hoopvalue/engine/internal/domain"
)

// MarketsProvider fetches the raw, opaque per-game payload that
// internal/adapters converts into a Game, its Markets/Odds pairs, and
// its textual insights.
type MarketsProvider interface {
	FetchGamePayload(ctx context.Context, gameID string) (raw []byte, err error)
	FetchGameList(ctx context.Context) (raw []byte, err error)
}

// TeamFormProvider serves E2: a static-per-run team form record.
type TeamFormProvider interface {
	FetchTeamForm(ctx context.Context, teamID string) (domain.TeamForm, error)
}

// GameLogProvider serves E3: a player's context and chronological game
// log, identified by a normalized player key.
type GameLogProvider interface {
	FetchPlayerContext(ctx context.Context, normalizedKey string) (domain.PlayerContext, error)
	FetchGameLog(ctx context.Context, normalizedKey string, horizon domain.GameLogHorizon) ([]domain.GameLogEntry, error)
}

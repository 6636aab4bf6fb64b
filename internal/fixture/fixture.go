// Package fixture loads a JSON fixture bundle into the fakes-backed
// ports implementations, for the cmd/hoopvalue CLI's analyze
// subcommand. Grounded on cryptorun's cmd/cryptorun dryrun_main.go
// (a mock-data executor standing in for live providers) and on
// internal/fakes's fixture shape, reused here for the CLI rather than
// tests.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hoopvalue/engine/internal/domain"
	"github.com/hoopvalue/engine/internal/fakes"
)

// Bundle is the on-disk JSON shape the analyze subcommand reads: a
// RunInput plus every upstream record Analyze might need to resolve
// it, in the same raw-bytes shape the real upstreams would serve.
type Bundle struct {
	RunInput       domain.RunInput                        `json:"run_input"`
	GameList       json.RawMessage                         `json:"game_list"`
	Payloads       map[string]json.RawMessage              `json:"payloads"`
	PlayerContexts map[string]domain.PlayerContext         `json:"player_contexts"`
	GameLogs       map[string][]domain.GameLogEntry        `json:"game_logs"`
	TeamForms      map[string]domain.TeamForm              `json:"team_forms"`
}

// Load reads and decodes a Bundle from path.
func Load(path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("read fixture bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return Bundle{}, fmt.Errorf("parse fixture bundle: %w", err)
	}
	return b, nil
}

// Providers builds the three fakes-backed ports implementations a
// Bundle describes.
func (b Bundle) Providers() (*fakes.Markets, *fakes.GameLog, *fakes.TeamForm) {
	payloads := make(map[string][]byte, len(b.Payloads))
	for id, raw := range b.Payloads {
		payloads[id] = raw
	}

	markets := &fakes.Markets{GameList: []byte(b.GameList), Payloads: payloads}
	gameLog := &fakes.GameLog{Contexts: b.PlayerContexts, Logs: b.GameLogs}
	teamForm := &fakes.TeamForm{Forms: b.TeamForms}
	return markets, gameLog, teamForm
}

// Package hoopvalue is the public facade over internal/pipeline,
// exposing the stable Analyze/Validate surface to external callers. A
// minimal, newly-introduced facade: the teacher ships no comparable
// public SDK package of its own, only internal/+cmd/ (see DESIGN.md).
package hoopvalue

import (
	"context"

	"github.com/hoopvalue/engine/internal/cacheredis"
	"github.com/hoopvalue/engine/internal/config"
	"github.com/hoopvalue/engine/internal/domain"
	"github.com/hoopvalue/engine/internal/pipeline"
	"github.com/hoopvalue/engine/internal/ports"
	"github.com/hoopvalue/engine/internal/store"
)

// RunInput, RunOutput, GameRef, Recommendation, HealthSnapshot and
// ValidationResult are re-exported by reference so callers need not
// import internal/domain for them. Game and Market are not re-exported.
type (
	RunInput         = domain.RunInput
	RunOutput        = domain.RunOutput
	GameRef          = domain.GameRef
	Recommendation   = domain.Recommendation
	HealthSnapshot   = domain.HealthSnapshot
	ValidationResult = domain.ValidationResult
)

// Engine is the entry point a caller constructs once and reuses across
// runs. It wraps internal/pipeline.Deps, the package's composition
// root.
type Engine struct {
	deps *pipeline.Deps
}

// New wires an Engine from an upstreams config file and the three
// evidence providers. The archive and Redis mirror described in the
// config's archive/redis sections are opened eagerly and attached;
// either is skipped (not an error) when its address/DSN is empty.
func New(cfgPath string, markets ports.MarketsProvider, gameLog ports.GameLogProvider, teamForm ports.TeamFormProvider) (*Engine, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	deps := pipeline.NewDeps(cfg, markets, gameLog, teamForm)

	if cfg.Archive.DSN != "" {
		db, err := store.Open(cfg.Archive.DSN)
		if err != nil {
			return nil, err
		}
		deps.UseArchive(store.NewRunArchive(db, cfg.Archive.Timeout()))
	}

	if cfg.Redis.Addr != "" {
		deps.UseRedisCache(cacheredis.New(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.TTL()))
	}

	return &Engine{deps: deps}, nil
}

// LoadRun retrieves a previously archived RunOutput by RunID, per the
// archive/redis wiring configured at construction. ok is false when
// nothing was archived under runID, or no archive/redis backend is
// configured at all.
func (e *Engine) LoadRun(ctx context.Context, runID string) (out RunOutput, ok bool, err error) {
	return e.deps.LoadRun(ctx, runID)
}

// Analyze runs the full projection → confidence → value/tier pipeline
// for in, returning a RunOutput whose Recommendations are sorted per
// §4.10.
func (e *Engine) Analyze(ctx context.Context, in RunInput) (RunOutput, error) {
	return e.deps.Analyze(ctx, in)
}

// Validate checks a single Recommendation against invariants I1-I5.
func Validate(r Recommendation) ValidationResult {
	return pipeline.Validate(r)
}

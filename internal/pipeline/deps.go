// Package pipeline implements Run Orchestration & Wiring (C10): the
// top-level Analyze entry point that composes the evidence adapters,
// caches, matchup engine, projection engine, confidence engine, and
// value/tiering stages into one end-to-end call per §4.10/§5. Grounded
// on cryptorun's internal/application scan-orchestration layer, which
// wires together its own provider facade, cache, and scoring pipeline
// behind a single exported entry point.
package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hoopvalue/engine/internal/breaker"
	"github.com/hoopvalue/engine/internal/cache"
	"github.com/hoopvalue/engine/internal/cacheredis"
	"github.com/hoopvalue/engine/internal/config"
	"github.com/hoopvalue/engine/internal/domain"
	"github.com/hoopvalue/engine/internal/ports"
	"github.com/hoopvalue/engine/internal/ratelimit"
	"github.com/hoopvalue/engine/internal/retry"
	"github.com/hoopvalue/engine/internal/store"
)

const (
	UpstreamMarkets  = "markets"
	UpstreamGameLog  = "game_log"
	UpstreamTeamForm = "team_form"
)

// Deps bundles every external dependency a run needs: the three
// upstream ports plus the shared cache/rate-limit/circuit/retry
// infrastructure from §4.2/§4.3. Constructing a Deps is the
// composition root; Analyze itself stays free of concrete transports.
type Deps struct {
	Markets  ports.MarketsProvider
	GameLog  ports.GameLogProvider
	TeamForm ports.TeamFormProvider

	Cache    *cache.TTLStore
	Identity *cache.IdentityStore
	Limiter  *ratelimit.Manager
	Breakers map[string]breaker.Breaker

	// Archive persists completed runs when RunInput.ArchiveRun is set.
	// Nil by default — archival is opt-in infrastructure, not every
	// Deps needs a Postgres connection (e.g. properties_test.go's fakes
	// never set it).
	Archive *store.RunArchive

	// RedisCache, when set, mirrors an archived RunOutput into Redis
	// under the same RunID so repeat lookups (LoadRun) skip Postgres.
	// Nil by default.
	RedisCache *cacheredis.Store

	// retryByUpstream holds one executor per upstream, since markets
	// retries slower than game_log/team_form per §6 E4 — a single
	// shared executor would apply the wrong backoff to some upstreams.
	retryByUpstream map[string]*retry.Executor

	// LeaguePace and LeagueAllowed feed the Matchup Engine's
	// denominators; both default to a league-average placeholder when
	// zero, per matchup.Compute's missing-data fallback.
	LeaguePace    float64
	LeagueAllowed map[domain.Stat]float64

	Horizon domain.GameLogHorizon

	// allOpponents is the current run's full slate of team forms, fed
	// to matchup.Compute as AllOpponents so OpponentRankForStat ranks
	// against every team playing this slate rather than always
	// returning 0. Analyze repopulates it per call; like Horizon, it
	// assumes one Deps serves one run at a time.
	allOpponents []domain.TeamForm

	// missingMu guards missing, the current run's accumulator of
	// normalized player keys that resolved to PlayerNotFound. Analyze
	// resets it at the start of each call; concurrent Analyze calls on
	// the same Deps would race on it, which this wiring does not
	// attempt to support (one Deps serves one run at a time).
	missingMu sync.Mutex
	missing   []string
}

func (d *Deps) recordMissing(key string) {
	d.missingMu.Lock()
	defer d.missingMu.Unlock()
	d.missing = append(d.missing, key)
}

func (d *Deps) drainMissing() []string {
	d.missingMu.Lock()
	defer d.missingMu.Unlock()
	out := d.missing
	d.missing = nil
	return out
}

// NewDeps wires a Deps from an UpstreamsConfig: one rate limiter and
// one circuit breaker per configured upstream, and a retry executor
// per upstream's backoff parameters.
func NewDeps(cfg *config.UpstreamsConfig, markets ports.MarketsProvider, gameLog ports.GameLogProvider, teamForm ports.TeamFormProvider) *Deps {
	limiter := ratelimit.NewManager()
	breakers := make(map[string]breaker.Breaker, len(cfg.Upstreams))
	retries := make(map[string]*retry.Executor, len(cfg.Upstreams))

	for name, uc := range cfg.Upstreams {
		limiter.Register(name, ratelimit.Config{
			RequestsPerSecond: uc.RequestsPerSecond,
			Burst:             uc.Burst,
			MaxWait:           uc.RequestTimeout(),
		})
		breakers[name] = breaker.New(name, breaker.Config{
			ConsecutiveFailures: uc.Circuit.ConsecutiveFailures,
			Window:              time.Duration(uc.Circuit.WindowSec) * time.Second,
			Cooldown:            time.Duration(uc.Circuit.CooldownSec) * time.Second,
		})
		retries[name] = retry.New(retry.Config{
			MaxAttempts: uc.MaxAttempts,
			BaseDelay:   time.Duration(uc.BaseDelayMS) * time.Millisecond,
			Factor:      uc.Backoff.Factor,
		})
	}

	return &Deps{
		Markets:         markets,
		GameLog:         gameLog,
		TeamForm:        teamForm,
		Cache:           cache.NewTTLStore(24*time.Hour, time.Hour),
		Identity:        cache.NewIdentityStore(),
		Limiter:         limiter,
		Breakers:        breakers,
		retryByUpstream: retries,
		Horizon:         domain.DefaultGameLogHorizon(),
	}
}

// UseArchive attaches a run archive; calling Analyze with
// RunInput.ArchiveRun set before this is called is a silent no-op,
// matching Save's own "never fail the run" posture.
func (d *Deps) UseArchive(a *store.RunArchive) *Deps {
	d.Archive = a
	return d
}

// UseRedisCache attaches a Redis-backed mirror for archived runs.
func (d *Deps) UseRedisCache(c *cacheredis.Store) *Deps {
	d.RedisCache = c
	return d
}

// LoadRun retrieves a previously archived RunOutput by RunID, checking
// the Redis mirror first and falling back to Postgres. Returns
// (domain.RunOutput{}, false, nil) when nothing is configured or found.
func (d *Deps) LoadRun(ctx context.Context, runID string) (domain.RunOutput, bool, error) {
	key := cache.Key{Upstream: "run_archive", EntityID: runID, QueryShape: "output"}

	if d.RedisCache != nil {
		var out domain.RunOutput
		hit, err := d.RedisCache.Get(ctx, key, &out)
		if err == nil && hit {
			return out, true, nil
		}
	}

	if d.Archive == nil {
		return domain.RunOutput{}, false, nil
	}
	payload, err := d.Archive.Load(ctx, runID)
	if err != nil {
		return domain.RunOutput{}, false, err
	}
	if payload == nil {
		return domain.RunOutput{}, false, nil
	}
	var out domain.RunOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return domain.RunOutput{}, false, err
	}
	return out, true, nil
}

// loadSlateOpponents fetches (cache-first) every distinct team's form
// across games and stores the result on d for matchupFor to use as
// AllOpponents. A single team's fetch failure drops that team from the
// ranking pool rather than failing the run — ranking degrades, it
// doesn't block.
func (d *Deps) loadSlateOpponents(ctx context.Context, games []domain.Game) {
	seen := make(map[string]bool, len(games)*2)
	forms := make([]domain.TeamForm, 0, len(games)*2)
	for _, g := range games {
		for _, teamID := range [2]string{g.AwayTeam, g.HomeTeam} {
			if teamID == "" || seen[teamID] {
				continue
			}
			seen[teamID] = true
			tf, err := d.fetchTeamForm(ctx, teamID)
			if err != nil {
				continue
			}
			forms = append(forms, tf)
		}
	}
	d.allOpponents = forms
}

func (d *Deps) retryFor(upstream string) *retry.Executor {
	if d.retryByUpstream == nil {
		return retry.New(retry.DefaultConfig())
	}
	if e, ok := d.retryByUpstream[upstream]; ok {
		return e
	}
	return retry.New(retry.DefaultConfig())
}

// fetchCached wraps fetch with cache-first lookup, rate limiting,
// retry, and circuit-breaker guards, per §4.2/§4.3. A cache hit never
// touches the rate limiter or breaker, matching P10's cache-idempotence
// property.
func (d *Deps) fetchCached(ctx context.Context, upstream, entityID, queryShape string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	key := cache.Key{Upstream: upstream, EntityID: entityID, QueryShape: queryShape}
	if v, ok := d.Cache.Get(key); ok {
		if b, ok2 := v.([]byte); ok2 {
			return b, nil
		}
	}

	if err := d.Limiter.Acquire(ctx, upstream); err != nil {
		return nil, err
	}

	var result []byte
	cb := d.Breakers[upstream]
	err := d.retryFor(upstream).Do(ctx, upstream, cb, func(ctx context.Context) error {
		b, err := fetch(ctx)
		if err != nil {
			return err
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.Cache.Set(key, result)
	return result, nil
}

func (d *Deps) fetchGameList(ctx context.Context) ([]byte, error) {
	return d.fetchCached(ctx, UpstreamMarkets, "", "game_list", d.Markets.FetchGameList)
}

func (d *Deps) fetchGamePayload(ctx context.Context, gameID string) ([]byte, error) {
	return d.fetchCached(ctx, UpstreamMarkets, gameID, "payload", func(ctx context.Context) ([]byte, error) {
		return d.Markets.FetchGamePayload(ctx, gameID)
	})
}

func (d *Deps) fetchPlayerContext(ctx context.Context, key string) (domain.PlayerContext, error) {
	v, ok := d.Cache.Get(cache.Key{Upstream: UpstreamGameLog, EntityID: key, QueryShape: "player_context"})
	if ok {
		if pc, ok2 := v.(domain.PlayerContext); ok2 {
			return pc, nil
		}
	}

	if err := d.Limiter.Acquire(ctx, UpstreamGameLog); err != nil {
		return domain.PlayerContext{}, err
	}

	var pc domain.PlayerContext
	cb := d.Breakers[UpstreamGameLog]
	err := d.retryFor(UpstreamGameLog).Do(ctx, UpstreamGameLog, cb, func(ctx context.Context) error {
		v, err := d.GameLog.FetchPlayerContext(ctx, key)
		if err != nil {
			return err
		}
		pc = v
		return nil
	})
	if err != nil {
		return domain.PlayerContext{}, err
	}

	d.Cache.Set(cache.Key{Upstream: UpstreamGameLog, EntityID: key, QueryShape: "player_context"}, pc)
	return pc, nil
}

func (d *Deps) fetchGameLog(ctx context.Context, key string) ([]domain.GameLogEntry, error) {
	v, ok := d.Cache.Get(cache.Key{Upstream: UpstreamGameLog, EntityID: key, QueryShape: "game_log"})
	if ok {
		if log, ok2 := v.([]domain.GameLogEntry); ok2 {
			return log, nil
		}
	}

	if err := d.Limiter.Acquire(ctx, UpstreamGameLog); err != nil {
		return nil, err
	}

	var log []domain.GameLogEntry
	cb := d.Breakers[UpstreamGameLog]
	err := d.retryFor(UpstreamGameLog).Do(ctx, UpstreamGameLog, cb, func(ctx context.Context) error {
		v, err := d.GameLog.FetchGameLog(ctx, key, d.Horizon)
		if err != nil {
			return err
		}
		log = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.Cache.Set(cache.Key{Upstream: UpstreamGameLog, EntityID: key, QueryShape: "game_log"}, log)
	return log, nil
}

func (d *Deps) fetchTeamForm(ctx context.Context, teamID string) (domain.TeamForm, error) {
	v, ok := d.Cache.Get(cache.Key{Upstream: UpstreamTeamForm, EntityID: teamID, QueryShape: "team_form"})
	if ok {
		if tf, ok2 := v.(domain.TeamForm); ok2 {
			return tf, nil
		}
	}

	if err := d.Limiter.Acquire(ctx, UpstreamTeamForm); err != nil {
		return domain.TeamForm{}, err
	}

	var tf domain.TeamForm
	cb := d.Breakers[UpstreamTeamForm]
	err := d.retryFor(UpstreamTeamForm).Do(ctx, UpstreamTeamForm, cb, func(ctx context.Context) error {
		v, err := d.TeamForm.FetchTeamForm(ctx, teamID)
		if err != nil {
			return err
		}
		tf = v
		return nil
	})
	if err != nil {
		return domain.TeamForm{}, err
	}

	d.Cache.Set(cache.Key{Upstream: UpstreamTeamForm, EntityID: teamID, QueryShape: "team_form"}, tf)
	return tf, nil
}

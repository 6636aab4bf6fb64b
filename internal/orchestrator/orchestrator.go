// Package orchestrator implements the bounded-concurrency driver (C4):
// up to W worker goroutines, each processing one Game unit end to end,
// with cooperative cancellation and partial-failure isolation, per §5.
// Grounded on cryptorun's internal/infrastructure/async concurrency
// helpers, generalized here into a plain unbuffered-channel +
// sync.WaitGroup pool (no golang.org/x/sync/errgroup dependency,
// matching the teacher's own preference for hand-rolled concurrency
// primitives over that package).
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/hoopvalue/engine/internal/domain"
)

// DefaultWorkers is W from §5.
const DefaultWorkers = 3

// UnitFunc processes one Game unit end to end, returning its
// recommendations or a UnitError.
type UnitFunc func(ctx context.Context, game domain.Game) ([]domain.Recommendation, *domain.UnitError)

// Config controls the worker pool's width and the inter-unit jittered
// delay applied before each unit starts (a light-touch upstream
// courtesy, independent of the per-upstream rate limiter).
type Config struct {
	Workers        int
	InterUnitDelay time.Duration
}

// DefaultConfig returns W=3 workers with no inter-unit delay.
func DefaultConfig() Config {
	return Config{Workers: DefaultWorkers}
}

// Result is the orchestrator's output: the recommendations and
// UnitErrors collected across all submitted units, in the order
// workers happened to finish (callers reorder per §4.4/§4.10).
type Result struct {
	Recommendations []domain.Recommendation
	Errors          []domain.UnitError
}

// Run submits one unit per game to a bounded pool of cfg.Workers
// goroutines. Cancellation is cooperative at unit boundaries: once ctx
// is done, no new units start, in-flight units are allowed to finish
// and their results are still collected, per §5.
func Run(ctx context.Context, cfg Config, games []domain.Game, fn UnitFunc) Result {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	jobs := make(chan domain.Game)
	var mu sync.Mutex
	var recs []domain.Recommendation
	var unitErrs []domain.UnitError

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for game := range jobs {
				runUnit(ctx, game, fn, &mu, &recs, &unitErrs)
			}
		}()
	}

feed:
	for _, g := range games {
		if cfg.InterUnitDelay > 0 {
			jitter := time.Duration(rand.Int63n(int64(cfg.InterUnitDelay) + 1))
			select {
			case <-time.After(jitter):
			case <-ctx.Done():
				break feed
			}
		}
		select {
		case jobs <- g:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return Result{Recommendations: recs, Errors: unitErrs}
}

// runUnit executes one unit, converting a panic into a UnitError so a
// single failing unit never brings down the pool, per §5's failure
// isolation rule.
func runUnit(ctx context.Context, game domain.Game, fn UnitFunc, mu *sync.Mutex, recs *[]domain.Recommendation, unitErrs *[]domain.UnitError) {
	defer func() {
		if r := recover(); r != nil {
			mu.Lock()
			*unitErrs = append(*unitErrs, domain.UnitError{
				Game:    game,
				Code:    domain.ErrCodeUnit,
				Message: fmt.Sprintf("unit panicked: %v", r),
			})
			mu.Unlock()
		}
	}()

	result, unitErr := fn(ctx, game)

	mu.Lock()
	defer mu.Unlock()
	if unitErr != nil {
		*unitErrs = append(*unitErrs, *unitErr)
		return
	}
	*recs = append(*recs, result...)
}

package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hoopvalue/engine/internal/domain"
)

func games(n int) []domain.Game {
	out := make([]domain.Game, n)
	for i := range out {
		out[i] = domain.Game{GameID: string(rune('a' + i)), AwayTeam: "A", HomeTeam: "H"}
	}
	return out
}

func TestRun_ProcessesAllUnitsWithBoundedConcurrency(t *testing.T) {
	var active, maxActive int32
	fn := func(ctx context.Context, g domain.Game) ([]domain.Recommendation, *domain.UnitError) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return []domain.Recommendation{{Game: g}}, nil
	}

	cfg := Config{Workers: 2}
	result := Run(context.Background(), cfg, games(6), fn)

	require.Len(t, result.Recommendations, 6)
	require.LessOrEqual(t, maxActive, int32(2))
}

func TestRun_CollectsUnitErrorsWithoutAbortingOthers(t *testing.T) {
	fn := func(ctx context.Context, g domain.Game) ([]domain.Recommendation, *domain.UnitError) {
		if g.GameID == "a" {
			return nil, &domain.UnitError{Game: g, Code: domain.ErrCodeBadUpstream, Message: "boom"}
		}
		return []domain.Recommendation{{Game: g}}, nil
	}

	result := Run(context.Background(), DefaultConfig(), games(3), fn)

	require.Len(t, result.Errors, 1)
	require.Len(t, result.Recommendations, 2)
}

func TestRun_PanicInUnitIsIsolated(t *testing.T) {
	fn := func(ctx context.Context, g domain.Game) ([]domain.Recommendation, *domain.UnitError) {
		if g.GameID == "a" {
			panic("unexpected")
		}
		return []domain.Recommendation{{Game: g}}, nil
	}

	result := Run(context.Background(), DefaultConfig(), games(3), fn)

	require.Len(t, result.Errors, 1)
	require.Equal(t, domain.ErrCodeUnit, result.Errors[0].Code)
	require.Len(t, result.Recommendations, 2)
}

func TestRun_CancellationStopsSubmittingNewUnits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var processed int32
	fn := func(ctx context.Context, g domain.Game) ([]domain.Recommendation, *domain.UnitError) {
		atomic.AddInt32(&processed, 1)
		if g.GameID == "a" {
			cancel()
		}
		return []domain.Recommendation{{Game: g}}, nil
	}

	cfg := Config{Workers: 1}
	result := Run(ctx, cfg, games(10), fn)

	require.Less(t, len(result.Recommendations), 10)
	require.NotEmpty(t, result.Recommendations)
}

// Package telemetry wraps zerolog with a per-component logger
// factory, grounded on the teacher's use of github.com/rs/zerolog/log
// throughout internal/infrastructure/providers and internal/log —
// every package logs through a zerolog.Logger carrying its own
// "component" context rather than the bare global logger.
package telemetry

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the root logger. level follows zerolog's string parsing
// ("debug", "info", "warn", "error"); an unrecognized level falls back
// to info.
func New(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(parsed).With().Timestamp().Logger()
}

// Component returns a child logger tagged with "component", used so
// log lines from the Evidence Adapter, orchestrator, and pipeline
// driver can be filtered independently.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// ForUpstream tags a logger with the upstream it is acting on behalf
// of, for rate-limit/circuit/retry log lines.
func ForUpstream(base zerolog.Logger, upstream string) zerolog.Logger {
	return base.With().Str("upstream", upstream).Logger()
}

// ForRun tags a logger with the current pipeline run's identifier.
func ForRun(base zerolog.Logger, runID string) zerolog.Logger {
	return base.With().Str("run_id", runID).Logger()
}

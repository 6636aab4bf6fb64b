// Package store persists completed runs to Postgres for reproducibility
// auditing (the DOMAIN STACK's run-archive component). Grounded on
// cryptorun's internal/persistence/postgres/trades_repo.go: a thin
// *sqlx.DB-backed repo, JSON-encoded payload columns, pq.Error code
// inspection for duplicate-key handling.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hoopvalue/engine/internal/domain"
)

// RunArchive persists RunOutput snapshots. Archival is opt-in
// (RunInput.ArchiveRun) and its failure never fails an Analyze call —
// callers log and continue, per the teacher's "don't fail the entire
// operation if database storage fails" convention.
type RunArchive struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunArchive wraps an existing *sqlx.DB connection.
func NewRunArchive(db *sqlx.DB, timeout time.Duration) *RunArchive {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RunArchive{db: db, timeout: timeout}
}

// Open establishes a new Postgres connection via sqlx, mirroring the
// teacher's connection.go sqlx.Open("postgres", dsn) pattern.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres connection: %w", err)
	}
	return db, nil
}

// Record is one archived run.
type Record struct {
	RunID     string    `db:"run_id"`
	RequestedAt time.Time `db:"requested_at"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

// Save archives a RunOutput as a JSON payload keyed by RunID.
func (a *RunArchive) Save(ctx context.Context, runID string, requestedAt time.Time, output domain.RunOutput) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal run output: %w", err)
	}

	query := `
		INSERT INTO run_archive (run_id, requested_at, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO NOTHING`

	_, err = a.db.ExecContext(ctx, query, runID, requestedAt, payload)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("archive run %s: pq error %s: %w", runID, pqErr.Code, err)
		}
		return fmt.Errorf("archive run %s: %w", runID, err)
	}
	return nil
}

// Load retrieves one archived run's raw JSON payload by RunID.
func (a *RunArchive) Load(ctx context.Context, runID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var rec Record
	err := a.db.GetContext(ctx, &rec, `SELECT run_id, requested_at, payload, created_at FROM run_archive WHERE run_id = $1`, runID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return rec.Payload, nil
}

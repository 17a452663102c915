// Package store persists runs and their link records to Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lukemcguire/vidcheck/result"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS check_runs (
	id           uuid PRIMARY KEY,
	started_at   timestamptz NOT NULL,
	finished_at  timestamptz NOT NULL,
	mode         text NOT NULL,
	workers      integer NOT NULL,
	total        integer NOT NULL,
	alive        integer NOT NULL,
	dead         integer NOT NULL,
	canonical    integer NOT NULL,
	unprocessed  integer NOT NULL,
	degraded     boolean NOT NULL
);

CREATE TABLE IF NOT EXISTS link_records (
	run_id         uuid NOT NULL REFERENCES check_runs(id) ON DELETE CASCADE,
	raw_url        text NOT NULL,
	canonical_url  text,
	outcome        text NOT NULL,
	reason         text NOT NULL,
	status_code    integer,
	error_type     text,
	error          text,
	resolve_error  text,
	worker         integer NOT NULL,
	elapsed_ms     bigint NOT NULL
);

CREATE INDEX IF NOT EXISTS link_records_run_outcome_idx ON link_records (run_id, outcome);
`

var recordColumns = []string{
	"run_id", "raw_url", "canonical_url", "outcome", "reason", "status_code",
	"error_type", "error", "resolve_error", "worker", "elapsed_ms",
}

// Run describes one checker run.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Mode       string
	Workers    int
	Degraded   bool
}

// NewRun returns a Run with a fresh random id.
func NewRun(mode string, workers int, started time.Time) Run {
	return Run{ID: uuid.New(), StartedAt: started, Mode: mode, Workers: workers}
}

// Store writes runs to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveRun stores run and every record of res in one transaction. Unprocessed
// links are stored with the not_checked reason.
func (s *Store) SaveRun(ctx context.Context, run Run, res *result.Result) (err error) {
	if res == nil {
		return errors.New("save run: nil result")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO check_runs
			(id, started_at, finished_at, mode, workers, total, alive, dead, canonical, unprocessed, degraded)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Mode, run.Workers,
		res.Stats.Total, res.Stats.Alive, res.Stats.Dead, res.Stats.Canonical, res.Stats.Unprocessed,
		run.Degraded,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	rows := recordRows(run.ID, res)
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"link_records"}, recordColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy link records: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copy link records: wrote %d of %d rows", n, len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

// CountRecords returns how many records were stored for runID, by outcome.
func (s *Store) CountRecords(ctx context.Context, runID uuid.UUID) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT outcome, count(*) FROM link_records WHERE run_id = $1 GROUP BY outcome`, runID)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func recordRows(runID uuid.UUID, res *result.Result) [][]any {
	rows := make([][]any, 0, len(res.Records)+len(res.Unprocessed))
	for _, rec := range res.Records {
		rows = append(rows, []any{
			runID,
			rec.RawURL,
			nullableString(rec.CanonicalURL),
			rec.Outcome.String(),
			string(rec.Reason),
			nullableInt(rec.StatusCode),
			nullableString(string(rec.ErrorCategory)),
			nullableString(rec.Error),
			nullableString(rec.ResolveError),
			rec.Worker,
			rec.Elapsed.Milliseconds(),
		})
	}
	for _, raw := range res.Unprocessed {
		rows = append(rows, []any{
			runID, raw, nil, result.OutcomeUnresolved.String(), string(result.ReasonNotChecked),
			nil, nil, nil, nil, -1, int64(0),
		})
	}
	return rows
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}

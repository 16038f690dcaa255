package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("db: run not found")

// Run is one exploration or fastest path attempt.
type Run struct {
	ID           string     `json:"run_id"`
	Source       string     `json:"source"`
	ConfigJSON   string     `json:"config_json"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Outcome      string     `json:"outcome,omitempty"`
	Coverage     float64    `json:"coverage"`
	Steps        int        `json:"steps"`
	Unreachable  int        `json:"unreachable"`
	LapCompleted bool       `json:"lap_completed"`
}

// RunSummary is what a finished run reports back.
type RunSummary struct {
	Outcome      string
	Coverage     float64
	Steps        int
	Unreachable  int
	LapCompleted bool
}

// CreateRun starts a run record. source names the sensing backend
// ("simulation", "hardware", "replay").
func (db *DB) CreateRun(ctx context.Context, source, configJSON string) (*Run, error) {
	if configJSON == "" {
		configJSON = "{}"
	}
	run := &Run{
		ID:         uuid.NewString(),
		Source:     source,
		ConfigJSON: configJSON,
		StartedAt:  time.Now().UTC(),
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, source, config_json, started_unix) VALUES (?, ?, ?, ?)`,
		run.ID, run.Source, run.ConfigJSON, unixSeconds(run.StartedAt))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun records how a run ended.
func (db *DB) FinishRun(ctx context.Context, id string, s RunSummary) error {
	res, err := db.ExecContext(ctx, `
		UPDATE runs SET finished_unix = ?, outcome = ?, coverage = ?, steps = ?,
			unreachable = ?, lap_completed = ?
		WHERE run_id = ?`,
		unixSeconds(time.Now()), s.Outcome, s.Coverage, s.Steps, s.Unreachable, s.LapCompleted, id)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `run_id, source, config_json, started_unix, finished_unix, outcome,
	coverage, steps, unreachable, lap_completed`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*Run, error) {
	var (
		r        Run
		started  float64
		finished sql.NullFloat64
		outcome  sql.NullString
	)
	if err := s.Scan(&r.ID, &r.Source, &r.ConfigJSON, &started, &finished, &outcome,
		&r.Coverage, &r.Steps, &r.Unreachable, &r.LapCompleted); err != nil {
		return nil, err
	}
	r.StartedAt = fromUnixSeconds(started)
	if finished.Valid {
		t := fromUnixSeconds(finished.Float64)
		r.FinishedAt = &t
	}
	r.Outcome = outcome.String
	return &r, nil
}

// GetRun returns one run.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// Runs lists the most recent runs first. limit <= 0 returns all of them.
func (db *DB) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_unix DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run with its snapshots and trajectory.
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9)).UTC()
}

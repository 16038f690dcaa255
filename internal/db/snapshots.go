package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/mdf"
)

// MapSnapshot is the map as saved at one phase boundary.
type MapSnapshot struct {
	ID       int64           `json:"snapshot_id"`
	RunID    string          `json:"run_id"`
	Reason   string          `json:"reason"`
	TakenAt  time.Time       `json:"taken_at"`
	Map      arena.Snapshot  `json:"-"`
	MDF      mdf.Descriptors `json:"mdf"`
	Coverage float64         `json:"coverage"`
}

// InsertSnapshot stores snap with its descriptors.
func (db *DB) InsertSnapshot(ctx context.Context, runID, reason string, snap arena.Snapshot) (int64, error) {
	d := mdf.Encode(&snap)
	res, err := db.ExecContext(ctx, `
		INSERT INTO map_snapshots (run_id, reason, taken_unix, map_text, explored_mdf, obstacles_mdf, coverage)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, reason, unixSeconds(time.Now()), arena.FormatMap(&snap), d.Explored, d.Obstacles, snap.CoverageRatio())
	if err != nil {
		return 0, fmt.Errorf("insert snapshot for run %s: %w", runID, err)
	}
	return res.LastInsertId()
}

// Snapshots returns a run's snapshots oldest first.
func (db *DB) Snapshots(ctx context.Context, runID string) ([]MapSnapshot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT snapshot_id, run_id, reason, taken_unix, map_text, explored_mdf, obstacles_mdf, coverage
		FROM map_snapshots WHERE run_id = ? ORDER BY snapshot_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MapSnapshot
	for rows.Next() {
		var (
			s     MapSnapshot
			taken float64
			text  string
		)
		if err := rows.Scan(&s.ID, &s.RunID, &s.Reason, &taken, &text,
			&s.MDF.Explored, &s.MDF.Obstacles, &s.Coverage); err != nil {
			return nil, err
		}
		s.TakenAt = fromUnixSeconds(taken)
		if s.Map, err = arena.ParseMap(strings.NewReader(text)); err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the most recent snapshot of a run.
func (db *DB) LatestSnapshot(ctx context.Context, runID string) (*MapSnapshot, error) {
	snaps, err := db.Snapshots(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: no snapshots for %s", ErrRunNotFound, runID)
	}
	return &snaps[len(snaps)-1], nil
}

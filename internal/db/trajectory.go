package db

import (
	"context"
	"fmt"

	"github.com/banshee-data/maze.explorer/internal/arena"
)

// TrajectoryPoint is the robot state after one primitive.
type TrajectoryPoint struct {
	Seq       int        `json:"seq"`
	Phase     string     `json:"phase"`
	Primitive string     `json:"primitive,omitempty"`
	Pose      arena.Pose `json:"pose"`
	Coverage  float64    `json:"coverage"`
}

// AppendTrajectory stores points for a run. Points with a sequence number
// already stored are replaced.
func (db *DB) AppendTrajectory(ctx context.Context, runID string, pts ...TrajectoryPoint) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO trajectory (run_id, seq, phase, primitive, cell_row, cell_col, heading, coverage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pts {
		if _, err := stmt.ExecContext(ctx, runID, p.Seq, p.Phase, p.Primitive,
			p.Pose.Pos.Row, p.Pose.Pos.Col, int(p.Pose.Heading), p.Coverage); err != nil {
			return fmt.Errorf("insert trajectory %s/%d: %w", runID, p.Seq, err)
		}
	}
	return tx.Commit()
}

// Trajectory returns a run's points in sequence order.
func (db *DB) Trajectory(ctx context.Context, runID string) ([]TrajectoryPoint, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT seq, phase, primitive, cell_row, cell_col, heading, coverage
		FROM trajectory WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrajectoryPoint
	for rows.Next() {
		var (
			p       TrajectoryPoint
			heading int
		)
		if err := rows.Scan(&p.Seq, &p.Phase, &p.Primitive, &p.Pose.Pos.Row, &p.Pose.Pos.Col, &heading, &p.Coverage); err != nil {
			return nil, err
		}
		p.Pose.Heading = arena.Heading(heading)
		out = append(out, p)
	}
	return out, rows.Err()
}

package explore

import (
	"context"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/robot"
)

// followWall keeps a wall on the robot's left until the map is complete or
// the robot is back on its start cell after leaving it.
//
// A wall-following pose sequence on an unchanging map is periodic, so if a
// pose repeats without any unknown cell being resolved in between the robot
// is circling an island that never reaches start; the phase then ends and
// gap filling takes over.
func (e *Engine) followWall(ctx context.Context) error {
	g := e.grid()
	start := e.cfg.Start.Pos
	left := false
	seen := map[arena.Pose]bool{}
	unknown := g.Count(arena.Unknown)

	for !g.Complete() {
		if err := e.wallMove(ctx); err != nil {
			return err
		}
		pose := e.robot.Pose()
		if pose.Pos != start {
			left = true
		} else if left {
			e.lap = true
			monitoring.Logf("explore: lap completed after %d primitives", len(e.steps))
			return e.save(ctx, "lap")
		}

		if n := g.Count(arena.Unknown); n < unknown {
			unknown = n
			clear(seen)
		}
		if seen[pose] {
			monitoring.Logf("explore: wall following is cycling at %s, switching to gap filling", pose)
			return nil
		}
		seen[pose] = true
	}
	return nil
}

// wallMove makes one wall-following decision: turn left if open, else go
// straight, else turn right, else turn around.
func (e *Engine) wallMove(ctx context.Context) error {
	h := e.robot.Pose().Heading
	switch {
	case e.directionClear(h.Left()):
		return e.turnThenAdvance(ctx, robot.Left)
	case e.directionClear(h):
		return e.step(ctx, robot.Forward)
	case e.directionClear(h.Right()):
		return e.turnThenAdvance(ctx, robot.Right)
	default:
		if err := e.step(ctx, robot.Left); err != nil {
			return err
		}
		return e.step(ctx, robot.Left)
	}
}

func (e *Engine) turnThenAdvance(ctx context.Context, turn robot.Primitive) error {
	if err := e.step(ctx, turn); err != nil {
		return err
	}
	if e.directionClear(e.robot.Pose().Heading) {
		return e.step(ctx, robot.Forward)
	}
	return nil
}

// directionClear reports whether the three cells two steps away from the
// robot centre along h are inside the arena and FREE, i.e. the row or
// column the footprint would move into.
func (e *Engine) directionClear(h arena.Heading) bool {
	pose := e.robot.Pose()
	dr, dc := h.Delta()
	edge := pose.Pos.Add(2*dr, 2*dc)
	for _, off := range []int{-1, 0, 1} {
		if !e.grid().IsFree(edge.Add(off*dc, off*dr)) {
			return false
		}
	}
	return true
}

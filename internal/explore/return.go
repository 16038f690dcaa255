package explore

import (
	"context"
	"fmt"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/movement"
	"github.com/banshee-data/maze.explorer/internal/robot"
)

// returnToStart persists the settled map, announces it, drives back to the
// start cell without sensing and turns to the return heading.
func (e *Engine) returnToStart(ctx context.Context) error {
	if err := e.save(ctx, "explored"); err != nil {
		return err
	}
	if err := e.robot.Notify(ctx, robot.EventExplored); err != nil {
		return fmt.Errorf("notify %s: %w", robot.EventExplored, err)
	}

	route, err := e.cfg.Planner.Plan(e.grid(), e.robot.Pose(), e.cfg.Start.Pos)
	if err != nil {
		return fmt.Errorf("plan return to %s: %w", e.cfg.Start.Pos, err)
	}
	plan, err := movement.ForRoute(route)
	if err != nil {
		return err
	}
	monitoring.Logf("explore: returning to %s with %q", e.cfg.Start.Pos, plan.String())
	if err := ctx.Err(); err != nil {
		return err
	}
	err = e.robot.Travel(ctx, plan.Primitives, func(p robot.Primitive, pose arena.Pose) {
		e.record(p, pose)
	})
	if err != nil {
		return err
	}

	for _, p := range movement.Reorient(e.robot.Pose().Heading, e.cfg.ReturnHeading) {
		pose, err := e.robot.ExecuteBlind(ctx, p)
		if err != nil {
			return err
		}
		e.record(p, pose)
	}
	if err := e.robot.Notify(ctx, robot.EventReturned); err != nil {
		return fmt.Errorf("notify %s: %w", robot.EventReturned, err)
	}
	return nil
}

package explore

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/movement"
	"github.com/banshee-data/maze.explorer/internal/planner"
	"github.com/banshee-data/maze.explorer/internal/robot"
)

// lookBack is appended after reaching a far observation point so that the
// sensors sweep back toward the target.
var lookBack = []robot.Primitive{robot.Left, robot.Left, robot.Left}

// Candidates returns the observation points around target whose footprint
// is clear on m. near holds the distance 2 ring followed by the distance 3
// ring; far holds the four diagonal offsets at distance 5.
func Candidates(m arena.Reader, target arena.Position) (near, far []arena.Position) {
	r, c := target.Row, target.Col
	for _, d := range []int{2, 3} {
		for _, i := range []int{-d, d} {
			for _, j := range []int{-1, 0, 1} {
				near = appendClear(near, m, arena.Position{Row: r + i, Col: c + j})
				near = appendClear(near, m, arena.Position{Row: r + j, Col: c + i})
			}
		}
	}
	for _, p := range []arena.Position{
		{Row: r + 1, Col: c - 5},
		{Row: r - 5, Col: c - 1},
		{Row: r - 1, Col: c + 5},
		{Row: r + 5, Col: c + 1},
	} {
		far = appendClear(far, m, p)
	}
	return near, far
}

func appendClear(out []arena.Position, m arena.Reader, p arena.Position) []arena.Position {
	if m.IsClearCenter(p) {
		out = append(out, p)
	}
	return out
}

// fillGaps resolves unknown cells in row-major order. A cell that no
// observation point resolves is recorded as unreachable and not picked
// again; the phase ends when every remaining unknown cell is unreachable.
func (e *Engine) fillGaps(ctx context.Context) error {
	for {
		target, ok := e.grid().FirstUnknown(e.skip)
		if !ok {
			return nil
		}
		resolved, err := e.resolve(ctx, target)
		if err != nil {
			return err
		}
		if !resolved {
			monitoring.Logf("explore: no observation point resolves %s, marking unreachable", target)
			e.skip[target] = true
			e.unreachable = append(e.unreachable, target)
		}
	}
}

func (e *Engine) resolve(ctx context.Context, target arena.Position) (bool, error) {
	near, far := Candidates(e.grid(), target)
	monitoring.Debugf("explore: target %s, %d near and %d far candidates", target, len(near), len(far))
	for _, c := range near {
		done, err := e.visit(ctx, target, c, nil)
		if err != nil || done {
			return done, err
		}
	}
	for _, c := range far {
		done, err := e.visit(ctx, target, c, lookBack)
		if err != nil || done {
			return done, err
		}
	}
	return e.known(target), nil
}

// visit drives to candidate, sensing after every primitive, and stops as
// soon as target is known. A candidate the planner cannot reach is skipped.
func (e *Engine) visit(ctx context.Context, target, candidate arena.Position, after []robot.Primitive) (bool, error) {
	route, err := e.cfg.Planner.Plan(e.grid(), e.robot.Pose(), candidate)
	switch {
	case err == nil:
	case errors.Is(err, planner.ErrNoPathFound), errors.Is(err, arena.ErrInvalidCoordinate):
		monitoring.Debugf("explore: skipping candidate %s for %s: %v", candidate, target, err)
		return false, nil
	default:
		return false, fmt.Errorf("plan to %s: %w", candidate, err)
	}
	plan, err := movement.ForRoute(route)
	if err != nil {
		return false, err
	}
	ps := make([]robot.Primitive, 0, len(plan.Primitives)+len(after))
	ps = append(append(ps, plan.Primitives...), after...)
	for _, p := range ps {
		if err := e.step(ctx, p); err != nil {
			return false, err
		}
		if e.known(target) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) known(p arena.Position) bool {
	st, err := e.grid().Get(p)
	return err == nil && st != arena.Unknown
}

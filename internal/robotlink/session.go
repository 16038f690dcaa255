package robotlink

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
)

// Handlers are the actions an operator can trigger.
type Handlers struct {
	// Explore runs an exploration from start. Sensor frames for the run are
	// read from the same link.
	Explore func(ctx context.Context, start arena.Position) error
	// Fastest drives the fastest path from START to GOAL, through waypoint
	// when one was set.
	Fastest func(ctx context.Context, waypoint *arena.Position) error
}

// Serve dispatches operator commands until ctx is done or the link closes.
// StartPoint begins an exploration, WayPoint remembers a waypoint for the
// next FSP. Malformed commands and failed runs are logged and the session
// carries on. Returns nil on cancellation.
func (l *Link) Serve(ctx context.Context, h Handlers) error {
	var waypoint *arena.Position
	for {
		cmd, err := l.NextCommand(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrBadCommand), errors.Is(err, arena.ErrInvalidCoordinate):
			monitoring.Logf("robotlink: %v", err)
			continue
		default:
			return err
		}

		monitoring.Logf("robotlink: operator %s %s", cmd.Kind, cmd.Pos)
		switch cmd.Kind {
		case CommandStartPoint:
			err = run(ctx, "explore", h.Explore != nil, func() error { return h.Explore(ctx, cmd.Pos) })
		case CommandWayPoint:
			wp := cmd.Pos
			waypoint = &wp
		case CommandFastestPath:
			err = run(ctx, "fastest path", h.Fastest != nil, func() error { return h.Fastest(ctx, waypoint) })
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// run invokes fn and absorbs its failure unless the link is gone.
func run(ctx context.Context, name string, ok bool, fn func() error) error {
	if !ok {
		monitoring.Logf("robotlink: no %s handler", name)
		return nil
	}
	err := fn()
	switch {
	case err == nil:
		monitoring.Logf("robotlink: %s finished", name)
		return nil
	case errors.Is(err, ErrLinkClosed), ctx.Err() != nil:
		return fmt.Errorf("%s: %w", name, err)
	}
	monitoring.Logf("robotlink: %s failed: %v", name, err)
	return nil
}

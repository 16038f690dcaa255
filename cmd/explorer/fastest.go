package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/fsutil"
	"github.com/banshee-data/maze.explorer/internal/movement"
	"github.com/banshee-data/maze.explorer/internal/planner"
	"github.com/banshee-data/maze.explorer/internal/robotlink"
	"github.com/banshee-data/maze.explorer/internal/tui"
)

func handleFastest(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("fastest", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	mapPath := fs.String("map", "", "Explored map file (default: the configured output map)")
	waypoint := fs.String("waypoint", "", "Waypoint as row,col")
	goal := fs.String("goal", "", "Goal as row,col")
	policy := fs.String("policy", "", "Cost policy: legacy or manhattan")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	override(&cfg.OutputMap, *mapPath)
	override(&cfg.Policy, *policy)
	if *waypoint != "" {
		if cfg.WayPoint, err = parseCell(*waypoint); err != nil {
			return err
		}
	}
	if *goal != "" {
		if cfg.Goal, err = parseCell(*goal); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	snap, err := arena.LoadMapFile(fsutil.OSFileSystem{}, cfg.GetOutputMap())
	if err != nil {
		return err
	}
	plan, route, err := planFastest(snap, cfg.GetStart(), cfg.GetWayPoint(), cfg.GetGoal(), cfg.GetPolicy())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "policy:     %s\n", cfg.GetPolicy().Name())
	fmt.Fprintf(out, "route:      %d moves, cost %d, %d expansions\n", route.Len(), route.Cost, route.Expanded)
	fmt.Fprintf(out, "primitives: %s\n", plan)
	fmt.Fprintf(out, "command:    %s\n", robotlink.MotionLine(plan.Primitives))
	final := arena.Pose{Pos: route.Goal, Heading: plan.Final}
	fmt.Fprintln(out, tui.RenderMap(&snap, &final))
	return ctx.Err()
}

// planFastest plans from start to goal on snap, through waypoint when set.
func planFastest(snap arena.Snapshot, start arena.Pose, waypoint *arena.Position, goal arena.Position, policy planner.Policy) (*movement.Plan, *planner.Route, error) {
	grid := arena.NewGridFrom(snap)
	pl := planner.New(planner.WithPolicy(policy))

	var (
		route *planner.Route
		err   error
	)
	if waypoint != nil {
		route, err = pl.PlanVia(grid, start, *waypoint, goal)
	} else {
		route, err = pl.Plan(grid, start, goal)
	}
	if err != nil {
		return nil, nil, err
	}
	plan, err := movement.ForRoute(route)
	if err != nil {
		return nil, nil, err
	}
	return plan, route, nil
}

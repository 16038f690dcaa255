package planner

import (
	"errors"
	"fmt"

	"github.com/banshee-data/maze.explorer/internal/arena"
)

var ErrNoPathFound = errors.New("planner: no path found")

// Route is a planned path. Cells starts with the start cell; Steps[i] is the
// heading of the move from Cells[i] to Cells[i+1].
type Route struct {
	Start    arena.Pose
	Goal     arena.Position
	Cells    []arena.Position
	Steps    []arena.Heading
	Final    arena.Heading
	Cost     int
	Expanded int
}

// Len is the number of forward moves in the route.
func (r *Route) Len() int { return len(r.Steps) }

// Planner runs A* searches. A Planner holds no per-search state and may be
// reused.
type Planner struct {
	policy Policy
}

// Option configures a Planner.
type Option func(*Planner)

// WithPolicy selects the cost policy. The default is Legacy.
func WithPolicy(p Policy) Option {
	return func(pl *Planner) {
		if p != nil {
			pl.policy = p
		}
	}
}

// New returns a Planner.
func New(opts ...Option) *Planner {
	pl := &Planner{policy: Legacy}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Policy returns the active cost policy.
func (pl *Planner) Policy() Policy { return pl.policy }

// Plan finds a route on m from start to goal.
func (pl *Planner) Plan(m arena.Reader, start arena.Pose, goal arena.Position) (*Route, error) {
	if !start.Pos.InBounds() {
		return nil, fmt.Errorf("%w: start %s", arena.ErrInvalidCoordinate, start.Pos)
	}
	if !goal.InBounds() {
		return nil, fmt.Errorf("%w: goal %s", arena.ErrInvalidCoordinate, goal)
	}
	if !start.Heading.Valid() {
		return nil, fmt.Errorf("planner: invalid start heading %d", start.Heading)
	}
	if !m.IsClearCenter(start.Pos) {
		return nil, fmt.Errorf("%w: start %s is not clear", arena.ErrInvalidCoordinate, start.Pos)
	}

	s := &search{m: m, policy: pl.policy, initial: start.Heading, goal: goal}
	cells, cost, err := s.run(start.Pos)
	if err != nil {
		return nil, fmt.Errorf("%w: %s to %s after %d expansions", err, start.Pos, goal, s.expanded)
	}

	route := &Route{
		Start:    start,
		Goal:     goal,
		Cells:    cells,
		Steps:    make([]arena.Heading, 0, len(cells)-1),
		Final:    start.Heading,
		Cost:     cost,
		Expanded: s.expanded,
	}
	for i := 1; i < len(cells); i++ {
		route.Final = HeadingBetween(cells[i-1], cells[i])
		route.Steps = append(route.Steps, route.Final)
	}
	return route, nil
}

// PlanVia plans start to waypoint, then waypoint to goal starting with the
// first leg's final heading, and joins the legs.
func (pl *Planner) PlanVia(m arena.Reader, start arena.Pose, waypoint, goal arena.Position) (*Route, error) {
	first, err := pl.Plan(m, start, waypoint)
	if err != nil {
		return nil, fmt.Errorf("leg to waypoint: %w", err)
	}
	second, err := pl.Plan(m, arena.Pose{Pos: waypoint, Heading: first.Final}, goal)
	if err != nil {
		return nil, fmt.Errorf("leg to goal: %w", err)
	}
	return &Route{
		Start:    start,
		Goal:     goal,
		Cells:    append(append([]arena.Position(nil), first.Cells...), second.Cells[1:]...),
		Steps:    append(append([]arena.Heading(nil), first.Steps...), second.Steps...),
		Final:    second.Final,
		Cost:     first.Cost + second.Cost,
		Expanded: first.Expanded + second.Expanded,
	}, nil
}

// HeadingBetween classifies the move from prev to cur. Rows increase to the
// SOUTH and columns increase to the EAST; a non-move reads as NORTH.
func HeadingBetween(prev, cur arena.Position) arena.Heading {
	switch {
	case prev.Row < cur.Row:
		return arena.South
	case prev.Col < cur.Col:
		return arena.East
	case prev.Col > cur.Col:
		return arena.West
	default:
		return arena.North
	}
}

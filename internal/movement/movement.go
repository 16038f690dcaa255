// Package movement converts planned cell paths into L/R/F primitives that
// respect the robot's current heading.
package movement

import (
	"errors"
	"fmt"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/planner"
	"github.com/banshee-data/maze.explorer/internal/robot"
)

var ErrNonAdjacentStep = errors.New("movement: non-adjacent step")

const (
	l = robot.Left
	r = robot.Right
	f = robot.Forward
)

// turns[target][current] is the primitive sequence that leaves the robot one
// cell further along target. Reversals always turn right twice.
var turns = [5][5][]robot.Primitive{
	arena.South: {
		arena.North: {r, r, f},
		arena.East:  {r, f},
		arena.South: {f},
		arena.West:  {l, f},
	},
	arena.West: {
		arena.North: {l, f},
		arena.East:  {r, r, f},
		arena.South: {r, f},
		arena.West:  {f},
	},
	arena.East: {
		arena.North: {r, f},
		arena.East:  {f},
		arena.South: {l, f},
		arena.West:  {r, r, f},
	},
	arena.North: {
		arena.North: {f},
		arena.East:  {l, f},
		arena.South: {r, r, f},
		arena.West:  {r, f},
	},
}

// Frame records where the robot is and which way it faces after one
// primitive. Frames drive dashboard animation only.
type Frame struct {
	Pos     arena.Position `json:"pos"`
	Heading arena.Heading  `json:"heading"`
}

// Plan is a synthesised primitive sequence with one Frame per primitive.
type Plan struct {
	Primitives []robot.Primitive
	Frames     []Frame
	Final      arena.Heading
}

// String renders the primitives, e.g. "RFFLF".
func (p *Plan) String() string { return robot.FormatPrimitives(p.Primitives) }

// Synthesize walks cells from start and emits the rotations and forward
// moves that follow them. Cells equal to the robot's current cell are
// skipped, so a path that begins at start.Pos is accepted as is.
func Synthesize(start arena.Pose, cells []arena.Position) (*Plan, error) {
	plan := &Plan{Final: start.Heading}
	if !start.Heading.Valid() {
		return nil, fmt.Errorf("movement: invalid heading %d", start.Heading)
	}
	cur := start.Pos
	heading := start.Heading
	for i, next := range cells {
		if next == cur {
			continue
		}
		dr, dc := next.Row-cur.Row, next.Col-cur.Col
		if abs(dr)+abs(dc) != 1 {
			return nil, fmt.Errorf("%w: %s to %s at index %d", ErrNonAdjacentStep, cur, next, i)
		}
		target := planner.HeadingBetween(cur, next)
		for _, p := range turns[target][heading] {
			switch p {
			case robot.Left:
				heading = heading.Left()
				plan.Frames = append(plan.Frames, Frame{Pos: cur, Heading: heading})
			case robot.Right:
				heading = heading.Right()
				plan.Frames = append(plan.Frames, Frame{Pos: cur, Heading: heading})
			case robot.Forward:
				plan.Frames = append(plan.Frames, Frame{Pos: next, Heading: target})
			}
			plan.Primitives = append(plan.Primitives, p)
		}
		heading = target
		cur = next
	}
	plan.Final = heading
	return plan, nil
}

// ForRoute synthesises the primitives for a planned route.
func ForRoute(route *planner.Route) (*Plan, error) {
	return Synthesize(route.Start, route.Cells)
}

// Reorient returns the rotations that turn from to face to in place,
// preferring a single turn and using two lefts for a reversal.
func Reorient(from, to arena.Heading) []robot.Primitive {
	switch to {
	case from:
		return nil
	case from.Left():
		return []robot.Primitive{l}
	case from.Right():
		return []robot.Primitive{r}
	default:
		return []robot.Primitive{l, l}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

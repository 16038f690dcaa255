// Package robot holds the robot's pose and applies primitives to it, marking
// the 3x3 footprint free as it moves and refreshing the map through a sensing
// backend.
package robot

import (
	"fmt"

	"github.com/banshee-data/maze.explorer/internal/arena"
)

// State is the robot pose bound to the map it mutates. Forward moves are not
// checked for clearance; callers only issue them into known-clear cells.
type State struct {
	pose arena.Pose
	grid *arena.Grid
}

// NewState places the robot at start and marks its footprint FREE.
func NewState(grid *arena.Grid, start arena.Pose) *State {
	grid.MarkFootprintFree(start.Pos)
	return &State{pose: start, grid: grid}
}

func (s *State) Pose() arena.Pose { return s.pose }

func (s *State) Grid() *arena.Grid { return s.grid }

func (s *State) RotateLeft() { s.pose.Heading = s.pose.Heading.Left() }

func (s *State) RotateRight() { s.pose.Heading = s.pose.Heading.Right() }

// MoveForward advances one cell along the heading and clears the footprint.
func (s *State) MoveForward() {
	s.pose.Pos = s.pose.Pos.Step(s.pose.Heading)
	s.grid.MarkFootprintFree(s.pose.Pos)
}

// Apply performs p on the pose.
func (s *State) Apply(p Primitive) error {
	switch p {
	case Left:
		s.RotateLeft()
	case Right:
		s.RotateRight()
	case Forward:
		s.MoveForward()
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPrimitive, byte(p))
	}
	return nil
}

// Simulate applies ps to pose without touching any map and returns every
// intermediate pose, one per primitive.
func Simulate(pose arena.Pose, ps []Primitive) ([]arena.Pose, error) {
	out := make([]arena.Pose, 0, len(ps))
	for _, p := range ps {
		switch p {
		case Left:
			pose.Heading = pose.Heading.Left()
		case Right:
			pose.Heading = pose.Heading.Right()
		case Forward:
			pose.Pos = pose.Pos.Step(pose.Heading)
		default:
			return out, fmt.Errorf("%w: %q", ErrInvalidPrimitive, byte(p))
		}
		out = append(out, pose)
	}
	return out, nil
}

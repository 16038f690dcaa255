// Package sensing turns the robot's six infrared rays into map updates.
//
// Ray geometry is expressed once in the robot frame (cells forward, cells to
// the right) and rotated by heading, so the simulated and hardware backends
// always agree on which cells a sensor covers.
package sensing

import "github.com/banshee-data/maze.explorer/internal/arena"

// Sensor indexes the six rays in the order the controller reports them,
// clockwise from front left.
type Sensor int

const (
	FrontLeft Sensor = iota
	FrontCenter
	FrontRight
	RightLong
	LeftRear
	LeftFront

	NumSensors = 6
)

func (s Sensor) String() string {
	switch s {
	case FrontLeft:
		return "FL"
	case FrontCenter:
		return "FC"
	case FrontRight:
		return "FR"
	case RightLong:
		return "RT"
	case LeftRear:
		return "LB"
	case LeftFront:
		return "LT"
	}
	return "?"
}

const (
	ShortRange = 2
	LongRange  = 4
)

// offset is a cell relative to the robot centre: fwd cells along the heading,
// side cells to the right (negative is left).
type offset struct{ fwd, side int }

// rays holds each sensor's cells nearest first.
var rays = [NumSensors][]offset{
	FrontLeft:   {{2, -1}, {3, -1}},
	FrontCenter: {{2, 0}, {3, 0}},
	FrontRight:  {{2, 1}, {3, 1}},
	RightLong:   {{1, 2}, {1, 3}, {1, 4}, {1, 5}},
	LeftRear:    {{-1, -2}, {-1, -3}},
	LeftFront:   {{1, -2}, {1, -3}},
}

// RayLength returns the number of cells sensor s covers.
func RayLength(s Sensor) int { return len(rays[s]) }

// RayCells returns, for every sensor, the cells it covers from pose, nearest
// first. Cells may lie outside the grid; callers skip those.
func RayCells(pose arena.Pose) [NumSensors][]arena.Position {
	fr, fc := pose.Heading.Delta()
	rr, rc := pose.Heading.Right().Delta()
	var out [NumSensors][]arena.Position
	for s, ray := range rays {
		cells := make([]arena.Position, len(ray))
		for i, o := range ray {
			cells[i] = pose.Pos.Add(o.fwd*fr+o.side*rr, o.fwd*fc+o.side*rc)
		}
		out[s] = cells
	}
	return out
}

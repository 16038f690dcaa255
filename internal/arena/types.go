package arena

import (
	"fmt"
	"strings"
)

const (
	Rows      = 20
	Cols      = 15
	CellCount = Rows * Cols
)

// CellState is the knowledge held about one cell. The numeric values are the
// characters used in map files.
type CellState uint8

const (
	Unknown CellState = iota
	Free
	Obstacle
)

func (s CellState) Valid() bool { return s <= Obstacle }

func (s CellState) String() string {
	switch s {
	case Unknown:
		return "UNKNOWN"
	case Free:
		return "FREE"
	case Obstacle:
		return "OBSTACLE"
	}
	return fmt.Sprintf("CellState(%d)", uint8(s))
}

// Heading is the compass direction the robot faces. Values match the robot
// controller protocol.
type Heading int

const (
	North Heading = iota + 1
	East
	South
	West
)

// Headings lists every heading in clockwise order from NORTH.
var Headings = [4]Heading{North, East, South, West}

func (h Heading) Valid() bool { return h >= North && h <= West }

// Right is the heading after one clockwise rotation.
func (h Heading) Right() Heading { return h%4 + 1 }

// Left is the heading after one counter-clockwise rotation.
func (h Heading) Left() Heading { return (h+2)%4 + 1 }

// Reverse is the opposite heading.
func (h Heading) Reverse() Heading { return (h+1)%4 + 1 }

// Delta returns the row and column change of one forward step.
func (h Heading) Delta() (dr, dc int) {
	switch h {
	case North:
		return -1, 0
	case East:
		return 0, 1
	case South:
		return 1, 0
	case West:
		return 0, -1
	}
	return 0, 0
}

func (h Heading) String() string {
	switch h {
	case North:
		return "NORTH"
	case East:
		return "EAST"
	case South:
		return "SOUTH"
	case West:
		return "WEST"
	}
	return fmt.Sprintf("Heading(%d)", int(h))
}

// ParseHeading accepts full names or single letters, case-insensitively.
func ParseHeading(s string) (Heading, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "N", "NORTH":
		return North, nil
	case "E", "EAST":
		return East, nil
	case "S", "SOUTH":
		return South, nil
	case "W", "WEST":
		return West, nil
	}
	return 0, fmt.Errorf("arena: unknown heading %q", s)
}

// Position is a (row, col) cell coordinate.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

var (
	// Start is the centre of the start zone.
	Start = Position{Row: 18, Col: 1}
	// Goal is the centre of the goal zone.
	Goal = Position{Row: 1, Col: 13}
)

func (p Position) InBounds() bool {
	return p.Row >= 0 && p.Row < Rows && p.Col >= 0 && p.Col < Cols
}

func (p Position) Add(dr, dc int) Position {
	return Position{Row: p.Row + dr, Col: p.Col + dc}
}

// Step returns the neighbouring position one cell along h.
func (p Position) Step(h Heading) Position {
	dr, dc := h.Delta()
	return p.Add(dr, dc)
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.Row, p.Col) }

// Pose is a position plus heading.
type Pose struct {
	Pos     Position `json:"pos"`
	Heading Heading  `json:"heading"`
}

// Head is the cell just in front of the robot centre, used by the dashboard
// to draw orientation.
func (p Pose) Head() Position { return p.Pos.Step(p.Heading) }

func (p Pose) String() string { return fmt.Sprintf("%s %s", p.Pos, p.Heading) }

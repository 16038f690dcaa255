package arena

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCoordinate = errors.New("arena: invalid coordinate")
	ErrInvalidCellState  = errors.New("arena: invalid cell state")
)

// Reader is the read side of a map, satisfied by both the live Grid and
// Snapshot.
type Reader interface {
	Get(p Position) (CellState, error)
	IsClearCenter(p Position) bool
}

// Snapshot is an immutable copy of the grid, row 0 first.
type Snapshot [Rows][Cols]CellState

// Get returns the state of p or ErrInvalidCoordinate when p is off the grid.
func (s *Snapshot) Get(p Position) (CellState, error) {
	if !p.InBounds() {
		return Unknown, fmt.Errorf("%w: %s", ErrInvalidCoordinate, p)
	}
	return s[p.Row][p.Col], nil
}

// IsFree reports whether p is on the grid and FREE.
func (s *Snapshot) IsFree(p Position) bool {
	return p.InBounds() && s[p.Row][p.Col] == Free
}

// IsClearCenter reports whether the 3x3 neighbourhood around p is in bounds
// and entirely FREE.
func (s *Snapshot) IsClearCenter(p Position) bool {
	if p.Row < 1 || p.Row > Rows-2 || p.Col < 1 || p.Col > Cols-2 {
		return false
	}
	for r := p.Row - 1; r <= p.Row+1; r++ {
		for c := p.Col - 1; c <= p.Col+1; c++ {
			if s[r][c] != Free {
				return false
			}
		}
	}
	return true
}

// Count returns the number of cells in state st.
func (s *Snapshot) Count(st CellState) int {
	n := 0
	for r := range s {
		for c := range s[r] {
			if s[r][c] == st {
				n++
			}
		}
	}
	return n
}

// CoverageRatio is the fraction of cells that are no longer UNKNOWN.
func (s *Snapshot) CoverageRatio() float64 {
	return float64(CellCount-s.Count(Unknown)) / CellCount
}

// Complete reports whether no UNKNOWN cells remain.
func (s *Snapshot) Complete() bool { return s.Count(Unknown) == 0 }

// FirstUnknown returns the first UNKNOWN cell in row-major order that is not
// in skip.
func (s *Snapshot) FirstUnknown(skip map[Position]bool) (Position, bool) {
	for r := range s {
		for c := range s[r] {
			p := Position{Row: r, Col: c}
			if s[r][c] == Unknown && !skip[p] {
				return p, true
			}
		}
	}
	return Position{}, false
}

// Grid is the live occupancy map. It is owned by a single exploration run;
// everything else observes it through Snapshot.
type Grid struct {
	cells Snapshot
}

// NewGrid returns a grid with every cell UNKNOWN.
func NewGrid() *Grid { return &Grid{} }

// NewGridFrom returns a grid initialised from s.
func NewGridFrom(s Snapshot) *Grid { return &Grid{cells: s} }

func (g *Grid) Get(p Position) (CellState, error) { return g.cells.Get(p) }

// Set overwrites the state of p.
func (g *Grid) Set(p Position, st CellState) error {
	if !p.InBounds() {
		return fmt.Errorf("%w: %s", ErrInvalidCoordinate, p)
	}
	if !st.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidCellState, st)
	}
	g.cells[p.Row][p.Col] = st
	return nil
}

func (g *Grid) IsFree(p Position) bool { return g.cells.IsFree(p) }

func (g *Grid) IsClearCenter(p Position) bool { return g.cells.IsClearCenter(p) }

// MarkFootprintFree sets the in-bounds part of the 3x3 neighbourhood around p
// to FREE regardless of its previous state.
func (g *Grid) MarkFootprintFree(p Position) {
	for r := p.Row - 1; r <= p.Row+1; r++ {
		for c := p.Col - 1; c <= p.Col+1; c++ {
			if (Position{Row: r, Col: c}).InBounds() {
				g.cells[r][c] = Free
			}
		}
	}
}

func (g *Grid) Count(st CellState) int { return g.cells.Count(st) }

func (g *Grid) CoverageRatio() float64 { return g.cells.CoverageRatio() }

func (g *Grid) Complete() bool { return g.cells.Complete() }

func (g *Grid) FirstUnknown(skip map[Position]bool) (Position, bool) {
	return g.cells.FirstUnknown(skip)
}

// Snapshot returns a copy of the current cells.
func (g *Grid) Snapshot() Snapshot { return g.cells }

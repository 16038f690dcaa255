// Package plot renders run results: PNG figures with gonum/plot for reports
// and HTML charts with go-echarts for the dashboard.
package plot

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
)

// MapMatrix returns the cell states of s as a Rows x Cols matrix
// (0 unknown, 1 free, 2 obstacle).
func MapMatrix(s *arena.Snapshot) *mat.Dense {
	m := mat.NewDense(arena.Rows, arena.Cols, nil)
	for r := 0; r < arena.Rows; r++ {
		for c := 0; c < arena.Cols; c++ {
			m.Set(r, c, float64(s[r][c]))
		}
	}
	return m
}

// VisitMatrix counts, per cell, how many frames left the robot centred there.
func VisitMatrix(frames []telemetry.Frame) *mat.Dense {
	m := mat.NewDense(arena.Rows, arena.Cols, nil)
	for _, f := range frames {
		p := f.Pose.Pos
		if !p.InBounds() {
			continue
		}
		m.Set(p.Row, p.Col, m.At(p.Row, p.Col)+1)
	}
	return m
}

// cellGrid adapts a matrix to plotter.GridXYZ. Row 0 is drawn at the top so
// the picture matches the arena's printed layout.
type cellGrid struct {
	m *mat.Dense
}

func (g cellGrid) Dims() (c, r int) {
	rows, cols := g.m.Dims()
	return cols, rows
}

func (g cellGrid) Z(c, r int) float64 {
	rows, _ := g.m.Dims()
	return g.m.At(rows-1-r, c)
}

func (g cellGrid) X(c int) float64 { return float64(c) }

func (g cellGrid) Y(r int) float64 { return float64(r) }

// plotY converts an arena row to the y coordinate used by cellGrid.
func plotY(row int) float64 { return float64(arena.Rows - 1 - row) }

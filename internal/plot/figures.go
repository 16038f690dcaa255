package plot

import (
	"bytes"
	"fmt"
	"image/color"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/fsutil"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
)

var phaseColors = map[string]color.RGBA{
	"wall":   {R: 31, G: 119, B: 180, A: 255},
	"fill":   {R: 255, G: 127, B: 14, A: 255},
	"return": {R: 44, G: 160, B: 44, A: 255},
	"done":   {R: 127, G: 127, B: 127, A: 255},
}

// CoveragePlot draws explored percentage against primitive count, one line
// per phase.
func CoveragePlot(frames []telemetry.Frame) (*gplot.Plot, error) {
	p := gplot.New()
	p.Title.Text = "Exploration coverage"
	p.X.Label.Text = "Primitive"
	p.Y.Label.Text = "Explored (%)"
	p.Y.Min, p.Y.Max = 0, 100

	byPhase := map[string]plotter.XYs{}
	for i, f := range frames {
		byPhase[f.Phase] = append(byPhase[f.Phase], plotter.XY{X: float64(i), Y: 100 * f.Coverage})
	}
	phases := make([]string, 0, len(byPhase))
	for ph := range byPhase {
		phases = append(phases, ph)
	}
	sort.Slice(phases, func(a, b int) bool {
		return byPhase[phases[a]][0].X < byPhase[phases[b]][0].X
	})

	for _, ph := range phases {
		line, err := plotter.NewLine(byPhase[ph])
		if err != nil {
			return nil, fmt.Errorf("phase %s: %w", ph, err)
		}
		if c, ok := phaseColors[ph]; ok {
			line.Color = c
		}
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(ph, line)
	}
	p.Legend.Top = false
	p.Legend.Left = false
	p.Add(plotter.NewGrid())
	return p, nil
}

// MapPlot draws the map as a heatmap of cell states with the robot's
// trajectory over it.
func MapPlot(s *arena.Snapshot, frames []telemetry.Frame) (*gplot.Plot, error) {
	p := gplot.New()
	p.Title.Text = fmt.Sprintf("Arena map (%.1f%% explored)", 100*s.CoverageRatio())
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "Row"
	p.HideAxes()

	pal := palette.Heat(3, 1)
	hm := plotter.NewHeatMap(cellGrid{m: MapMatrix(s)}, pal)
	hm.Min, hm.Max = 0, 2
	p.Add(hm)

	if len(frames) > 0 {
		pts := make(plotter.XYs, 0, len(frames))
		for _, f := range frames {
			pts = append(pts, plotter.XY{X: float64(f.Pose.Pos.Col), Y: plotY(f.Pose.Pos.Row)})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		line.Width = vg.Points(2)
		p.Add(line)
	}
	return p, nil
}

// VisitPlot draws how often the robot centre stood in each cell.
func VisitPlot(frames []telemetry.Frame) *gplot.Plot {
	p := gplot.New()
	p.Title.Text = "Robot visits per cell"
	p.HideAxes()
	visits := VisitMatrix(frames)
	hm := plotter.NewHeatMap(cellGrid{m: visits}, palette.Heat(12, 1))
	hm.Min, hm.Max = 0, max(mat.Max(visits), 1)
	p.Add(hm)
	return p
}

// WritePNG renders p as a PNG into fsys at path.
func WritePNG(fsys fsutil.FileSystem, path string, p *gplot.Plot, w, h vg.Length) error {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	return fsys.WriteFile(path, buf.Bytes(), 0o644)
}

// WriteRunPlots writes coverage.png, map.png and visits.png into dir and
// returns their paths.
func WriteRunPlots(fsys fsutil.FileSystem, dir string, s *arena.Snapshot, frames []telemetry.Frame) ([]string, error) {
	cov, err := CoveragePlot(frames)
	if err != nil {
		return nil, err
	}
	m, err := MapPlot(s, frames)
	if err != nil {
		return nil, err
	}
	figures := []struct {
		name string
		p    *gplot.Plot
		w, h vg.Length
	}{
		{"coverage.png", cov, 8 * vg.Inch, 4 * vg.Inch},
		{"map.png", m, 6 * vg.Inch, 8 * vg.Inch},
		{"visits.png", VisitPlot(frames), 6 * vg.Inch, 8 * vg.Inch},
	}
	paths := make([]string, 0, len(figures))
	for _, f := range figures {
		path := filepath.Join(dir, f.name)
		if err := WritePNG(fsys, path, f.p, f.w, f.h); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	monitoring.Logf("plot: wrote %d figures to %s", len(paths), dir)
	return paths, nil
}

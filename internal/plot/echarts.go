package plot

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
)

// DefaultAssetsHost serves the echarts scripts.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var phaseOrder = []string{"wall", "fill", "return", "done"}

// CoverageChart is an interactive line chart of explored percentage, one
// series per phase.
func CoverageChart(frames []telemetry.Frame, assetsHost string) *charts.Line {
	xs := make([]string, len(frames))
	series := map[string][]opts.LineData{}
	for _, ph := range phaseOrder {
		series[ph] = make([]opts.LineData, len(frames))
	}
	for i, f := range frames {
		xs[i] = strconv.Itoa(i)
		if _, ok := series[f.Phase]; !ok {
			continue
		}
		series[f.Phase][i] = opts.LineData{Value: 100 * f.Coverage}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Coverage", Width: "100%", Height: "480px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Exploration coverage", Subtitle: fmt.Sprintf("%d frames", len(frames))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Primitive", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Explored (%)", Min: 0, Max: 100}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xs)
	for _, ph := range phaseOrder {
		if hasValue(series[ph]) {
			line.AddSeries(ph, series[ph])
		}
	}
	return line
}

func hasValue(data []opts.LineData) bool {
	for _, d := range data {
		if d.Value != nil {
			return true
		}
	}
	return false
}

// MapChart draws the map as coloured cells with the robot's path.
func MapChart(s *arena.Snapshot, frames []telemetry.Frame, assetsHost string) *charts.Scatter {
	cells := make([]opts.ScatterData, 0, arena.Rows*arena.Cols)
	for r := 0; r < arena.Rows; r++ {
		for c := 0; c < arena.Cols; c++ {
			cells = append(cells, opts.ScatterData{
				Name:  arena.Position{Row: r, Col: c}.String(),
				Value: []interface{}{c, plotY(r), int(s[r][c])},
			})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Arena map", Width: "600px", Height: "780px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Arena map", Subtitle: fmt.Sprintf("%.1f%% explored", 100*s.CoverageRatio())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -1, Max: arena.Cols, Name: "Column"}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: arena.Rows, Name: "Row"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:      opts.Bool(true),
			Min:       0,
			Max:       2,
			Dimension: "2",
			InRange:   &opts.VisualMapInRange{Color: []string{"#bdbdbd", "#f7f7f7", "#252525"}},
		}),
	)
	scatter.AddSeries("cells", cells, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 24}))

	if len(frames) > 0 {
		path := make([]opts.ScatterData, 0, len(frames))
		for _, f := range frames {
			path = append(path, opts.ScatterData{
				Name:  f.Pose.String(),
				Value: []interface{}{f.Pose.Pos.Col, plotY(f.Pose.Pos.Row)},
			})
		}
		scatter.AddSeries("robot", path, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}
	return scatter
}

// RenderPage writes charts as one HTML page.
func RenderPage(w io.Writer, assetsHost string, cs ...components.Charter) error {
	page := components.NewPage()
	page.SetAssetsHost(assetsHost)
	page.AddCharts(cs...)
	return page.Render(w)
}

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/banshee-data/maze.explorer/internal/arena"
)

var (
	unknownStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	freeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#DDDDDD"))
	obstacleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	robotStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	zoneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
)

var headingGlyph = map[arena.Heading]string{
	arena.North: "^",
	arena.East:  ">",
	arena.South: "v",
	arena.West:  "<",
}

// cellGlyph returns the two-character rendering of a cell.
func cellGlyph(st arena.CellState) string {
	switch st {
	case arena.Free:
		return freeStyle.Render("··")
	case arena.Obstacle:
		return obstacleStyle.Render("██")
	}
	return unknownStyle.Render("??")
}

func inZone(p, centre arena.Position) bool {
	return abs(p.Row-centre.Row) <= 1 && abs(p.Col-centre.Col) <= 1
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// RenderMap draws the map with row 0 on top. When pose is set the robot's
// 3x3 footprint is drawn over it, with its heading at the centre. The start
// and goal zones are marked when unoccupied.
func RenderMap(s *arena.Snapshot, pose *arena.Pose) string {
	var b strings.Builder
	for r := 0; r < arena.Rows; r++ {
		for c := 0; c < arena.Cols; c++ {
			p := arena.Position{Row: r, Col: c}
			switch {
			case pose != nil && p == pose.Pos:
				b.WriteString(robotStyle.Render(headingGlyph[pose.Heading] + headingGlyph[pose.Heading]))
			case pose != nil && inZone(p, pose.Pos):
				b.WriteString(robotStyle.Render("[]"))
			case s[r][c] != arena.Obstacle && (inZone(p, arena.Start) || inZone(p, arena.Goal)):
				b.WriteString(zoneStyle.Render("::"))
			default:
				b.WriteString(cellGlyph(s[r][c]))
			}
		}
		if r < arena.Rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

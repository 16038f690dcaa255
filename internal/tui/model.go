// Package tui shows a run live in the terminal: the map as it fills in, the
// robot's pose and phase, and a coverage bar.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/banshee-data/maze.explorer/internal/explore"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
)

// FrameMsg carries a telemetry frame into the program.
type FrameMsg telemetry.Frame

// DoneMsg ends the run.
type DoneMsg struct {
	Result *explore.Result
	Err    error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7B801"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Model is the bubbletea model of a live run.
type Model struct {
	title    string
	frame    telemetry.Frame
	frames   int
	bar      progress.Model
	done     bool
	result   *explore.Result
	err      error
	cancel   context.CancelFunc
	quitting bool

	// ExitOnDone quits as soon as the run ends instead of waiting for a key.
	ExitOnDone bool
}

// NewModel returns a model titled title. cancel, when set, is called if the
// user quits before the run ends.
func NewModel(title string, cancel context.CancelFunc) Model {
	return Model{
		title:  title,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		cancel: cancel,
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.done && m.cancel != nil {
				m.cancel()
			}
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(60, msg.Width-20))
	case FrameMsg:
		m.frame = telemetry.Frame(msg)
		m.frames++
	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		if msg.Result != nil {
			m.frame.Map = msg.Result.Map
			m.frame.Coverage = msg.Result.Coverage
		}
		if m.ExitOnDone {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	pose := m.frame.Pose
	fmt.Fprintf(&b, "%s %-7s %s %-12s %s %d\n",
		labelStyle.Render("phase"), orDash(m.frame.Phase),
		labelStyle.Render("pose"), pose.String(),
		labelStyle.Render("primitives"), max(m.frames-1, 0))
	b.WriteString(m.bar.ViewAs(m.frame.Coverage))
	b.WriteString("\n\n")

	posePtr := &pose
	if m.frames == 0 {
		posePtr = nil
	}
	b.WriteString(borderStyle.Render(RenderMap(&m.frame.Map, posePtr)))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("run failed: " + m.err.Error()))
		b.WriteString("\n")
	case m.result != nil:
		b.WriteString(doneStyle.Render(summary(m.result)))
		b.WriteString("\n")
	}
	if m.done {
		b.WriteString(labelStyle.Render("q to exit"))
	} else {
		b.WriteString(labelStyle.Render("q to abort"))
	}
	b.WriteString("\n")
	return b.String()
}

// Done reports whether the run finished.
func (m Model) Done() bool { return m.done }

func summary(res *explore.Result) string {
	s := fmt.Sprintf("%s: %d primitives, %.1f%% explored in %s",
		res.Outcome, len(res.Steps), 100*res.Coverage, res.Elapsed.Round(time.Millisecond))
	if n := len(res.Unreachable); n > 0 {
		s += fmt.Sprintf(", %d cells unreachable", n)
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

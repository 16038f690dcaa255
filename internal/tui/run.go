package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/banshee-data/maze.explorer/internal/explore"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
)

// Sink forwards frames into a running program from its own goroutine.
// Publish never waits on the UI; when the UI falls behind, only the newest
// frame is kept.
type Sink struct {
	frames chan telemetry.Frame
	done   chan struct{}
}

// NewSink starts forwarding published frames to send. Close stops it once
// the last frame is delivered.
func NewSink(send func(tea.Msg)) *Sink {
	s := &Sink{frames: make(chan telemetry.Frame, 1), done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for f := range s.frames {
			send(FrameMsg(f))
		}
	}()
	return s
}

func (s *Sink) Publish(f telemetry.Frame) {
	for {
		select {
		case s.frames <- f:
			return
		default:
		}
		select {
		case <-s.frames:
		default:
		}
	}
}

// Close delivers any pending frame and stops the forwarder. Publish must
// not be called afterwards.
func (s *Sink) Close() {
	close(s.frames)
	<-s.done
}

// RunFunc performs a run, publishing frames to sink.
type RunFunc func(ctx context.Context, sink telemetry.Sink) (*explore.Result, error)

// Options configures Run.
type Options struct {
	Title      string
	ExitOnDone bool
	Program    []tea.ProgramOption
}

// Run shows run live until the user quits, or until it ends when
// ExitOnDone is set. Quitting early cancels the run's context.
func Run(ctx context.Context, opts Options, run RunFunc) (*explore.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(opts.Title, cancel)
	m.ExitOnDone = opts.ExitOnDone
	p := tea.NewProgram(m, opts.Program...)

	var (
		res    *explore.Result
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sink := NewSink(p.Send)
		res, runErr = run(ctx, sink)
		sink.Close()
		p.Send(DoneMsg{Result: res, Err: runErr})
	}()

	_, err := p.Run()
	cancel()
	<-done
	if err != nil {
		return res, err
	}
	return res, runErr
}

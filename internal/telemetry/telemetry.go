// Package telemetry fans run frames out to viewers. Sinks are fire and
// forget: Publish never blocks the exploration loop and a slow viewer loses
// frames rather than stalling the robot.
package telemetry

import (
	"sync"

	"github.com/banshee-data/maze.explorer/internal/arena"
)

// Frame is the state after one primitive or map update.
type Frame struct {
	Seq       int            `json:"seq"`
	Phase     string         `json:"phase"`
	Primitive string         `json:"primitive,omitempty"`
	Pose      arena.Pose     `json:"pose"`
	Coverage  float64        `json:"coverage"`
	Map       arena.Snapshot `json:"map"`
}

// Sink receives frames.
type Sink interface {
	Publish(f Frame)
}

// Nop discards every frame.
type Nop struct{}

func (Nop) Publish(Frame) {}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Frame)

func (fn SinkFunc) Publish(f Frame) { fn(f) }

// Multi publishes to each non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return Nop{}
	}
	return out
}

type multi []Sink

func (m multi) Publish(f Frame) {
	for _, s := range m {
		s.Publish(f)
	}
}

// Recorder keeps every frame in memory. The plot and db packages read the
// coverage curve and trajectory from it after a run.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *Recorder) Publish(f Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

// Frames returns a copy of the recorded frames.
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Last returns the most recent frame.
func (r *Recorder) Last() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

// Coverage returns the coverage ratio of every frame in order.
func (r *Recorder) Coverage() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.frames))
	for i, f := range r.frames {
		out[i] = f.Coverage
	}
	return out
}

// Poses returns the robot pose of every frame in order.
func (r *Recorder) Poses() []arena.Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]arena.Pose, len(r.frames))
	for i, f := range r.frames {
		out[i] = f.Pose
	}
	return out
}

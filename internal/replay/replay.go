package replay

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/explore"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/robot"
	"github.com/banshee-data/maze.explorer/internal/robotlink"
	"github.com/banshee-data/maze.explorer/internal/sensing"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
)

// Readings parses every sensor frame the robot sent, in order.
func Readings(lines []Line) ([]sensing.Reading, error) {
	var out []sensing.Reading
	for i, l := range lines {
		if l.Direction != FromRobot || !robotlink.IsSensorFrame(l.Text) {
			continue
		}
		r, err := robotlink.ParseReading(l.Text)
		if err != nil {
			return out, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Primitives decodes every motion command the host sent, in order.
func Primitives(lines []Line) ([]robot.Primitive, error) {
	var out []robot.Primitive
	for i, l := range lines {
		if l.Direction != ToRobot {
			continue
		}
		body, ok := strings.CutPrefix(l.Text, "[a]")
		if !ok || body == "E" || body == "C" || body == "S" {
			continue
		}
		ps, err := robotlink.DecodePrimitives(body)
		if err != nil {
			return out, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, ps...)
	}
	return out, nil
}

// Load extracts the sensor frames from a capture.
func Load(r io.Reader, port uint16) ([]Line, []sensing.Reading, error) {
	lines, err := ExtractLines(r, port)
	if err != nil {
		return nil, nil, err
	}
	rs, err := Readings(lines)
	if err != nil {
		return lines, nil, err
	}
	return lines, rs, nil
}

// Run explores again from recorded readings. The engine consumes one
// reading for the start pose and one per sensed primitive; a capture that
// ends early fails with sensing.ErrNoMoreReadings.
func Run(ctx context.Context, readings []sensing.Reading, cfg explore.Config) (*explore.Result, error) {
	start := cfg.Start
	if !start.Heading.Valid() {
		start = arena.Pose{Pos: arena.Start, Heading: arena.North}
		cfg.Start = start
	}
	src := sensing.NewReadings(readings...)
	r := robot.New(arena.NewGrid(), start, &sensing.Hardware{Source: src})
	res, err := explore.New(r, cfg).Run(ctx)
	if err != nil {
		return res, err
	}
	if n := src.Remaining(); n > 0 {
		monitoring.Logf("replay: %d readings left over", n)
	}
	return res, nil
}

// CaptureSink records a simulated run as link traffic: each primitive as a
// motion command and the frame a controller would report at the new pose.
type CaptureSink struct {
	mu    sync.Mutex
	w     *Writer
	truth arena.Snapshot
	err   error
}

// NewCaptureSink writes to w, sensing against truth.
func NewCaptureSink(w *Writer, truth arena.Snapshot) *CaptureSink {
	return &CaptureSink{w: w, truth: truth}
}

func (s *CaptureSink) Publish(f telemetry.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	ts := nowFunc()
	if f.Primitive != "" {
		if err := s.w.WriteLine(ts, ToRobot, "[a]"+robotlink.EncodePrimitives([]robot.Primitive{robot.Primitive(f.Primitive[0])})); err != nil {
			s.fail(err)
			return
		}
	}
	reading := sensing.ReadingFor(f.Pose, &s.truth)
	if err := s.w.WriteLine(ts, FromRobot, robotlink.FormatReading(reading)); err != nil {
		s.fail(err)
	}
}

func (s *CaptureSink) fail(err error) {
	s.err = err
	monitoring.Logf("replay: capture stopped: %v", err)
}

// Err returns the first write error.
func (s *CaptureSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

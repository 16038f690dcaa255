package robot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/timeutil"
)

type countingBackend struct {
	calls int
	err   error
}

func (b *countingBackend) Sense(context.Context, *arena.Grid, arena.Pose) (int, error) {
	b.calls++
	return 1, b.err
}

type failingDriver struct{ err error }

func (d failingDriver) Drive(context.Context, Primitive) error { return d.err }

func TestParsePrimitives(t *testing.T) {
	t.Parallel()
	ps, err := ParsePrimitives("LFRF")
	require.NoError(t, err)
	assert.Equal(t, []Primitive{Left, Forward, Right, Forward}, ps)
	assert.Equal(t, "LFRF", FormatPrimitives(ps))

	_, err = ParsePrimitives("LXF")
	assert.True(t, errors.Is(err, ErrInvalidPrimitive))
}

func TestStateApply(t *testing.T) {
	t.Parallel()
	g := arena.NewGrid()
	s := NewState(g, arena.Pose{Pos: arena.Start, Heading: arena.North})
	assert.Equal(t, 9, g.Count(arena.Free))

	steps := []struct {
		p    Primitive
		want arena.Pose
	}{
		{Forward, arena.Pose{Pos: arena.Position{Row: 17, Col: 1}, Heading: arena.North}},
		{Right, arena.Pose{Pos: arena.Position{Row: 17, Col: 1}, Heading: arena.East}},
		{Forward, arena.Pose{Pos: arena.Position{Row: 17, Col: 2}, Heading: arena.East}},
		{Right, arena.Pose{Pos: arena.Position{Row: 17, Col: 2}, Heading: arena.South}},
		{Left, arena.Pose{Pos: arena.Position{Row: 17, Col: 2}, Heading: arena.East}},
		{Left, arena.Pose{Pos: arena.Position{Row: 17, Col: 2}, Heading: arena.North}},
		{Left, arena.Pose{Pos: arena.Position{Row: 17, Col: 2}, Heading: arena.West}},
		{Forward, arena.Pose{Pos: arena.Position{Row: 17, Col: 1}, Heading: arena.West}},
	}
	for i, step := range steps {
		require.NoError(t, s.Apply(step.p))
		assert.Equal(t, step.want, s.Pose(), "step %d (%s)", i, step.p)
	}
	assert.True(t, g.IsClearCenter(arena.Position{Row: 17, Col: 2}))
	assert.Error(t, s.Apply(Primitive('X')))
}

func TestSimulateMatchesState(t *testing.T) {
	t.Parallel()
	ps, err := ParsePrimitives("FFRFFLFRRF")
	require.NoError(t, err)
	start := arena.Pose{Pos: arena.Position{Row: 10, Col: 7}, Heading: arena.North}

	poses, err := Simulate(start, ps)
	require.NoError(t, err)
	require.Len(t, poses, len(ps))

	s := NewState(arena.NewGrid(), start)
	for i, p := range ps {
		require.NoError(t, s.Apply(p))
		assert.Equal(t, s.Pose(), poses[i])
	}
}

func TestRobotExecuteSenses(t *testing.T) {
	t.Parallel()
	backend := &countingBackend{}
	rec := &Recorder{}
	r := New(arena.NewGrid(), arena.Pose{Pos: arena.Start, Heading: arena.North}, backend, WithDriver(rec))

	obs, err := r.Execute(context.Background(), Forward)
	require.NoError(t, err)
	assert.Equal(t, arena.Position{Row: 17, Col: 1}, obs.Pose.Pos)
	assert.Equal(t, 1, obs.Updated)
	assert.Equal(t, 1, backend.calls)

	_, err = r.ExecuteBlind(context.Background(), Left)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.calls, "blind execution sensed")
	assert.Equal(t, "FL", rec.Trajectory())
	assert.Equal(t, 2, r.Executed())
}

func TestRobotDriveFailureLeavesPose(t *testing.T) {
	t.Parallel()
	boom := errors.New("link down")
	start := arena.Pose{Pos: arena.Start, Heading: arena.North}
	r := New(arena.NewGrid(), start, nil, WithDriver(failingDriver{err: boom}))

	_, err := r.Execute(context.Background(), Forward)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, start, r.Pose())
	assert.Zero(t, r.Executed())
}

func TestRobotTravelBatches(t *testing.T) {
	t.Parallel()
	rec := BatchRecorder{Recorder: &Recorder{}}
	r := New(arena.NewGrid(), arena.Pose{Pos: arena.Start, Heading: arena.North}, nil, WithDriver(rec))

	var seen []arena.Pose
	var prims []Primitive
	err := r.Travel(context.Background(), []Primitive{Forward, Forward, Right}, func(p Primitive, pose arena.Pose) {
		prims = append(prims, p)
		seen = append(seen, pose)
	})
	require.NoError(t, err)
	want := [][]Primitive{{Forward, Forward, Right}}
	if diff := cmp.Diff(want, rec.Batches()); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, seen, 3)
	assert.Equal(t, "FFR", FormatPrimitives(prims))
	assert.Equal(t, arena.Pose{Pos: arena.Position{Row: 16, Col: 1}, Heading: arena.East}, seen[2])
}

func TestRobotStepDelay(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	r := New(arena.NewGrid(), arena.Pose{Pos: arena.Start, Heading: arena.North}, nil,
		WithStepDelay(clock, 100*time.Millisecond))

	require.NoError(t, r.Travel(context.Background(), []Primitive{Left, Right}, nil))
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, clock.Sleeps())
}

func TestRobotNotify(t *testing.T) {
	t.Parallel()
	rec := &Recorder{}
	r := New(arena.NewGrid(), arena.Pose{Pos: arena.Start, Heading: arena.North}, nil, WithDriver(rec))
	require.NoError(t, r.Notify(context.Background(), EventExplored))
	assert.Equal(t, []Event{EventExplored}, rec.Events())

	quiet := New(arena.NewGrid(), arena.Pose{Pos: arena.Start, Heading: arena.North}, nil)
	assert.NoError(t, quiet.Notify(context.Background(), EventReturned))
}

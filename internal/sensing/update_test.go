package sensing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/maze.explorer/internal/arena"
)

func freeTruth(obstacles ...arena.Position) arena.Snapshot {
	var s arena.Snapshot
	for r := range s {
		for c := range s[r] {
			s[r][c] = arena.Free
		}
	}
	for _, p := range obstacles {
		s[p.Row][p.Col] = arena.Obstacle
	}
	return s
}

func state(t *testing.T, g *arena.Grid, p arena.Position) arena.CellState {
	t.Helper()
	st, err := g.Get(p)
	require.NoError(t, err)
	return st
}

func TestUpdateFromGroundTruthStopsAtObstacle(t *testing.T) {
	t.Parallel()
	truth := freeTruth(pos{Row: 8, Col: 7})
	g := arena.NewGrid()
	pose := arena.Pose{Pos: pos{Row: 10, Col: 7}, Heading: arena.North}

	n := UpdateFromGroundTruth(g, pose, &truth)

	assert.Equal(t, arena.Obstacle, state(t, g, pos{Row: 8, Col: 7}))
	assert.Equal(t, arena.Unknown, state(t, g, pos{Row: 7, Col: 7}), "ray continued past obstacle")
	assert.Equal(t, arena.Free, state(t, g, pos{Row: 7, Col: 6}))
	assert.Equal(t, arena.Free, state(t, g, pos{Row: 9, Col: 12}))
	// 2+1+2+4+2+2 cells seen.
	assert.Equal(t, 13, n)
}

func TestUpdateFromGroundTruthFirstWriteWins(t *testing.T) {
	t.Parallel()
	truth := freeTruth(pos{Row: 7, Col: 6})
	g := arena.NewGrid()
	require.NoError(t, g.Set(pos{Row: 8, Col: 6}, arena.Obstacle))
	pose := arena.Pose{Pos: pos{Row: 10, Col: 7}, Heading: arena.North}

	UpdateFromGroundTruth(g, pose, &truth)
	assert.Equal(t, arena.Obstacle, state(t, g, pos{Row: 8, Col: 6}), "known cell was rewritten")

	// A later pass that sees the same cells changes nothing.
	before := g.Snapshot()
	assert.Zero(t, UpdateFromGroundTruth(g, pose, &truth))
	assert.Equal(t, before, g.Snapshot())
}

func TestUpdateFromGroundTruthMonotonic(t *testing.T) {
	t.Parallel()
	truth := freeTruth(pos{Row: 5, Col: 5}, pos{Row: 12, Col: 9}, pos{Row: 3, Col: 10})
	g := arena.NewGrid()
	poses := []arena.Pose{
		{Pos: pos{Row: 10, Col: 7}, Heading: arena.North},
		{Pos: pos{Row: 10, Col: 7}, Heading: arena.East},
		{Pos: pos{Row: 6, Col: 7}, Heading: arena.West},
		{Pos: pos{Row: 10, Col: 7}, Heading: arena.South},
		{Pos: pos{Row: 4, Col: 8}, Heading: arena.East},
	}
	prev := g.Snapshot()
	for _, pose := range poses {
		UpdateFromGroundTruth(g, pose, &truth)
		cur := g.Snapshot()
		for r := range cur {
			for c := range cur[r] {
				if prev[r][c] != arena.Unknown {
					assert.Equal(t, prev[r][c], cur[r][c], "cell (%d,%d) changed after %s", r, c, pose)
				}
			}
		}
		prev = cur
	}
}

func TestUpdateFromReadings(t *testing.T) {
	t.Parallel()
	g := arena.NewGrid()
	require.NoError(t, g.Set(pos{Row: 8, Col: 7}, arena.Obstacle))
	pose := arena.Pose{Pos: pos{Row: 10, Col: 7}, Heading: arena.North}

	UpdateFromReadings(g, pose, Reading{0, 1, 2, 4, 1, 2})

	assert.Equal(t, arena.Obstacle, state(t, g, pos{Row: 8, Col: 6}))
	assert.Equal(t, arena.Unknown, state(t, g, pos{Row: 7, Col: 6}))
	assert.Equal(t, arena.Free, state(t, g, pos{Row: 8, Col: 7}), "live reading overrides map")
	assert.Equal(t, arena.Obstacle, state(t, g, pos{Row: 7, Col: 7}))
	assert.Equal(t, arena.Free, state(t, g, pos{Row: 7, Col: 8}))
	assert.Equal(t, arena.Free, state(t, g, pos{Row: 9, Col: 12}))
	assert.Equal(t, arena.Free, state(t, g, pos{Row: 11, Col: 5}))
	assert.Equal(t, arena.Obstacle, state(t, g, pos{Row: 11, Col: 4}))
}

func TestUpdateFromReadingsAtEdge(t *testing.T) {
	t.Parallel()
	pose := arena.Pose{Pos: pos{Row: 2, Col: 7}, Heading: arena.North}

	g := arena.NewGrid()
	UpdateFromReadings(g, pose, Reading{2, 1, 2, 4, 2, 2})
	assert.Equal(t, arena.Free, state(t, g, pos{Row: 0, Col: 7}))

	g = arena.NewGrid()
	UpdateFromReadings(g, pose, Reading{2, 0, 2, 4, 2, 2})
	assert.Equal(t, arena.Obstacle, state(t, g, pos{Row: 0, Col: 7}))
}

func TestHardwareBackend(t *testing.T) {
	t.Parallel()
	src := NewReadings(Reading{2, 2, 2, 4, 2, 2})
	b := &Hardware{Source: src}
	g := arena.NewGrid()
	pose := arena.Pose{Pos: pos{Row: 10, Col: 7}, Heading: arena.North}

	n, err := b.Sense(context.Background(), g, pose)
	require.NoError(t, err)
	assert.Equal(t, 14, n)
	assert.Zero(t, src.Remaining())

	_, err = b.Sense(context.Background(), g, pose)
	assert.True(t, errors.Is(err, ErrNoMoreReadings))
}

func TestGroundTruthBackend(t *testing.T) {
	t.Parallel()
	b := NewGroundTruth(freeTruth())
	g := arena.NewGrid()
	n, err := b.Sense(context.Background(), g, arena.Pose{Pos: arena.Start, Heading: arena.North})
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestReadingFor(t *testing.T) {
	pose := arena.Pose{Pos: arena.Start, Heading: arena.North}
	assert.Equal(t, Reading{2, 2, 2, 4, 0, 0}, ReadingFor(pose, freeSnapshot()))

	truth := freeTruth(arena.Position{Row: 17, Col: 5}, arena.Position{Row: 15, Col: 1})
	assert.Equal(t, Reading{2, 1, 2, 2, 0, 0}, ReadingFor(pose, &truth))

	pose = arena.Pose{Pos: arena.Position{Row: 17, Col: 2}, Heading: arena.West}
	assert.Equal(t, Reading{1, 1, 1, 0, 1, 1}, ReadingFor(pose, &truth))
}

func TestReadingForMatchesGroundTruth(t *testing.T) {
	truth := freeTruth(arena.Position{Row: 10, Col: 7}, arena.Position{Row: 9, Col: 9}, arena.Position{Row: 12, Col: 4})
	for _, h := range arena.Headings {
		pose := arena.Pose{Pos: arena.Position{Row: 10, Col: 5}, Heading: h}
		fromTruth, fromReadings := arena.NewGrid(), arena.NewGrid()
		UpdateFromGroundTruth(fromTruth, pose, &truth)
		UpdateFromReadings(fromReadings, pose, ReadingFor(pose, &truth))
		assert.Equal(t, fromTruth.Snapshot(), fromReadings.Snapshot(), "heading %s", h)
	}
}

func freeSnapshot() *arena.Snapshot {
	s := freeTruth()
	return &s
}

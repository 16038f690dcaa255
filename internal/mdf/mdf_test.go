package mdf

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/testutil"
)

func TestExploration(t *testing.T) {
	t.Parallel()
	var unknown arena.Snapshot
	assert.Equal(t, "C"+strings.Repeat("0", 74)+"3", Exploration(&unknown))

	free := testutil.FreeMap()
	assert.Equal(t, strings.Repeat("F", 76), Exploration(&free))
}

func TestObstacles(t *testing.T) {
	t.Parallel()
	free := testutil.FreeMap()
	assert.Equal(t, strings.Repeat("0", 75), Obstacles(&free))

	// The last grid row is scanned first.
	first := testutil.FreeMap(arena.Position{Row: 19, Col: 0})
	assert.Equal(t, "8"+strings.Repeat("0", 74), Obstacles(&first))

	last := testutil.FreeMap(arena.Position{Row: 0, Col: 14})
	assert.Equal(t, strings.Repeat("0", 74)+"1", Obstacles(&last))
}

func TestObstaclesTreatsUnknownAsZero(t *testing.T) {
	t.Parallel()
	var s arena.Snapshot
	s[19][1] = arena.Obstacle
	assert.Equal(t, "4"+strings.Repeat("0", 74), Obstacles(&s))
}

func TestDescriptorLengths(t *testing.T) {
	t.Parallel()
	maps := []arena.Snapshot{
		{},
		testutil.FreeMap(),
		testutil.FreeMap(testutil.Block(3, 3, 9, 9)...),
		testutil.MapFromRows(t, "000000000000000", "120120120120120"),
	}
	for _, m := range maps {
		d := Encode(&m)
		assert.Len(t, d.Explored, ExploredLen)
		assert.Len(t, d.Obstacles, ObstaclesLen)
		assert.Equal(t, 76, ExploredLen)
		assert.Equal(t, 75, ObstaclesLen)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	m := testutil.MapFromRows(t,
		"000000000000000",
		"120120120120120",
		"111111111111111",
		"222222222222222",
		"000111222000111",
	)
	d := Encode(&m)
	got, err := Decode(d.Explored, strings.ToLower(d.Obstacles))
	require.NoError(t, err)
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("decoded map mismatch (-want +got):\n%s", diff)
	}
	again := Encode(&got)
	assert.Equal(t, d, again)
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()
	free := testutil.FreeMap()
	ok := Encode(&free)
	var unknown arena.Snapshot
	empty := Encode(&unknown)

	tests := map[string][2]string{
		"short explored":     {ok.Explored[1:], ok.Obstacles},
		"short obstacles":    {ok.Explored, ok.Obstacles[1:]},
		"bad hex":            {"X" + ok.Explored[1:], ok.Obstacles},
		"missing frame":      {"0" + ok.Explored[1:], ok.Obstacles},
		"obstacle unknown":   {empty.Explored, "8" + empty.Obstacles[1:]},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(in[0], in[1])
			assert.True(t, errors.Is(err, ErrMalformedDescriptor), "got %v", err)
		})
	}
}

package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadingRotation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		h           Heading
		left, right Heading
		reverse     Heading
	}{
		{North, West, East, South},
		{East, North, South, West},
		{South, East, West, North},
		{West, South, North, East},
	}
	for _, tt := range tests {
		t.Run(tt.h.String(), func(t *testing.T) {
			assert.Equal(t, tt.left, tt.h.Left())
			assert.Equal(t, tt.right, tt.h.Right())
			assert.Equal(t, tt.reverse, tt.h.Reverse())
			assert.Equal(t, tt.h, tt.h.Left().Right())
			assert.Equal(t, tt.h, tt.h.Right().Right().Right().Right())
		})
	}
}

func TestHeadingDelta(t *testing.T) {
	t.Parallel()
	p := Position{Row: 5, Col: 5}
	assert.Equal(t, Position{Row: 4, Col: 5}, p.Step(North))
	assert.Equal(t, Position{Row: 5, Col: 6}, p.Step(East))
	assert.Equal(t, Position{Row: 6, Col: 5}, p.Step(South))
	assert.Equal(t, Position{Row: 5, Col: 4}, p.Step(West))
}

func TestParseHeading(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Heading{"n": North, "East": East, " SOUTH ": South, "w": West} {
		got, err := ParseHeading(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseHeading("up")
	assert.Error(t, err)
}

func TestPoseHead(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Position{Row: 17, Col: 1}, Pose{Pos: Start, Heading: North}.Head())
	assert.Equal(t, Position{Row: 18, Col: 0}, Pose{Pos: Start, Heading: West}.Head())
}

func TestPositionInBounds(t *testing.T) {
	t.Parallel()
	assert.True(t, Position{0, 0}.InBounds())
	assert.True(t, Position{Rows - 1, Cols - 1}.InBounds())
	assert.False(t, Position{-1, 0}.InBounds())
	assert.False(t, Position{0, Cols}.InBounds())
	assert.False(t, Position{Rows, 0}.InBounds())
}

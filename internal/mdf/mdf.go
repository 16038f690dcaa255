// Package mdf encodes a settled map into the two hex descriptors handed to
// the operator tablet: one marking explored cells, one marking obstacles.
// Both scan rows from the last grid row to the first, columns left to right.
package mdf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/maze.explorer/internal/arena"
)

var ErrMalformedDescriptor = errors.New("mdf: malformed descriptor")

const (
	// ExploredLen is the hex length of the exploration descriptor: 300 cell
	// bits framed by "11" on both ends.
	ExploredLen = (arena.CellCount + 4) / 4
	// ObstaclesLen is the hex length of the obstacle descriptor.
	ObstaclesLen = (arena.CellCount + 3) / 4
)

// Descriptors holds both encodings of one map.
type Descriptors struct {
	Explored  string `json:"explored"`
	Obstacles string `json:"obstacles"`
}

// Encode returns both descriptors for s.
func Encode(s *arena.Snapshot) Descriptors {
	return Descriptors{Explored: Exploration(s), Obstacles: Obstacles(s)}
}

// Exploration sets a bit for every cell that is not UNKNOWN.
func Exploration(s *arena.Snapshot) string {
	bits := make([]bool, 0, arena.CellCount+4)
	bits = append(bits, true, true)
	eachCell(s, func(st arena.CellState) { bits = append(bits, st != arena.Unknown) })
	bits = append(bits, true, true)
	return pack(bits)
}

// Obstacles sets a bit for every OBSTACLE cell; FREE and UNKNOWN both read
// as 0. The bit string is zero padded to a whole hex digit.
func Obstacles(s *arena.Snapshot) string {
	bits := make([]bool, 0, arena.CellCount+3)
	eachCell(s, func(st arena.CellState) { bits = append(bits, st == arena.Obstacle) })
	return pack(bits)
}

// Decode rebuilds a map from both descriptors. A cell marked as an obstacle
// but not as explored is rejected.
func Decode(explored, obstacles string) (arena.Snapshot, error) {
	var s arena.Snapshot
	if len(explored) != ExploredLen {
		return s, fmt.Errorf("%w: explored length %d, want %d", ErrMalformedDescriptor, len(explored), ExploredLen)
	}
	if len(obstacles) != ObstaclesLen {
		return s, fmt.Errorf("%w: obstacles length %d, want %d", ErrMalformedDescriptor, len(obstacles), ObstaclesLen)
	}
	eb, err := unpack(explored)
	if err != nil {
		return s, err
	}
	ob, err := unpack(obstacles)
	if err != nil {
		return s, err
	}
	if !eb[0] || !eb[1] || !eb[len(eb)-2] || !eb[len(eb)-1] {
		return s, fmt.Errorf("%w: missing explored frame bits", ErrMalformedDescriptor)
	}
	for i := arena.CellCount; i < len(ob); i++ {
		if ob[i] {
			return s, fmt.Errorf("%w: non-zero obstacle padding", ErrMalformedDescriptor)
		}
	}
	i := 0
	for r := arena.Rows - 1; r >= 0; r-- {
		for c := 0; c < arena.Cols; c++ {
			known, blocked := eb[i+2], ob[i]
			switch {
			case blocked && !known:
				return s, fmt.Errorf("%w: obstacle at unexplored (%d,%d)", ErrMalformedDescriptor, r, c)
			case blocked:
				s[r][c] = arena.Obstacle
			case known:
				s[r][c] = arena.Free
			}
			i++
		}
	}
	return s, nil
}

func eachCell(s *arena.Snapshot, fn func(arena.CellState)) {
	for r := arena.Rows - 1; r >= 0; r-- {
		for c := 0; c < arena.Cols; c++ {
			fn(s[r][c])
		}
	}
}

const hexDigits = "0123456789ABCDEF"

func pack(bits []bool) string {
	for len(bits)%4 != 0 {
		bits = append(bits, false)
	}
	var b strings.Builder
	b.Grow(len(bits) / 4)
	for i := 0; i < len(bits); i += 4 {
		v := 0
		for j := 0; j < 4; j++ {
			v <<= 1
			if bits[i+j] {
				v |= 1
			}
		}
		b.WriteByte(hexDigits[v])
	}
	return b.String()
}

func unpack(h string) ([]bool, error) {
	bits := make([]bool, 0, len(h)*4)
	for i := 0; i < len(h); i++ {
		v := strings.IndexByte(hexDigits, upper(h[i]))
		if v < 0 {
			return nil, fmt.Errorf("%w: bad hex digit %q at %d", ErrMalformedDescriptor, h[i], i)
		}
		for j := 3; j >= 0; j-- {
			bits = append(bits, v&(1<<j) != 0)
		}
	}
	return bits, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'f' {
		return c - 'a' + 'A'
	}
	return c
}

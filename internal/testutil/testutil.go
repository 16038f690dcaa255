// Package testutil provides shared test fixtures: arenas, maps and assertions.
package testutil

import (
	"strings"
	"testing"

	"github.com/banshee-data/maze.explorer/internal/arena"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// FreeMap returns a fully known map, FREE except for the given obstacles.
func FreeMap(obstacles ...arena.Position) arena.Snapshot {
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

// Block returns every position in the inclusive rectangle.
func Block(r0, c0, r1, c1 int) []arena.Position {
	var out []arena.Position
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			out = append(out, arena.Position{Row: r, Col: c})
		}
	}
	return out
}

// MapFromRows parses rows in the map file format. Fewer than arena.Rows rows
// are padded with FREE rows.
func MapFromRows(t testing.TB, rows ...string) arena.Snapshot {
	t.Helper()
	for len(rows) < arena.Rows {
		rows = append(rows, strings.Repeat("1", arena.Cols))
	}
	s, err := arena.ParseMap(strings.NewReader(strings.Join(rows, "\n")))
	if err != nil {
		t.Fatalf("parse map: %v", err)
	}
	return s
}

package arena

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/maze.explorer/internal/fsutil"
)

func sampleMap() string {
	rows := make([]string, Rows)
	for r := range rows {
		rows[r] = strings.Repeat("1", Cols)
	}
	rows[0] = "000000000000000"
	rows[10] = "111112221111111"
	return strings.Join(rows, "\n") + "\n"
}

func TestParseMap(t *testing.T) {
	t.Parallel()
	s, err := ParseMap(strings.NewReader(sampleMap()))
	require.NoError(t, err)

	st, _ := s.Get(Position{10, 6})
	assert.Equal(t, Obstacle, st)
	st, _ = s.Get(Position{0, 3})
	assert.Equal(t, Unknown, st)
	assert.Equal(t, 3, s.Count(Obstacle))
	assert.Equal(t, Cols, s.Count(Unknown))
}

func TestParseMapCRLF(t *testing.T) {
	t.Parallel()
	in := strings.ReplaceAll(sampleMap(), "\n", "\r\n")
	_, err := ParseMap(strings.NewReader(in))
	require.NoError(t, err)
}

func TestParseMapErrors(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"short row":  strings.Replace(sampleMap(), "000000000000000", "00000", 1),
		"bad char":   strings.Replace(sampleMap(), "000000000000000", "00000000000000x", 1),
		"too few":    strings.Repeat(strings.Repeat("1", Cols)+"\n", Rows-1),
		"too many":   strings.Repeat(strings.Repeat("1", Cols)+"\n", Rows+1),
		"empty file": "",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMap(strings.NewReader(in))
			assert.True(t, errors.Is(err, ErrMalformedMap), "got %v", err)
		})
	}
}

func TestFormatMapRoundTrip(t *testing.T) {
	t.Parallel()
	s, err := ParseMap(strings.NewReader(sampleMap()))
	require.NoError(t, err)
	if diff := cmp.Diff(sampleMap(), FormatMap(&s)); diff != "" {
		t.Errorf("FormatMap mismatch (-want +got):\n%s", diff)
	}
}

func TestMapFileSaveLoad(t *testing.T) {
	t.Parallel()
	mem := fsutil.NewMemoryFileSystem()
	g := NewGrid()
	g.MarkFootprintFree(Start)
	require.NoError(t, g.Set(Position{5, 5}, Obstacle))

	store := MapFile{FS: mem, Path: "maps/current.txt"}
	require.NoError(t, store.SaveMap(context.Background(), "lap", g.Snapshot()))

	got, err := LoadMapFile(mem, "maps/current.txt")
	require.NoError(t, err)
	want := g.Snapshot()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reloaded map mismatch (-want +got):\n%s", diff)
	}

	_, err = LoadMapFile(mem, "maps/missing.txt")
	assert.Error(t, err)
}

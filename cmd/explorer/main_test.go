package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/config"
	"github.com/banshee-data/maze.explorer/internal/fsutil"
	"github.com/banshee-data/maze.explorer/internal/testutil"
)

// testConfig writes a run configuration that keeps every output under dir
// and starts no servers.
func testConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "run.json")
	body := `{"data_dir": "` + filepath.ToSlash(dir) + `", "time_limit": "0s"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writeMap(t *testing.T, path string, snap arena.Snapshot) {
	t.Helper()
	require.NoError(t, arena.SaveMapFile(fsutil.OSFileSystem{}, path, &snap))
}

func run(t *testing.T, command string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := dispatch(context.Background(), command, args, &out)
	return out.String(), err
}

func TestDispatchUnknownCommand(t *testing.T) {
	_, err := run(t, "fly")
	assert.ErrorIs(t, err, errUsage)
}

func TestDispatchVersionAndHelp(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "maze-explorer "), out)

	out, err = run(t, "help")
	require.NoError(t, err)
	for _, cmd := range []string{"explore", "fastest", "mdf", "serve", "replay"} {
		assert.Contains(t, out, cmd)
	}
}

func TestParseCell(t *testing.T) {
	c, err := parseCell("18, 1")
	require.NoError(t, err)
	assert.Equal(t, config.Cell{Row: 18, Col: 1}, *c)

	for _, s := range []string{"", "18", "a,1", "1,2,3"} {
		_, err := parseCell(s)
		assert.Error(t, err, s)
	}
}

func TestMDFRoundTrip(t *testing.T) {
	dir := t.TempDir()
	truth := testutil.FreeMap(testutil.Block(8, 5, 10, 9)...)
	mapPath := filepath.Join(dir, "truth.txt")
	writeMap(t, mapPath, truth)

	out, err := run(t, "mdf", "-map", mapPath)
	require.NoError(t, err)
	lines := strings.Fields(out)
	require.Len(t, lines, 2)

	decoded, err := run(t, "mdf", "-explored", lines[0], "-obstacles", lines[1])
	require.NoError(t, err)
	assert.Equal(t, arena.FormatMap(&truth), decoded)

	_, err = run(t, "mdf")
	assert.ErrorIs(t, err, errUsage)
}

func TestExploreRequiresMap(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "explore", "-config", testConfig(t, dir), "-no-db", "-no-plots")
	assert.ErrorIs(t, err, errUsage)
}

func TestExploreFastestReplay(t *testing.T) {
	dir := t.TempDir()
	cfgPath := testConfig(t, dir)
	truth := testutil.FreeMap(testutil.Block(8, 5, 10, 9)...)
	truthPath := filepath.Join(dir, "truth.txt")
	writeMap(t, truthPath, truth)
	explored := filepath.Join(dir, "explored.txt")
	capture := filepath.Join(dir, "run.pcap")

	out, err := run(t, "explore", "-config", cfgPath, "-map", truthPath, "-out", explored,
		"-capture", capture, "-no-db", "-no-plots")
	require.NoError(t, err)
	assert.Contains(t, out, "outcome:     completed")
	assert.Contains(t, out, "lap:         true")
	assert.Contains(t, out, "map:         "+explored)
	assert.FileExists(t, explored)
	assert.FileExists(t, capture)

	out, err = run(t, "fastest", "-config", cfgPath, "-map", explored, "-waypoint", "5,5")
	require.NoError(t, err)
	assert.Contains(t, out, "policy:     legacy")
	assert.Contains(t, out, "command:    [a]")

	replayed := filepath.Join(dir, "replayed.txt")
	out, err = run(t, "replay", "-config", cfgPath, "-capture", capture, "-out", replayed, "-no-db")
	require.NoError(t, err)
	assert.Contains(t, out, "outcome:     completed")
	assert.Contains(t, out, "matches capture: true")

	want, err := os.ReadFile(explored)
	require.NoError(t, err)
	got, err := os.ReadFile(replayed)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestExploreRecordsRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := testConfig(t, dir)
	truthPath := filepath.Join(dir, "truth.txt")
	writeMap(t, truthPath, testutil.FreeMap())

	dbPath := filepath.Join(dir, "runs.db")
	out, err := run(t, "explore", "-config", cfgPath, "-map", truthPath,
		"-db", dbPath, "-plots", filepath.Join(dir, "plots"))
	require.NoError(t, err)
	assert.Contains(t, out, "outcome:     completed")
	assert.Contains(t, out, "plot:")
	assert.FileExists(t, dbPath)
	assert.FileExists(t, filepath.Join(dir, "explored.txt"))
}

func TestFastestMissingMap(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "fastest", "-config", testConfig(t, dir), "-map", filepath.Join(dir, "nope.txt"))
	assert.Error(t, err)
}

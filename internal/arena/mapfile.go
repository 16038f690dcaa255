package arena

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/maze.explorer/internal/fsutil"
)

var ErrMalformedMap = errors.New("arena: malformed map file")

// ParseMap reads the plain-text map format: 20 lines of 15 characters, each
// '0', '1' or '2', row 0 first. Trailing blank lines and CR line endings are
// accepted.
func ParseMap(r io.Reader) (Snapshot, error) {
	var s Snapshot
	scan := bufio.NewScanner(r)
	row := 0
	for scan.Scan() {
		line := strings.TrimRight(scan.Text(), "\r")
		if line == "" {
			continue
		}
		if row >= Rows {
			return s, fmt.Errorf("%w: more than %d rows", ErrMalformedMap, Rows)
		}
		if len(line) != Cols {
			return s, fmt.Errorf("%w: row %d has %d columns, want %d", ErrMalformedMap, row, len(line), Cols)
		}
		for c := 0; c < Cols; c++ {
			ch := line[c]
			if ch < '0' || ch > '2' {
				return s, fmt.Errorf("%w: row %d col %d: unexpected %q", ErrMalformedMap, row, c, ch)
			}
			s[row][c] = CellState(ch - '0')
		}
		row++
	}
	if err := scan.Err(); err != nil {
		return s, err
	}
	if row != Rows {
		return s, fmt.Errorf("%w: got %d rows, want %d", ErrMalformedMap, row, Rows)
	}
	return s, nil
}

// FormatMap renders s in the map file format with a trailing newline per row.
func FormatMap(s *Snapshot) string {
	var b strings.Builder
	b.Grow(Rows * (Cols + 1))
	for r := range s {
		for c := range s[r] {
			b.WriteByte('0' + byte(s[r][c]))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// LoadMapFile parses the map file at path.
func LoadMapFile(fsys fsutil.FileSystem, path string) (Snapshot, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read map %s: %w", path, err)
	}
	s, err := ParseMap(bytes.NewReader(data))
	if err != nil {
		return s, fmt.Errorf("parse map %s: %w", path, err)
	}
	return s, nil
}

// SaveMapFile writes s to path, creating parent directories.
func SaveMapFile(fsys fsutil.FileSystem, path string, s *Snapshot) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create map dir: %w", err)
		}
	}
	if err := fsys.WriteFile(path, []byte(FormatMap(s)), 0o644); err != nil {
		return fmt.Errorf("write map %s: %w", path, err)
	}
	return nil
}

// MapFile persists snapshots to a single map file, overwriting it each time.
type MapFile struct {
	FS   fsutil.FileSystem
	Path string
}

// SaveMap writes snap to the configured path. The reason is not recorded in
// the file format.
func (m MapFile) SaveMap(_ context.Context, _ string, snap Snapshot) error {
	fsys := m.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return SaveMapFile(fsys, m.Path, &snap)
}

package db

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/mdf"
	"github.com/banshee-data/maze.explorer/internal/testutil"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_AppliesMigrations(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(3), version)

	// reopening is a no-op
	db2, err := Open(db.Path())
	require.NoError(t, err)
	require.NoError(t, db2.Close())
}

func TestOpen_UpgradesOlderSchema(t *testing.T) {
	db := openTestDB(t)
	m, _, err := db.newMigrate()
	require.NoError(t, err)
	require.NoError(t, m.Migrate(2))
	_, err = db.Exec(`SELECT * FROM trajectory`)
	require.Error(t, err)

	require.NoError(t, db.migrateUp())
	_, err = db.Exec(`SELECT * FROM trajectory`)
	assert.NoError(t, err)
}

func TestOpen_RefusesBadSchema(t *testing.T) {
	db := openTestDB(t)
	m, _, err := db.newMigrate()
	require.NoError(t, err)

	require.NoError(t, m.Force(2))
	_, err = db.Exec(`UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)
	assert.ErrorIs(t, db.migrateUp(), ErrDirtySchema)

	require.NoError(t, m.Force(9))
	assert.ErrorIs(t, db.migrateUp(), ErrSchemaTooNew)
}

func TestLastVersion(t *testing.T) {
	db := openTestDB(t)
	_, src, err := db.newMigrate()
	require.NoError(t, err)
	v, err := lastVersion(src)
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)
}

func TestRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first, err := db.CreateRun(ctx, "simulation", "")
	require.NoError(t, err)
	second, err := db.CreateRun(ctx, "hardware", `{"time_limit":"6m"}`)
	require.NoError(t, err)
	assert.Len(t, first.ID, 36)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := db.GetRun(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "{}", got.ConfigJSON)
	assert.Nil(t, got.FinishedAt)
	assert.WithinDuration(t, first.StartedAt, got.StartedAt, time.Millisecond)

	require.NoError(t, db.FinishRun(ctx, first.ID, RunSummary{
		Outcome: "completed", Coverage: 1, Steps: 103, LapCompleted: true,
	}))
	got, err = db.GetRun(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, "completed", got.Outcome)
	assert.Equal(t, 103, got.Steps)
	assert.True(t, got.LapCompleted)

	runs, err := db.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)

	runs, err = db.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = db.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, db.FinishRun(ctx, "missing", RunSummary{}), ErrRunNotFound)
}

func TestDeleteRunCascades(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	run, err := db.CreateRun(ctx, "simulation", "")
	require.NoError(t, err)
	_, err = db.InsertSnapshot(ctx, run.ID, "lap", testutil.FreeMap())
	require.NoError(t, err)
	require.NoError(t, db.AppendTrajectory(ctx, run.ID, TrajectoryPoint{Seq: 1, Phase: "wall"}))

	require.NoError(t, db.DeleteRun(ctx, run.ID))
	snaps, err := db.Snapshots(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, snaps)
	pts, err := db.Trajectory(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, pts)

	assert.ErrorIs(t, db.DeleteRun(ctx, run.ID), ErrRunNotFound)
}

func TestSnapshots(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	run, err := db.CreateRun(ctx, "simulation", "")
	require.NoError(t, err)

	var partial arena.Snapshot
	partial[0][0] = arena.Free
	partial[0][1] = arena.Obstacle
	full := testutil.FreeMap(arena.Position{Row: 9, Col: 7})

	_, err = db.InsertSnapshot(ctx, run.ID, "lap", partial)
	require.NoError(t, err)
	_, err = db.InsertSnapshot(ctx, run.ID, "explored", full)
	require.NoError(t, err)

	snaps, err := db.Snapshots(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "lap", snaps[0].Reason)
	if diff := cmp.Diff(partial, snaps[0].Map); diff != "" {
		t.Errorf("lap map mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, mdf.Encode(&full), snaps[1].MDF)
	assert.Equal(t, 1.0, snaps[1].Coverage)

	latest, err := db.LatestSnapshot(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "explored", latest.Reason)

	_, err = db.LatestSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSnapshotRequiresRun(t *testing.T) {
	db := openTestDB(t)
	_, err := db.InsertSnapshot(context.Background(), "missing", "lap", arena.Snapshot{})
	assert.Error(t, err)
}

func TestTrajectory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	run, err := db.CreateRun(ctx, "simulation", "")
	require.NoError(t, err)

	pts := []TrajectoryPoint{
		{Seq: 2, Phase: "wall", Primitive: "R", Pose: arena.Pose{Pos: arena.Start, Heading: arena.East}, Coverage: 0.2},
		{Seq: 1, Phase: "wall", Primitive: "F", Pose: arena.Pose{Pos: arena.Position{Row: 17, Col: 1}, Heading: arena.North}, Coverage: 0.1},
	}
	require.NoError(t, db.AppendTrajectory(ctx, run.ID, pts...))

	got, err := db.Trajectory(ctx, run.ID)
	require.NoError(t, err)
	want := []TrajectoryPoint{pts[1], pts[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trajectory mismatch (-want +got):\n%s", diff)
	}
}

func TestAttachAdminRoutes(t *testing.T) {
	db := openTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))

	zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3\x00")))

	req = httptest.NewRequest(http.MethodGet, "/debug/tailsql/", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusNotFound, w.Code, "tailsql console should be mounted")
}

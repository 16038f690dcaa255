package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/config"
	"github.com/banshee-data/maze.explorer/internal/db"
	"github.com/banshee-data/maze.explorer/internal/explore"
	"github.com/banshee-data/maze.explorer/internal/mdf"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/robot"
	"github.com/banshee-data/maze.explorer/internal/sensing"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
	"github.com/banshee-data/maze.explorer/internal/testutil"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// recordRun explores an open arena, publishing to the server and the store.
func recordRun(t *testing.T, s *Server, store *db.DB) (*db.Run, *explore.Result) {
	t.Helper()
	ctx := context.Background()
	rec, err := store.StartRun(ctx, "simulation", "{}")
	require.NoError(t, err)

	start := arena.Pose{Pos: arena.Start, Heading: arena.North}
	r := robot.New(arena.NewGrid(), start, sensing.NewGroundTruth(testutil.FreeMap()))
	res, err := explore.New(r, explore.Config{Store: rec, Sink: telemetry.Multi(s, rec)}).Run(ctx)
	require.NoError(t, err)
	require.NoError(t, rec.Finish(ctx, db.RunSummary{
		Outcome:  res.Outcome.String(),
		Coverage: res.Coverage,
		Steps:    len(res.Steps),
	}))
	return rec.Run(), res
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestServer_NoRunYet(t *testing.T) {
	mux := NewServer(nil).ServeMux()

	assert.Equal(t, http.StatusNotFound, get(t, mux, "/api/map").Code)
	assert.Equal(t, http.StatusNotFound, get(t, mux, "/api/mdf").Code)
	assert.Equal(t, http.StatusNotFound, get(t, mux, "/charts/map").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/api/runs").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/charts/coverage?run=x").Code)
}

func TestServer_LiveMap(t *testing.T) {
	s := NewServer(nil)
	var snap arena.Snapshot
	snap[arena.Start.Row][arena.Start.Col] = arena.Free
	s.Publish(telemetry.Frame{Seq: 1, Phase: "wall", Pose: arena.Pose{Pos: arena.Start, Heading: arena.North}, Map: snap})
	s.Publish(telemetry.Frame{Seq: 2, Phase: "wall", Primitive: "F", Coverage: 0.5,
		Pose: arena.Pose{Pos: arena.Position{Row: 17, Col: 1}, Heading: arena.North}, Map: snap})
	mux := s.ServeMux()

	rec := get(t, mux, "/api/map")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[MapResponse](t, rec)
	assert.Equal(t, 2, resp.Seq)
	assert.Equal(t, 0.5, resp.Coverage)
	assert.Equal(t, arena.Position{Row: 17, Col: 1}, resp.Pose.Pos)
	assert.Len(t, resp.Rows, arena.Rows)
	assert.Equal(t, mdf.Encode(&snap), resp.MDF)

	desc := decode[mdf.Descriptors](t, get(t, mux, "/api/mdf"))
	assert.Len(t, desc.Explored, mdf.ExploredLen)

	// a restarted run replaces the live history
	s.Publish(telemetry.Frame{Seq: 1, Phase: "wall"})
	assert.Len(t, s.live(), 1)
}

func TestServer_RejectsMethod(t *testing.T) {
	mux := NewServer(nil).ServeMux()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/map", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_ConfigAndVersion(t *testing.T) {
	limit := "30s"
	mux := NewServer(nil, WithConfig(&config.RunConfig{TimeLimit: &limit})).ServeMux()

	cfg := decode[map[string]any](t, get(t, mux, "/api/config"))
	assert.Equal(t, "30s", cfg["time_limit"])

	info := decode[VersionResponse](t, get(t, mux, "/api/version"))
	assert.NotEmpty(t, info.GoVersion)
	assert.Zero(t, info.Schema)

	withDB := decode[VersionResponse](t, get(t, NewServer(openTestDB(t)).ServeMux(), "/api/version"))
	assert.Equal(t, uint(3), withDB.Schema)
}

func TestServer_Runs(t *testing.T) {
	store := openTestDB(t)
	s := NewServer(store)
	run, res := recordRun(t, s, store)
	mux := s.ServeMux()

	runs := decode[[]db.Run](t, get(t, mux, "/api/runs"))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "completed", runs[0].Outcome)

	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/api/runs?limit=0").Code)

	detail := decode[map[string]any](t, get(t, mux, "/api/runs/"+run.ID))
	assert.Equal(t, run.ID, detail["run_id"])
	assert.Len(t, detail["snapshots"], 2)

	pts := decode[[]db.TrajectoryPoint](t, get(t, mux, "/api/runs/"+run.ID+"/trajectory"))
	assert.Len(t, pts, len(res.Steps)+1)

	rec := get(t, mux, "/api/runs/"+run.ID+"/map.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "map-"+run.ID+".txt")
	parsed, err := arena.ParseMap(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, res.Map, parsed)

	assert.Equal(t, http.StatusNotFound, get(t, mux, "/api/runs/nope").Code)
	assert.Equal(t, http.StatusNotFound, get(t, mux, "/api/runs/nope/trajectory").Code)
	assert.Equal(t, http.StatusNotFound, get(t, mux, "/api/runs/nope/map.txt").Code)

	del := httptest.NewRecorder()
	mux.ServeHTTP(del, httptest.NewRequest(http.MethodDelete, "/api/runs/"+run.ID, nil))
	assert.Equal(t, http.StatusNoContent, del.Code)
	assert.Empty(t, decode[[]db.Run](t, get(t, mux, "/api/runs")))
}

func TestServer_Charts(t *testing.T) {
	store := openTestDB(t)
	s := NewServer(store, WithAssetsHost("http://assets.local/"))
	run, _ := recordRun(t, s, store)
	mux := s.ServeMux()

	for _, target := range []string{
		"/charts/coverage",
		"/charts/map",
		"/charts/coverage?run=" + run.ID,
		"/charts/map?run=" + run.ID,
	} {
		rec := get(t, mux, target)
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "http://assets.local/", target)
	}
	assert.Equal(t, http.StatusNotFound, get(t, mux, "/charts/map?run=nope").Code)
}

func TestServer_Websocket(t *testing.T) {
	hub := telemetry.NewHub()
	s := NewServer(nil, WithHub(hub))
	srv := httptest.NewServer(LoggingMiddleware(s.ServeMux()))
	defer srv.Close()

	hub.Publish(telemetry.Frame{Seq: 7, Phase: "fill"})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var f telemetry.Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, 7, f.Seq)
	assert.Equal(t, "fill", f.Phase)
}

func TestLoggingMiddleware(t *testing.T) {
	var logged []string
	old := monitoring.Logf
	monitoring.SetLogger(func(format string, args ...any) {
		logged = append(logged, format)
	})
	t.Cleanup(func() { monitoring.SetLogger(old) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "tea")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew?cup=1", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, logged, "[%s] %s %s%s%s %vms")
	assert.Equal(t, colorBoldRed+"418"+colorReset, statusCodeColor(418))
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
}

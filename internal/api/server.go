// Package api serves the dashboard: the live map and its descriptors, the
// run history kept in the database, echarts pages and the frame websocket.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-echarts/go-echarts/v2/components"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/config"
	"github.com/banshee-data/maze.explorer/internal/db"
	"github.com/banshee-data/maze.explorer/internal/httputil"
	"github.com/banshee-data/maze.explorer/internal/mdf"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/plot"
	"github.com/banshee-data/maze.explorer/internal/security"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
	"github.com/banshee-data/maze.explorer/internal/version"
)

// maxLiveFrames bounds the frames kept for the live coverage chart.
const maxLiveFrames = 4096

// Server is the dashboard. It is a telemetry.Sink: frames published to it
// become the live map.
type Server struct {
	db         *db.DB
	hub        *telemetry.Hub
	cfg        *config.RunConfig
	assetsHost string

	mu     sync.RWMutex
	frames []telemetry.Frame
}

// Option configures a Server.
type Option func(*Server)

// WithHub mounts the websocket hub at /ws.
func WithHub(h *telemetry.Hub) Option { return func(s *Server) { s.hub = h } }

// WithConfig exposes the run configuration at /api/config.
func WithConfig(cfg *config.RunConfig) Option { return func(s *Server) { s.cfg = cfg } }

// WithAssetsHost sets where chart pages load echarts from.
func WithAssetsHost(host string) Option { return func(s *Server) { s.assetsHost = host } }

// NewServer returns a dashboard over store, which may be nil when runs are
// not recorded.
func NewServer(store *db.DB, opts ...Option) *Server {
	s := &Server{db: store, assetsHost: plot.DefaultAssetsHost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish records f as the latest state. A frame that does not follow the
// previous one starts a new live history.
func (s *Server) Publish(f telemetry.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.frames); n > 0 && f.Seq <= s.frames[n-1].Seq {
		s.frames = s.frames[:0]
	}
	if len(s.frames) == maxLiveFrames {
		s.frames = append(s.frames[:0], s.frames[1:]...)
	}
	s.frames = append(s.frames, f)
}

func (s *Server) live() []telemetry.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]telemetry.Frame(nil), s.frames...)
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/map", s.showMap)
	mux.HandleFunc("/api/mdf", s.showDescriptors)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.showRun)
	mux.HandleFunc("/api/runs/{id}/trajectory", s.showTrajectory)
	mux.HandleFunc("/api/runs/{id}/map.txt", s.downloadMap)
	mux.HandleFunc("/charts/coverage", s.coverageChart)
	mux.HandleFunc("/charts/map", s.mapChart)
	if s.hub != nil {
		mux.Handle("/ws", s.hub)
	}
	return mux
}

// MapResponse is the live map as served at /api/map.
type MapResponse struct {
	Seq      int             `json:"seq"`
	Phase    string          `json:"phase"`
	Pose     arena.Pose      `json:"pose"`
	Coverage float64         `json:"coverage"`
	Rows     []string        `json:"rows"`
	MDF      mdf.Descriptors `json:"mdf"`
}

func (s *Server) latest() (telemetry.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.frames) == 0 {
		return telemetry.Frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

func (s *Server) showMap(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	f, ok := s.latest()
	if !ok {
		httputil.NotFound(w, "no run in progress")
		return
	}
	httputil.WriteJSONOK(w, MapResponse{
		Seq:      f.Seq,
		Phase:    f.Phase,
		Pose:     f.Pose,
		Coverage: f.Coverage,
		Rows:     strings.Split(strings.TrimSuffix(arena.FormatMap(&f.Map), "\n"), "\n"),
		MDF:      mdf.Encode(&f.Map),
	})
}

func (s *Server) showDescriptors(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	f, ok := s.latest()
	if !ok {
		httputil.NotFound(w, "no run in progress")
		return
	}
	httputil.WriteJSONOK(w, mdf.Encode(&f.Map))
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	if s.cfg == nil {
		httputil.WriteJSONOK(w, config.DefaultRunConfig())
		return
	}
	httputil.WriteJSONOK(w, s.cfg)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	resp := VersionResponse{Info: version.Get()}
	if s.db != nil {
		v, _, err := s.db.SchemaVersion()
		if err != nil {
			monitoring.Logf("read schema version: %v", err)
		}
		resp.Schema = v
	}
	httputil.WriteJSONOK(w, resp)
}

// VersionResponse is the build metadata plus the run database schema version
// when a database is attached.
type VersionResponse struct {
	version.Info
	Schema uint `json:"schema,omitempty"`
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "run database not configured")
		return false
	}
	return true
}

// writeDBError maps a store error onto a response.
func writeDBError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve %s: %v", what, err))
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) || !s.requireDB(w) {
		return
	}
	limit, ok := httputil.IntQuery(r, "limit", 50, 1, 1000)
	if !ok {
		httputil.BadRequest(w, "Invalid 'limit' parameter")
		return
	}
	runs, err := s.db.Runs(r.Context(), limit)
	if err != nil {
		writeDBError(w, "runs", err)
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

// RunResponse is one run with its saved maps.
type RunResponse struct {
	*db.Run
	Snapshots []db.MapSnapshot `json:"snapshots"`
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		run, err := s.db.GetRun(r.Context(), id)
		if err != nil {
			writeDBError(w, "run", err)
			return
		}
		snaps, err := s.db.Snapshots(r.Context(), id)
		if err != nil {
			writeDBError(w, "snapshots", err)
			return
		}
		if snaps == nil {
			snaps = []db.MapSnapshot{}
		}
		httputil.WriteJSONOK(w, RunResponse{Run: run, Snapshots: snaps})
	case http.MethodDelete:
		if err := s.db.DeleteRun(r.Context(), id); err != nil {
			writeDBError(w, "run", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) runFrames(r *http.Request, id string) ([]telemetry.Frame, error) {
	if _, err := s.db.GetRun(r.Context(), id); err != nil {
		return nil, err
	}
	pts, err := s.db.Trajectory(r.Context(), id)
	if err != nil {
		return nil, err
	}
	frames := make([]telemetry.Frame, len(pts))
	for i, p := range pts {
		frames[i] = telemetry.Frame{
			Seq:       p.Seq,
			Phase:     p.Phase,
			Primitive: p.Primitive,
			Pose:      p.Pose,
			Coverage:  p.Coverage,
		}
	}
	return frames, nil
}

func (s *Server) showTrajectory(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) || !s.requireDB(w) {
		return
	}
	id := r.PathValue("id")
	if _, err := s.db.GetRun(r.Context(), id); err != nil {
		writeDBError(w, "run", err)
		return
	}
	pts, err := s.db.Trajectory(r.Context(), id)
	if err != nil {
		writeDBError(w, "trajectory", err)
		return
	}
	if pts == nil {
		pts = []db.TrajectoryPoint{}
	}
	httputil.WriteJSONOK(w, pts)
}

func (s *Server) downloadMap(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) || !s.requireDB(w) {
		return
	}
	id := r.PathValue("id")
	snap, err := s.db.LatestSnapshot(r.Context(), id)
	if err != nil {
		writeDBError(w, "map", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", security.SanitizeFilename("map-"+id)+".txt"))
	fmt.Fprint(w, arena.FormatMap(&snap.Map))
}

// chartSource returns the frames and map a chart page draws: the live run,
// or the run named by the "run" query parameter.
func (s *Server) chartSource(w http.ResponseWriter, r *http.Request) ([]telemetry.Frame, *arena.Snapshot, bool) {
	id := r.URL.Query().Get("run")
	if id == "" {
		frames := s.live()
		if len(frames) == 0 {
			httputil.NotFound(w, "no run in progress")
			return nil, nil, false
		}
		m := frames[len(frames)-1].Map
		return frames, &m, true
	}
	if !s.requireDB(w) {
		return nil, nil, false
	}
	frames, err := s.runFrames(r, id)
	if err != nil {
		writeDBError(w, "run", err)
		return nil, nil, false
	}
	var m arena.Snapshot
	if snap, err := s.db.LatestSnapshot(r.Context(), id); err == nil {
		m = snap.Map
	}
	return frames, &m, true
}

func (s *Server) coverageChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	frames, _, ok := s.chartSource(w, r)
	if !ok {
		return
	}
	s.renderPage(w, plot.CoverageChart(frames, s.assetsHost))
}

func (s *Server) mapChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	frames, m, ok := s.chartSource(w, r)
	if !ok {
		return
	}
	s.renderPage(w, plot.MapChart(m, frames, s.assetsHost))
}

func (s *Server) renderPage(w http.ResponseWriter, cs ...components.Charter) {
	var buf bytes.Buffer
	if err := plot.RenderPage(&buf, s.assetsHost, cs...); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

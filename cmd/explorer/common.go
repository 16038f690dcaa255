package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/maze.explorer/internal/api"
	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/config"
	"github.com/banshee-data/maze.explorer/internal/db"
	"github.com/banshee-data/maze.explorer/internal/explore"
	"github.com/banshee-data/maze.explorer/internal/mdf"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/planner"
	"github.com/banshee-data/maze.explorer/internal/serialmux"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
	"github.com/banshee-data/maze.explorer/internal/tui"
)

// commonFlags are accepted by every run command.
type commonFlags struct {
	config  string
	verbose bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "Run configuration file (.json, .yaml or .yml)")
	fs.BoolVar(&c.verbose, "v", false, "Verbose logging")
}

// load reads the configuration file, or the embedded defaults without one,
// and applies verbosity.
func (c *commonFlags) load() (*config.RunConfig, error) {
	monitoring.SetVerbose(c.verbose)
	if c.config == "" {
		return config.DefaultRunConfig(), nil
	}
	return config.Load(c.config)
}

// override points *dst at v unless v is empty.
func override(dst **string, v string) {
	if v != "" {
		*dst = &v
	}
}

// parseCell reads "row,col".
func parseCell(s string) (*config.Cell, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("cell %q: want row,col", s)
	}
	row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("cell %q: %w", s, err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("cell %q: %w", s, err)
	}
	return &config.Cell{Row: row, Col: col}, nil
}

func exploreConfig(cfg *config.RunConfig, store explore.MapStore, sink telemetry.Sink) explore.Config {
	return explore.Config{
		Start:          cfg.GetStart(),
		ReturnHeading:  cfg.GetReturnHeading(),
		TimeLimit:      cfg.GetTimeLimit(),
		CoverageTarget: cfg.GetCoverageTarget(),
		Planner:        planner.New(planner.WithPolicy(cfg.GetPolicy())),
		Store:          store,
		Sink:           sink,
	}
}

// recording is an optional run record in the database.
type recording struct {
	store *db.DB
	rec   *db.RunRecorder
}

// openRecording opens the run database unless disabled. The returned
// recording is usable, and inert, when disabled.
func openRecording(cfg *config.RunConfig, disabled bool) (*recording, error) {
	if disabled {
		return &recording{}, nil
	}
	store, err := db.Open(cfg.GetDatabase())
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	return &recording{store: store}, nil
}

func (r *recording) Close() {
	if r.store != nil {
		r.store.Close()
	}
}

// start begins a run record and returns it as a map store and sink, both
// nil when recording is off.
func (r *recording) start(ctx context.Context, source string, cfg *config.RunConfig) (explore.MapStore, telemetry.Sink, error) {
	if r.store == nil {
		return nil, nil, nil
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, nil, err
	}
	r.rec, err = r.store.StartRun(ctx, source, string(cfgJSON))
	if err != nil {
		return nil, nil, fmt.Errorf("start run record: %w", err)
	}
	monitoring.Logf("recording run %s to %s", r.rec.Run().ID, r.store.Path())
	return r.rec, r.rec, nil
}

// finish closes the current run record. It runs even after the run's context
// is cancelled so interrupted runs are marked.
func (r *recording) finish(ctx context.Context, res *explore.Result, runErr error) {
	if r.rec == nil {
		return
	}
	sum := db.RunSummary{Outcome: "failed"}
	if res != nil && runErr == nil {
		sum = db.RunSummary{
			Outcome:      res.Outcome.String(),
			Coverage:     res.Coverage,
			Steps:        len(res.Steps),
			Unreachable:  len(res.Unreachable),
			LapCompleted: res.LapCompleted,
		}
	} else if errors.Is(runErr, context.Canceled) {
		sum.Outcome = "aborted"
	}
	if err := r.rec.Finish(context.WithoutCancel(ctx), sum); err != nil {
		monitoring.Logf("failed to finish run record: %v", err)
	}
	r.rec = nil
}

// servers are the dashboard and gRPC telemetry endpoints of a session.
type servers struct {
	sinks []telemetry.Sink
	stops []func()
}

// startServers brings up whichever servers cfg enables. link, when set, gets
// its admin routes mounted on the dashboard.
func startServers(cfg *config.RunConfig, store *db.DB, link serialmux.SerialMuxInterface) (*servers, error) {
	s := &servers{}
	if addr := cfg.GetListen(); addr != "" {
		if err := s.startDashboard(addr, cfg, store, link); err != nil {
			s.Close()
			return nil, err
		}
	}
	if addr := cfg.GetGRPCListen(); addr != "" {
		p := telemetry.NewPublisher()
		if err := p.Start(addr); err != nil {
			s.Close()
			return nil, fmt.Errorf("telemetry gRPC: %w", err)
		}
		s.sinks = append(s.sinks, p)
		s.stops = append(s.stops, p.Stop)
	}
	return s, nil
}

func (s *servers) startDashboard(addr string, cfg *config.RunConfig, store *db.DB, link serialmux.SerialMuxInterface) error {
	hub := telemetry.NewHub()
	dash := api.NewServer(store, api.WithHub(hub), api.WithConfig(cfg))

	mux := http.NewServeMux()
	if store != nil {
		if err := store.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}
	if link != nil {
		link.AttachAdminRoutes(mux)
	}
	mux.Handle("/", dash.ServeMux())

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	server := &http.Server{Handler: api.LoggingMiddleware(mux)}
	go func() {
		if err := server.Serve(lis); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("dashboard server: %v", err)
		}
	}()
	monitoring.Logf("dashboard listening on http://%s", lis.Addr())

	s.sinks = append(s.sinks, dash, hub)
	s.stops = append(s.stops, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			monitoring.Logf("dashboard shutdown error: %v", err)
		}
	})
	return nil
}

// Close stops the servers in reverse order.
func (s *servers) Close() {
	for i := len(s.stops) - 1; i >= 0; i-- {
		s.stops[i]()
	}
	s.stops = nil
}

// printResult writes the run summary, the final map and its descriptors.
func printResult(w io.Writer, res *explore.Result) {
	fmt.Fprintf(w, "outcome:     %s\n", res.Outcome)
	fmt.Fprintf(w, "primitives:  %d\n", len(res.Steps))
	fmt.Fprintf(w, "coverage:    %.1f%%\n", 100*res.Coverage)
	fmt.Fprintf(w, "lap:         %t\n", res.LapCompleted)
	if len(res.Unreachable) > 0 {
		fmt.Fprintf(w, "unreachable: %v\n", res.Unreachable)
	}
	fmt.Fprintf(w, "elapsed:     %s\n", res.Elapsed.Round(time.Millisecond))

	var pose *arena.Pose
	if n := len(res.Steps); n > 0 {
		pose = &res.Steps[n-1].Pose
	}
	fmt.Fprintln(w, tui.RenderMap(&res.Map, pose))

	d := mdf.Encode(&res.Map)
	fmt.Fprintf(w, "MDF explored:  %s\n", d.Explored)
	fmt.Fprintf(w, "MDF obstacles: %s\n", d.Obstacles)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/config"
	"github.com/banshee-data/maze.explorer/internal/explore"
	"github.com/banshee-data/maze.explorer/internal/fsutil"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/robot"
	"github.com/banshee-data/maze.explorer/internal/robotlink"
	"github.com/banshee-data/maze.explorer/internal/sensing"
	"github.com/banshee-data/maze.explorer/internal/serialmux"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
)

func handleServe(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	serialPath := fs.String("serial", "", "Controller serial device")
	baud := fs.Int("baud", 0, "Serial baud rate")
	tcpAddr := fs.String("tcp", "", "Controller bridge address host:port")
	fixture := fs.String("fixture", "", "Dev mode: read controller lines from this file instead of a link")
	output := fs.String("out", "", "Explored map output file")
	dbPath := fs.String("db", "", "Run database path")
	noDB := fs.Bool("no-db", false, "Do not record runs")
	listen := fs.String("listen", "", "Dashboard listen address")
	grpcAddr := fs.String("grpc", "", "Telemetry gRPC listen address")
	mdfInterval := fs.Int("mdf-interval", 0, "Commands between map descriptor updates")
	readTimeout := fs.Duration("read-timeout", 0, "Give up on a silent controller after this long (0 waits forever)")
	skipInitial := fs.Bool("skip-initial-sense", false, "Start moving before the controller reports at the start pose")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	override(&cfg.OutputMap, *output)
	override(&cfg.Database, *dbPath)
	override(&cfg.Listen, *listen)
	override(&cfg.GRPCListen, *grpcAddr)
	if *serialPath != "" || *tcpAddr != "" || *baud != 0 {
		link := cfg.GetLink()
		if *serialPath != "" {
			link.Serial, link.TCP = *serialPath, ""
		}
		if *tcpAddr != "" {
			link.TCP, link.Serial = *tcpAddr, ""
		}
		if *baud != 0 {
			link.Port.BaudRate = *baud
		}
		cfg.Link = &link
	}
	if *mdfInterval != 0 {
		cfg.MDFInterval = mdfInterval
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	mux, err := openLink(ctx, cfg.GetLink(), *fixture)
	if err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
		}
		return err
	}
	defer mux.Close()

	recording, err := openRecording(cfg, *noDB)
	if err != nil {
		return err
	}
	defer recording.Close()

	srv, err := startServers(cfg, recording.store, mux)
	if err != nil {
		return err
	}
	defer srv.Close()

	// subscribe before the monitor starts so no line is missed
	sess := &session{cfg: cfg, recording: recording, sinks: srv.sinks, out: out, skipInitial: *skipInitial}
	sess.link = robotlink.New(mux,
		robotlink.WithMDFInterval(cfg.GetMDFInterval()),
		robotlink.WithMapSource(sess.currentMap),
		robotlink.WithReadTimeout(*readTimeout),
	)
	defer sess.link.Close()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("link monitor: %v", err)
		}
		monitoring.Logf("link monitor terminated")
		// wakes the session when the controller goes away
		mux.Close()
	}()
	defer wg.Wait()
	defer cancel()

	monitoring.Logf("waiting for operator commands")
	return sess.link.Serve(ctx, robotlink.Handlers{Explore: sess.explore, Fastest: sess.fastest})
}

// openLink opens the controller link described by lc. In dev mode the
// fixture's lines are played once and commands go nowhere.
func openLink(ctx context.Context, lc config.LinkConfig, fixture string) (serialmux.SerialMuxInterface, error) {
	switch {
	case fixture != "":
		data, err := os.ReadFile(fixture)
		if err != nil {
			return nil, fmt.Errorf("failed to open fixtures file: %w", err)
		}
		port := serialmux.NewTestableSerialPort()
		port.AddReadData(data)
		return serialmux.NewSerialMux(port), nil
	case lc.TCP != "":
		return serialmux.DialTCP(ctx, lc.TCP, 5*time.Second)
	case lc.Serial != "":
		return serialmux.NewRealSerialMux(lc.Serial, lc.Port)
	}
	fmt.Fprintln(os.Stderr, "serve: a controller link is required (-serial, -tcp or -fixture)")
	return nil, errUsage
}

// session is the state shared by operator commands on one link. Handlers run
// one at a time on the Serve goroutine.
type session struct {
	cfg         *config.RunConfig
	link        *robotlink.Link
	recording   *recording
	sinks       []telemetry.Sink
	out         io.Writer
	skipInitial bool

	grid     *arena.Grid
	explored *arena.Snapshot
}

func (s *session) currentMap() arena.Snapshot {
	if s.grid == nil {
		return arena.Snapshot{}
	}
	return s.grid.Snapshot()
}

func (s *session) explore(ctx context.Context, startCell arena.Position) error {
	start := arena.Pose{Pos: startCell, Heading: s.cfg.GetStart().Heading}
	s.grid = arena.NewGrid()
	r := robot.New(s.grid, start, &sensing.Hardware{Source: s.link}, robot.WithDriver(s.link))

	recStore, recSink, err := s.recording.start(ctx, "hardware", s.cfg)
	if err != nil {
		return err
	}
	store := explore.Stores(arena.MapFile{FS: fsutil.OSFileSystem{}, Path: s.cfg.GetOutputMap()}, recStore)
	cfg := exploreConfig(s.cfg, store, telemetry.Multi(append([]telemetry.Sink{recSink}, s.sinks...)...))
	cfg.Start = start
	cfg.SkipInitialSense = s.skipInitial

	res, err := explore.New(r, cfg).Run(ctx)
	s.recording.finish(ctx, res, err)
	if err != nil {
		return err
	}
	printResult(s.out, res)
	if res.Outcome == explore.Completed {
		m := res.Map
		s.explored = &m
	}
	return nil
}

func (s *session) fastest(ctx context.Context, waypoint *arena.Position) error {
	snap, err := s.knownMap()
	if err != nil {
		return err
	}
	if waypoint == nil {
		waypoint = s.cfg.GetWayPoint()
	}
	start := arena.Pose{Pos: arena.Start, Heading: arena.North}
	plan, route, err := planFastest(snap, start, waypoint, s.cfg.GetGoal(), s.cfg.GetPolicy())
	if err != nil {
		return err
	}
	monitoring.Logf("fastest path: %d moves, cost %d: %s", route.Len(), route.Cost, plan)
	return s.link.DriveAll(ctx, plan.Primitives)
}

// knownMap is this session's last completed exploration, or the saved map.
func (s *session) knownMap() (arena.Snapshot, error) {
	if s.explored != nil {
		return *s.explored, nil
	}
	return arena.LoadMapFile(fsutil.OSFileSystem{}, s.cfg.GetOutputMap())
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/explore"
	"github.com/banshee-data/maze.explorer/internal/fsutil"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/plot"
	"github.com/banshee-data/maze.explorer/internal/replay"
	"github.com/banshee-data/maze.explorer/internal/robot"
	"github.com/banshee-data/maze.explorer/internal/security"
	"github.com/banshee-data/maze.explorer/internal/sensing"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
	"github.com/banshee-data/maze.explorer/internal/timeutil"
	"github.com/banshee-data/maze.explorer/internal/tui"
)

func handleExplore(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("explore", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	truthMap := fs.String("map", "", "Ground truth map file")
	output := fs.String("out", "", "Explored map output file")
	timeLimit := fs.String("time-limit", "", "Exploration time limit, e.g. 6m (0s for none)")
	coverage := fs.Float64("coverage", 0, "Stop once this fraction of the arena is explored")
	stepDelay := fs.String("step-delay", "", "Pause between primitives, e.g. 50ms")
	dbPath := fs.String("db", "", "Run database path")
	noDB := fs.Bool("no-db", false, "Do not record the run")
	listen := fs.String("listen", "", "Dashboard listen address")
	grpcAddr := fs.String("grpc", "", "Telemetry gRPC listen address")
	plotDir := fs.String("plots", "", "Directory for coverage and map plots")
	noPlots := fs.Bool("no-plots", false, "Do not write plots")
	capture := fs.String("capture", "", "Also write the run as a link capture (pcap) for replay")
	useTUI := fs.Bool("tui", false, "Show the run live in the terminal")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	override(&cfg.TruthMap, *truthMap)
	override(&cfg.OutputMap, *output)
	override(&cfg.TimeLimit, *timeLimit)
	override(&cfg.StepDelay, *stepDelay)
	override(&cfg.Database, *dbPath)
	override(&cfg.Listen, *listen)
	override(&cfg.GRPCListen, *grpcAddr)
	override(&cfg.PlotDir, *plotDir)
	if *coverage > 0 {
		cfg.CoverageTarget = coverage
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.GetTruthMap() == "" {
		fmt.Fprintln(os.Stderr, "explore: a ground truth map is required (-map)")
		fs.Usage()
		return errUsage
	}

	fsys := fsutil.OSFileSystem{}
	truth, err := arena.LoadMapFile(fsys, cfg.GetTruthMap())
	if err != nil {
		return err
	}
	outPath := cfg.GetOutputMap()
	if err := security.ValidateOutputPath(outPath, cfg.GetDataDir()); err != nil {
		return err
	}

	recording, err := openRecording(cfg, *noDB)
	if err != nil {
		return err
	}
	defer recording.Close()
	recStore, recSink, err := recording.start(ctx, "simulation", cfg)
	if err != nil {
		return err
	}

	srv, err := startServers(cfg, recording.store, nil)
	if err != nil {
		return err
	}
	defer srv.Close()

	frames := &telemetry.Recorder{}
	sinks := append([]telemetry.Sink{frames, recSink}, srv.sinks...)

	var captureSink *replay.CaptureSink
	if *capture != "" {
		if err := security.ValidateOutputPath(*capture, cfg.GetDataDir()); err != nil {
			return err
		}
		f, err := os.Create(*capture)
		if err != nil {
			return fmt.Errorf("create capture: %w", err)
		}
		defer f.Close()
		w, err := replay.NewWriter(f, replay.DefaultPort)
		if err != nil {
			return err
		}
		captureSink = replay.NewCaptureSink(w, truth)
		sinks = append(sinks, captureSink)
	}

	store := explore.Stores(arena.MapFile{FS: fsys, Path: outPath}, recStore)
	runOnce := func(ctx context.Context, view telemetry.Sink) (*explore.Result, error) {
		r := robot.New(arena.NewGrid(), cfg.GetStart(), sensing.NewGroundTruth(truth),
			robot.WithStepDelay(timeutil.RealClock{}, cfg.GetStepDelay()))
		sink := telemetry.Multi(append(sinks, view)...)
		return explore.New(r, exploreConfig(cfg, store, sink)).Run(ctx)
	}

	var res *explore.Result
	if *useTUI {
		res, err = tui.Run(ctx, tui.Options{Title: "explore " + cfg.GetTruthMap()}, runOnce)
	} else {
		res, err = runOnce(ctx, nil)
	}
	recording.finish(ctx, res, err)
	if err != nil {
		return err
	}
	if captureSink != nil {
		if err := captureSink.Err(); err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		fmt.Fprintf(out, "capture:     %s\n", *capture)
	}

	printResult(out, res)
	if res.LapCompleted {
		fmt.Fprintf(out, "map:         %s\n", outPath)
	}

	if !*noPlots {
		paths, err := plot.WriteRunPlots(fsys, cfg.GetPlotDir(), &res.Map, frames.Frames())
		if err != nil {
			monitoring.Logf("failed to write plots: %v", err)
		} else {
			for _, p := range paths {
				fmt.Fprintf(out, "plot:        %s\n", p)
			}
		}
	}
	return nil
}

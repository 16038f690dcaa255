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
	"github.com/banshee-data/maze.explorer/internal/replay"
	"github.com/banshee-data/maze.explorer/internal/robot"
	"github.com/banshee-data/maze.explorer/internal/security"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
)

func handleReplay(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	capture := fs.String("capture", "", "Link capture (pcap) to replay")
	port := fs.Uint("port", replay.DefaultPort, "Controller bridge TCP/UDP port in the capture")
	output := fs.String("out", "", "Explored map output file")
	dbPath := fs.String("db", "", "Run database path")
	noDB := fs.Bool("no-db", false, "Do not record the replay")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *capture == "" || *port > 65535 {
		fmt.Fprintln(os.Stderr, "replay: a capture file is required (-capture)")
		fs.Usage()
		return errUsage
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	override(&cfg.OutputMap, *output)
	override(&cfg.Database, *dbPath)
	if err := cfg.Validate(); err != nil {
		return err
	}
	// a replay never runs out of time
	noLimit := "0s"
	cfg.TimeLimit = &noLimit
	outPath := cfg.GetOutputMap()
	if err := security.ValidateOutputPath(outPath, cfg.GetDataDir()); err != nil {
		return err
	}

	f, err := os.Open(*capture)
	if err != nil {
		return err
	}
	defer f.Close()
	lines, readings, err := replay.Load(f, uint16(*port))
	if err != nil {
		return err
	}
	recorded, err := replay.Primitives(lines)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "capture:     %d lines, %d sensor frames, %d primitives\n", len(lines), len(readings), len(recorded))

	recording, err := openRecording(cfg, *noDB)
	if err != nil {
		return err
	}
	defer recording.Close()
	recStore, recSink, err := recording.start(ctx, "replay", cfg)
	if err != nil {
		return err
	}

	store := explore.Stores(arena.MapFile{FS: fsutil.OSFileSystem{}, Path: outPath}, recStore)
	res, err := replay.Run(ctx, readings, exploreConfig(cfg, store, telemetry.Multi(recSink)))
	recording.finish(ctx, res, err)
	if err != nil {
		return err
	}

	printResult(out, res)
	fmt.Fprintf(out, "matches capture: %t\n", res.Primitives() == robot.FormatPrimitives(recorded))
	return nil
}

package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/fsutil"
	"github.com/banshee-data/maze.explorer/internal/mdf"
)

func handleMDF(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("mdf", flag.ContinueOnError)
	mapPath := fs.String("map", "", "Map file to describe")
	explored := fs.String("explored", "", "Exploration descriptor to decode")
	obstacles := fs.String("obstacles", "", "Obstacle descriptor to decode (with -explored)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *explored != "":
		snap, err := mdf.Decode(*explored, *obstacles)
		if err != nil {
			return err
		}
		fmt.Fprint(out, arena.FormatMap(&snap))
		return nil
	case *mapPath != "":
		snap, err := arena.LoadMapFile(fsutil.OSFileSystem{}, *mapPath)
		if err != nil {
			return err
		}
		d := mdf.Encode(&snap)
		fmt.Fprintln(out, d.Explored)
		fmt.Fprintln(out, d.Obstacles)
		return nil
	}
	fs.Usage()
	return errUsage
}

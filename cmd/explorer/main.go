// Command explorer maps a 20x15 arena with a right-hand wall following robot
// and plans fastest paths over the result, either in simulation against a
// known map or driving a real robot over its controller link.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/maze.explorer/internal/version"
)

// errUsage marks a bad invocation; the usage text has already been printed.
var errUsage = errors.New("usage")

func main() {
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := dispatch(ctx, flag.Arg(0), flag.Args()[1:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	default:
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func dispatch(ctx context.Context, command string, args []string, out io.Writer) error {
	switch command {
	case "explore":
		return handleExplore(ctx, args, out)
	case "fastest":
		return handleFastest(ctx, args, out)
	case "mdf":
		return handleMDF(args, out)
	case "serve":
		return handleServe(ctx, args, out)
	case "replay":
		return handleReplay(ctx, args, out)
	case "version":
		fmt.Fprintln(out, version.Get())
		return nil
	case "help":
		printUsage(out)
		return nil
	}
	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
	printUsage(os.Stderr)
	return errUsage
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `explorer - arena exploration and fastest path planning

Usage: explorer <command> [options]

Commands:
  explore    Explore a known map in simulation
  fastest    Plan the fastest path over an explored map
  mdf        Print or decode map descriptors
  serve      Drive a robot over its controller link on operator commands
  replay     Re-run an exploration from a captured link session
  version    Show build information
  help       Show this help message

Common Flags:
  -config <file>   Run configuration (.json, .yaml or .yml)
  -v               Verbose logging

Examples:
  # Explore a map with the live terminal view, recording to data/runs.db
  explorer explore -map maps/sample.txt -tui

  # Fastest path through a waypoint
  explorer fastest -map data/explored.txt -waypoint 9,7

  # Wait for StartPoint/WayPoint/FSP from the operator on a serial link
  explorer serve -serial /dev/ttyACM0 -listen :8080
`)
}

// worldfix is a CLI utility that repairs and tunes generated simulation
// worlds: mesh normal reconstruction, up-axis correction, and performance
// optimization of world descriptors.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/osmsim/worldfix/internal/config"
	"github.com/osmsim/worldfix/pkg/formats"
)

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitParse  = 2
	exitConfig = 3
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitError)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "normals":
		cmdNormals(args)
	case "orient":
		cmdOrient(args)
	case "optimize":
		cmdOptimize(args)
	case "pipeline", "all":
		cmdPipeline(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(exitError)
	}
}

func printUsage() {
	fmt.Println(`worldfix - repair and tune generated simulation worlds

Usage:
  worldfix <command> [options]

Commands:
  normals <mesh.obj>     Rebuild per-vertex normals (output: <stem>_fixed.obj)
  orient <world>         Fix mesh up-axis in a world file (output: <stem>_oriented.world)
  optimize <world>       Tune physics/rendering for mesh scale (output: <stem>_optimized.world)
  pipeline <world>       Run all repair stages and publish final artifacts

Common options:
  -o <path>        Output path (default: suffix-qualified next to the input)
  -config <path>   YAML configuration file
  -debug           Enable debug logging

Examples:
  worldfix normals maps/meshes/city.obj
  worldfix orient maps/city.world -factor 3
  worldfix optimize maps/city.world -threshold 50000
  worldfix pipeline maps/city.world -scale 1.0 -simple`)
}

// exitCode maps an error to the process exit code: malformed input and
// bad configuration get distinct codes so callers can tell them apart.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, formats.ErrParse):
		return exitParse
	case errors.Is(err, config.ErrConfig):
		return exitConfig
	default:
		return exitError
	}
}

// fatal prints the error and exits with the taxonomy-mapped code.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCode(err))
}

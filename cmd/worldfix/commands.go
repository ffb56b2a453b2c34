package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/osmsim/worldfix/internal/config"
	"github.com/osmsim/worldfix/internal/diag"
	"github.com/osmsim/worldfix/internal/logger"
	"github.com/osmsim/worldfix/internal/normals"
	"github.com/osmsim/worldfix/internal/optimize"
	"github.com/osmsim/worldfix/internal/orient"
	"github.com/osmsim/worldfix/internal/pipeline"
	"github.com/osmsim/worldfix/pkg/formats"
)

// setup loads and validates configuration, then initializes logging.
// Every subcommand goes through it before touching any input.
func setup(configPath string, debug bool) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fatal(err)
	}
	return cfg
}

// revalidate re-checks configuration after CLI flag overrides.
func revalidate(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
}

// suffixPath inserts a suffix before the path's extension.
func suffixPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// companionMesh locates the mesh asset a world references, preferring the
// URIs in the descriptor and falling back to the generator's
// meshes/<stem>.obj layout. It returns both the filesystem path and the
// descriptor URI the path was resolved from.
func companionMesh(world *formats.World, worldPath string) (path, uri string) {
	dir := filepath.Dir(worldPath)
	for _, m := range world.MeshModels() {
		for _, u := range m.MeshURIs() {
			p := filepath.Join(dir, filepath.FromSlash(u))
			if _, err := os.Stat(p); err == nil {
				return p, u
			}
		}
	}
	stem := strings.TrimSuffix(filepath.Base(worldPath), filepath.Ext(worldPath))
	return filepath.Join(dir, "meshes", stem+".obj"), "meshes/" + stem + ".obj"
}

func cmdNormals(args []string) {
	fs := flag.NewFlagSet("normals", flag.ExitOnError)
	out := fs.String("o", "", "Output path (default: <stem>_fixed.obj)")
	configPath := fs.String("config", "", "YAML configuration file")
	debug := fs.Bool("debug", false, "Enable debug logging")
	simple := fs.Bool("simple", false, "Collapse submesh groups before repair")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: worldfix normals <mesh.obj> [-o output] [-simple]")
		os.Exit(exitError)
	}

	cfg := setup(*configPath, *debug)
	defer logger.Sync()
	if *simple {
		cfg.Mesh.Simple = true
	}

	meshPath := fs.Arg(0)
	outPath := *out
	if outPath == "" {
		outPath = suffixPath(meshPath, "_fixed")
	}

	mesh, err := formats.ParseOBJFile(meshPath)
	if err != nil {
		fatal(err)
	}
	if cfg.Mesh.Simple {
		mesh.FlattenSubmeshes()
	}

	rec := &diag.Recorder{}
	if err := normals.New(cfg.Mesh.DegenerateEpsilon).Repair(mesh, rec); err != nil {
		fatal(err)
	}
	if err := pipeline.WriteAtomic(outPath, mesh.Encode); err != nil {
		fatal(err)
	}

	fmt.Printf("Repaired normals: %s (%d submeshes, %d faces, %d normals, %d warnings)\n",
		outPath, len(mesh.Submeshes), mesh.FaceCount(), mesh.NormalCount(), rec.Count())
}

func cmdOrient(args []string) {
	fs := flag.NewFlagSet("orient", flag.ExitOnError)
	out := fs.String("o", "", "Output path (default: <stem>_oriented.world)")
	configPath := fs.String("config", "", "YAML configuration file")
	debug := fs.Bool("debug", false, "Enable debug logging")
	factor := fs.Float64("factor", 0, "Up-axis extent factor that triggers the fix")
	rotation := fs.String("rotation", "", "Corrective rotation as 'roll pitch yaw' radians")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: worldfix orient <world> [-o output] [-factor F] [-rotation 'r p y']")
		os.Exit(exitError)
	}

	cfg := setup(*configPath, *debug)
	defer logger.Sync()
	if *factor > 0 {
		cfg.Orientation.Factor = *factor
	}
	if *rotation != "" {
		cfg.Orientation.Rotation = *rotation
	}
	revalidate(cfg)

	worldPath := fs.Arg(0)
	outPath := *out
	if outPath == "" {
		outPath = suffixPath(worldPath, "_oriented")
	}

	world, err := formats.ParseWorldFile(worldPath)
	if err != nil {
		fatal(err)
	}
	corrector, err := orient.New(cfg.Orientation)
	if err != nil {
		fatal(err)
	}

	rec := &diag.Recorder{}
	changed := 0
	meshPath, _ := companionMesh(world, worldPath)
	mesh, err := formats.ParseOBJFile(meshPath)
	if err != nil {
		// Orientation is a heuristic improvement; without readable mesh
		// bounds the pose is left as-is.
		rec.Geometryf("cannot read mesh %s: %v; poses left unchanged", meshPath, err)
	} else {
		changed = corrector.CorrectWorld(world, mesh, rec)
	}

	if err := pipeline.WriteAtomic(outPath, func(w io.Writer) error { return world.Encode(w) }); err != nil {
		fatal(err)
	}

	fmt.Printf("Orientation check: %s (%d poses fixed, %d warnings)\n", outPath, changed, rec.Count())
}

func cmdOptimize(args []string) {
	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	out := fs.String("o", "", "Output path (default: <stem>_optimized.world)")
	configPath := fs.String("config", "", "YAML configuration file")
	debug := fs.Bool("debug", false, "Enable debug logging")
	threshold := fs.Int("threshold", 0, "Face count above which collision gets a box proxy")
	sceneThreshold := fs.Int("scene-threshold", 0, "Total face count that enables the performance tier")
	scale := fs.Float64("scale", 0, "Uniform mesh scale assumed when no <scale> is present")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: worldfix optimize <world> [-o output] [-threshold N] [-scene-threshold N]")
		os.Exit(exitError)
	}

	cfg := setup(*configPath, *debug)
	defer logger.Sync()
	if *threshold > 0 {
		cfg.Optimize.LargeMeshFaces = *threshold
	}
	if *sceneThreshold > 0 {
		cfg.Optimize.SceneFaces = *sceneThreshold
	}
	if *scale > 0 {
		cfg.Mesh.Scale = *scale
	}
	revalidate(cfg)

	worldPath := fs.Arg(0)
	outPath := *out
	if outPath == "" {
		outPath = suffixPath(worldPath, "_optimized")
	}

	world, err := formats.ParseWorldFile(worldPath)
	if err != nil {
		fatal(err)
	}
	meshPath, meshURI := companionMesh(world, worldPath)
	mesh, err := formats.ParseOBJFile(meshPath)
	if err != nil {
		fatal(err)
	}

	rec := &diag.Recorder{}
	res := optimize.New(cfg.Optimize, cfg.Mesh.Scale, meshURI).Optimize(world, mesh, rec)

	if err := pipeline.WriteAtomic(outPath, func(w io.Writer) error { return world.Encode(w) }); err != nil {
		fatal(err)
	}

	fmt.Printf("Optimized world: %s (%d faces, performance tier: %v, %d collision proxies, %d warnings)\n",
		outPath, res.TotalFaces, res.PerformanceTier, res.CollisionProxies, rec.Count())
}

func cmdPipeline(args []string) {
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)
	out := fs.String("o", "", "Output world path (default: <stem>_optimized.world)")
	configPath := fs.String("config", "", "YAML configuration file")
	debug := fs.Bool("debug", false, "Enable debug logging")
	scale := fs.Float64("scale", 0, "Uniform mesh scale")
	threshold := fs.Int("threshold", 0, "Face count above which collision gets a box proxy")
	simple := fs.Bool("simple", false, "Collapse submesh groups before repair")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: worldfix pipeline <world> [-o output] [-scale F] [-threshold N] [-simple]")
		os.Exit(exitError)
	}

	cfg := setup(*configPath, *debug)
	defer logger.Sync()
	if *scale > 0 {
		cfg.Mesh.Scale = *scale
	}
	if *threshold > 0 {
		cfg.Optimize.LargeMeshFaces = *threshold
	}
	if *simple {
		cfg.Mesh.Simple = true
	}
	revalidate(cfg)

	res, err := pipeline.New(cfg).Run(fs.Arg(0), *out)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Pipeline %s\n", res.State)
	fmt.Printf("  Fixed mesh:      %s\n", res.FixedMesh)
	fmt.Printf("  Optimized world: %s\n", res.OptimizedWorld)
	if len(res.Warnings) > 0 {
		fmt.Printf("  Warnings:        %d\n", len(res.Warnings))
	}
}

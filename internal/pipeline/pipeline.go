// Package pipeline sequences the repair stages over one world/mesh
// artifact pair: normal repair, orientation check, world optimization,
// and atomic publication of the final artifacts.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/osmsim/worldfix/internal/config"
	"github.com/osmsim/worldfix/internal/diag"
	"github.com/osmsim/worldfix/internal/logger"
	"github.com/osmsim/worldfix/internal/normals"
	"github.com/osmsim/worldfix/internal/optimize"
	"github.com/osmsim/worldfix/internal/orient"
	"github.com/osmsim/worldfix/pkg/formats"
)

// ErrMeshNotFound marks a world whose companion mesh is missing.
var ErrMeshNotFound = errors.New("companion mesh not found")

// State is a pipeline stage marker.
type State int

// Pipeline states. A run walks them in order; any stage failure jumps
// straight to Failed and nothing is published.
const (
	Start State = iota
	NormalsRepaired
	OrientationChecked
	Optimized
	Succeeded
	Failed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Start:
		return "Start"
	case NormalsRepaired:
		return "NormalsRepaired"
	case OrientationChecked:
		return "OrientationChecked"
	case Optimized:
		return "Optimized"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result reports a completed run.
type Result struct {
	State          State
	FixedMesh      string
	OptimizedWorld string
	PosesFixed     int
	Optimization   *optimize.Result
	Warnings       []diag.Diagnostic
}

// Pipeline runs the full repair sequence.
type Pipeline struct {
	cfg *config.Config
}

// New returns a Pipeline for the given configuration. The configuration
// must already be validated.
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Run repairs the world at worldPath and its companion mesh
// (meshes/<stem>.obj beside the world file). The repaired mesh is
// published as meshes/<stem>_fixed.obj and the rewritten world as outPath
// (default <stem>_optimized<ext> beside the input). Inputs are never
// modified; outputs appear only if every stage succeeds.
func (p *Pipeline) Run(worldPath, outPath string) (*Result, error) {
	state := Start
	rec := &diag.Recorder{}

	dir := filepath.Dir(worldPath)
	stem := strings.TrimSuffix(filepath.Base(worldPath), filepath.Ext(worldPath))
	ext := filepath.Ext(worldPath)

	// URIs use forward slashes regardless of platform.
	meshURI := "meshes/" + stem + ".obj"
	meshPath := filepath.Join(dir, "meshes", stem+".obj")
	fixedMeshPath := filepath.Join(dir, "meshes", stem+"_fixed.obj")
	if outPath == "" {
		outPath = filepath.Join(dir, stem+"_optimized"+ext)
	}

	fail := func(stage string, err error) (*Result, error) {
		logger.Error("pipeline failed",
			zap.String("stage", stage),
			zap.Stringer("state", state),
			zap.Error(err))
		return &Result{State: Failed, Warnings: rec.Warnings()}, err
	}

	logger.Info("pipeline start",
		zap.String("world", worldPath),
		zap.String("mesh", meshPath))

	if _, err := os.Stat(meshPath); err != nil {
		return fail("locate mesh", fmt.Errorf("%w: %s", ErrMeshNotFound, meshPath))
	}

	// Stage 1: normal repair.
	mesh, err := formats.ParseOBJFile(meshPath)
	if err != nil {
		return fail("parse mesh", err)
	}
	if p.cfg.Mesh.Simple {
		mesh.FlattenSubmeshes()
	}
	calc := normals.New(p.cfg.Mesh.DegenerateEpsilon)
	if err := calc.Repair(mesh, rec); err != nil {
		return fail("repair normals", err)
	}
	state = NormalsRepaired
	logger.Info("normals repaired",
		zap.Int("submeshes", len(mesh.Submeshes)),
		zap.Int("faces", mesh.FaceCount()),
		zap.Int("normals", mesh.NormalCount()))

	// Stage 2: orientation check.
	world, err := formats.ParseWorldFile(worldPath)
	if err != nil {
		return fail("parse world", err)
	}
	corrector, err := orient.New(p.cfg.Orientation)
	if err != nil {
		return fail("orientation config", err)
	}
	posesFixed := corrector.CorrectWorld(world, mesh, rec)
	state = OrientationChecked

	// Stage 3: world optimization.
	opt := optimize.New(p.cfg.Optimize, p.cfg.Mesh.Scale, meshURI)
	optRes := opt.Optimize(world, mesh, rec)
	state = Optimized

	// Point the world at the repaired mesh.
	newURI := "meshes/" + stem + "_fixed.obj"
	rewritten := 0
	for _, m := range world.Models() {
		rewritten += m.RewriteMeshURIs(meshURI, newURI)
	}
	if rewritten == 0 {
		rec.Structuralf("no mesh reference %q found in world; URIs left unchanged", meshURI)
	}

	// Stage both artifacts first and rename them into place only after
	// both writes have succeeded, so a failed write never publishes a
	// partial artifact set.
	stagedMesh, err := Stage(fixedMeshPath, mesh.Encode)
	if err != nil {
		return fail("stage mesh", err)
	}
	stagedWorld, err := Stage(outPath, func(w io.Writer) error { return world.Encode(w) })
	if err != nil {
		stagedMesh.Abort()
		return fail("stage world", err)
	}
	if err := stagedMesh.Commit(); err != nil {
		stagedWorld.Abort()
		return fail("publish mesh", err)
	}
	if err := stagedWorld.Commit(); err != nil {
		return fail("publish world", err)
	}
	state = Succeeded

	logger.Info("pipeline complete",
		zap.String("fixed_mesh", fixedMeshPath),
		zap.String("optimized_world", outPath),
		zap.Int("poses_fixed", posesFixed),
		zap.Int("warnings", rec.Count()))

	return &Result{
		State:          state,
		FixedMesh:      fixedMeshPath,
		OptimizedWorld: outPath,
		PosesFixed:     posesFixed,
		Optimization:   optRes,
		Warnings:       rec.Warnings(),
	}, nil
}

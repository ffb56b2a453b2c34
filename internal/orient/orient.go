// Package orient detects and fixes up-axis misalignment in world models.
//
// Meshes produced by the upstream generator are often authored with a
// different up convention than the simulator expects, leaving the
// environment standing on its side. The fix is a fixed 90-degree roll
// written into the model's pose.
package orient

import (
	"math"

	"go.uber.org/zap"

	"github.com/osmsim/worldfix/internal/config"
	"github.com/osmsim/worldfix/internal/diag"
	"github.com/osmsim/worldfix/internal/logger"
	"github.com/osmsim/worldfix/pkg/formats"
)

// rotationTolerance is the per-component slack when deciding whether the
// corrective rotation is already present.
const rotationTolerance = 1e-6

// Corrector applies the up-axis correction to model poses.
type Corrector struct {
	factor float64
	rpy    [3]float64
}

// New builds a Corrector from configuration. The rotation string must be
// valid; call config.Validate first.
func New(cfg config.OrientationConfig) (*Corrector, error) {
	rpy, err := cfg.RPY()
	if err != nil {
		return nil, err
	}
	return &Corrector{factor: cfg.Factor, rpy: rpy}, nil
}

// Misaligned reports whether the mesh bounding box indicates the wrong up
// axis: the extent along the world up axis exceeds the larger horizontal
// extent by more than the configured factor. Meshes with fewer than three
// vertices have no usable bounding box; they report a geometry warning and
// are left alone.
func (c *Corrector) Misaligned(mesh *formats.OBJ, rec *diag.Recorder) bool {
	if len(mesh.Vertices) < 3 {
		rec.Geometryf("mesh has %d vertices, bounding box undetectable; pose left unchanged", len(mesh.Vertices))
		return false
	}

	size := mesh.Bounds().Size()
	horizontal := math.Max(size.X, size.Y)
	if horizontal <= 0 {
		return size.Z > 0
	}
	return size.Z > c.factor*horizontal
}

// Correct applies the corrective rotation to the model if the mesh is
// misaligned and the fix is not already present. The model's translation
// is preserved; only the rotation component is rewritten. Returns whether
// the pose was changed.
func (c *Corrector) Correct(model *formats.Model, mesh *formats.OBJ, rec *diag.Recorder) bool {
	if !c.Misaligned(mesh, rec) {
		return false
	}
	if c.applied(model) {
		logger.Debug("orientation fix already present",
			zap.String("model", model.Name()))
		return false
	}

	pose, _ := model.Pose()
	pose[3], pose[4], pose[5] = c.rpy[0], c.rpy[1], c.rpy[2]
	model.SetPose(pose)

	logger.Info("applied orientation fix",
		zap.String("model", model.Name()),
		zap.String("pose", pose.String()))
	return true
}

// CorrectWorld runs Correct over every mesh-referencing model in the world
// and returns the number of poses changed.
func (c *Corrector) CorrectWorld(world *formats.World, mesh *formats.OBJ, rec *diag.Recorder) int {
	changed := 0
	for _, m := range world.MeshModels() {
		if c.Correct(m, mesh, rec) {
			changed++
		}
	}
	return changed
}

// applied reports whether the model's pose rotation already matches the
// corrective rotation.
func (c *Corrector) applied(model *formats.Model) bool {
	pose, ok := model.Pose()
	if !ok {
		return false
	}
	for i := 0; i < 3; i++ {
		if math.Abs(pose[3+i]-c.rpy[i]) > rotationTolerance {
			return false
		}
	}
	return true
}

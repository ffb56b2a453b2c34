// Package optimize rewrites world descriptor physics and rendering
// settings based on mesh scale, so large generated environments load and
// simulate without crashing the consumer.
//
// All edits are targeted and idempotent: running the optimizer twice over
// the same descriptor and mesh yields the same document, and subtrees the
// optimizer does not understand are never touched.
package optimize

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/osmsim/worldfix/internal/config"
	"github.com/osmsim/worldfix/internal/diag"
	"github.com/osmsim/worldfix/internal/logger"
	"github.com/osmsim/worldfix/pkg/formats"
	"github.com/osmsim/worldfix/pkg/geom"
)

// minProxyThickness keeps the box proxy from collapsing to a zero-volume
// slab on flat terrain meshes.
const minProxyThickness = 0.1

// Optimizer applies threshold-driven performance rewrites.
type Optimizer struct {
	cfg     config.OptimizeConfig
	scale   float64
	meshURI string
}

// New returns an Optimizer with the given thresholds. scale is the
// uniform mesh scale assumed when a mesh reference carries no <scale>
// element of its own. meshURI names the mesh asset the face counts and
// bounds describe; collision proxying is confined to models referencing
// it. An empty meshURI matches any mesh reference.
func New(cfg config.OptimizeConfig, scale float64, meshURI string) *Optimizer {
	if scale <= 0 {
		scale = 1
	}
	return &Optimizer{cfg: cfg, scale: scale, meshURI: meshURI}
}

// Result summarizes what a pass changed.
type Result struct {
	TotalFaces       int
	PerformanceTier  bool
	CollisionProxies int
	ModelsMadeStatic int
	ShadowsDisabled  bool
}

// Optimize rewrites the descriptor in place based on the repaired mesh's
// scale. Missing expected subtrees are filled with generator defaults and
// reported as structural warnings rather than failing.
func (o *Optimizer) Optimize(world *formats.World, mesh *formats.OBJ, rec *diag.Recorder) *Result {
	res := &Result{TotalFaces: mesh.FaceCount()}
	res.PerformanceTier = res.TotalFaces > o.cfg.SceneFaces

	o.ensurePhysics(world, rec)
	o.ensureScene(world, rec)

	if res.PerformanceTier {
		o.tunePhysics(world.Physics())
		o.disableShadows(world)
		res.ShadowsDisabled = true
	}

	for _, model := range world.Models() {
		if o.usesMesh(model) && res.TotalFaces > o.cfg.LargeMeshFaces {
			res.CollisionProxies += o.proxyCollisions(model, mesh)
		}
		if o.pinStatic(model) {
			res.ModelsMadeStatic++
		}
	}

	logger.Info("world optimized",
		zap.Int("total_faces", res.TotalFaces),
		zap.Bool("performance_tier", res.PerformanceTier),
		zap.Int("collision_proxies", res.CollisionProxies),
		zap.Int("models_made_static", res.ModelsMadeStatic))
	return res
}

// ensurePhysics inserts the default physics subtree when absent.
func (o *Optimizer) ensurePhysics(world *formats.World, rec *diag.Recorder) {
	if world.Physics() != nil {
		return
	}
	rec.Structuralf("world %q has no physics subtree; inserting defaults", world.Name())
	world.Root().InsertChildAt(0, defaultPhysics())
}

// ensureScene inserts the default scene subtree when absent.
func (o *Optimizer) ensureScene(world *formats.World, rec *diag.Recorder) {
	if world.Scene() != nil {
		return
	}
	rec.Structuralf("world %q has no scene subtree; inserting defaults", world.Name())
	idx := 0
	if ph := world.Physics(); ph != nil {
		idx = ph.Index() + 1
	}
	world.Root().InsertChildAt(idx, defaultScene())
}

// tunePhysics applies the performance-tier solver settings.
func (o *Optimizer) tunePhysics(physics *etree.Element) {
	setPathText(physics, []string{"ode", "solver", "iters"}, strconv.Itoa(o.cfg.SolverIters))
	setPathText(physics, []string{"max_step_size"}, formatFloat(o.cfg.MaxStepSize))
	setPathText(physics, []string{"real_time_update_rate"}, formatFloat(o.cfg.RealTimeUpdateRate))
	setPathText(physics, []string{"ode", "constraints", "contact_surface_layer"}, formatFloat(o.cfg.ContactSurfaceLayer))
	setPathText(physics, []string{"ode", "max_contacts"}, strconv.Itoa(o.cfg.MaxContacts))
}

// disableShadows turns off scene shadows and per-light shadow casting.
func (o *Optimizer) disableShadows(world *formats.World) {
	if scene := world.Scene(); scene != nil {
		setPathText(scene, []string{"shadows"}, "0")
	}
	for _, light := range world.Lights() {
		if cast := light.SelectElement("cast_shadows"); cast != nil {
			cast.SetText("0")
		}
	}
}

// proxyCollisions replaces full-mesh collision geometry with a bounding
// box sized from the repaired mesh. Collisions already carrying a box (or
// any non-mesh geometry) are left alone, which makes a second pass a
// no-op. Returns the number of collisions rewritten.
func (o *Optimizer) proxyCollisions(model *formats.Model, mesh *formats.OBJ) int {
	bounds := mesh.Bounds()
	if !bounds.Valid() {
		return 0
	}

	replaced := 0
	for _, collision := range model.Collisions() {
		geometry := collision.SelectElement("geometry")
		if geometry == nil {
			continue
		}
		meshEl := geometry.SelectElement("mesh")
		if meshEl == nil {
			continue
		}

		scale := o.scale
		if s, ok := meshElementScale(meshEl); ok {
			scale = s
		}
		size := bounds.Size().Scale(scale)

		geometry.RemoveChild(meshEl)
		box := geometry.CreateElement("box")
		box.CreateElement("size").SetText(formatSize(size))
		replaced++

		logger.Debug("collision replaced with box proxy",
			zap.String("model", model.Name()),
			zap.String("collision", collision.SelectAttrValue("name", "")),
			zap.String("size", formatSize(size)))
	}
	return replaced
}

// pinStatic marks the model immovable unless it is explicitly flagged
// dynamic. Returns whether the flag was added.
func (o *Optimizer) pinStatic(model *formats.Model) bool {
	if _, present := model.Static(); present {
		// An explicit <static>false</static> flags the model dynamic;
		// either way the descriptor has already decided.
		return false
	}
	model.SetStatic(true)
	return true
}

// usesMesh reports whether the model references the mesh the optimizer
// was built for. Models referencing other mesh assets keep their
// collision geometry: the loaded face count and bounds say nothing about
// them.
func (o *Optimizer) usesMesh(model *formats.Model) bool {
	uris := model.MeshURIs()
	if o.meshURI == "" {
		return len(uris) > 0
	}
	for _, uri := range uris {
		if uri == o.meshURI {
			return true
		}
	}
	return false
}

// meshElementScale reads the uniform scale from a <mesh> element.
func meshElementScale(meshEl *etree.Element) (float64, bool) {
	scaleEl := meshEl.SelectElement("scale")
	if scaleEl == nil {
		return 0, false
	}
	var x, y, z float64
	if _, err := fmt.Sscan(scaleEl.Text(), &x, &y, &z); err != nil {
		return 0, false
	}
	return x, true
}

// setPathText sets the text of the element at the path below root,
// creating missing path elements along the way.
func setPathText(root *etree.Element, path []string, text string) {
	el := root
	for _, name := range path {
		next := el.SelectElement(name)
		if next == nil {
			next = el.CreateElement(name)
		}
		el = next
	}
	el.SetText(text)
}

// formatFloat renders a float with minimal digits.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatSize renders box dimensions, enforcing the minimum thickness.
func formatSize(size geom.Vec3) string {
	clamp := func(v float64) float64 {
		if v < minProxyThickness {
			return minProxyThickness
		}
		return v
	}
	return fmt.Sprintf("%s %s %s",
		formatFloat(clamp(size.X)),
		formatFloat(clamp(size.Y)),
		formatFloat(clamp(size.Z)))
}

package orient

import (
	"bytes"
	"testing"

	"github.com/osmsim/worldfix/internal/config"
	"github.com/osmsim/worldfix/internal/diag"
	"github.com/osmsim/worldfix/pkg/formats"
	"github.com/osmsim/worldfix/pkg/geom"
)

const worldDoc = `<sdf version="1.7">
  <world name="osm_world">
    <model name="osm_environment">
      <static>true</static>
      <link name="osm_mesh_link">
        <visual name="osm_visual">
          <geometry>
            <mesh>
              <uri>meshes/city.obj</uri>
            </mesh>
          </geometry>
        </visual>
      </link>
    </model>
  </world>
</sdf>
`

func newCorrector(t *testing.T) *Corrector {
	t.Helper()
	c, err := New(config.Default().Orientation)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

// boxMesh returns a mesh whose bounding box has the given extents.
func boxMesh(x, y, z float64) *formats.OBJ {
	return &formats.OBJ{
		Vertices: []geom.Vec3{
			{X: 0, Y: 0, Z: 0},
			{X: x, Y: y, Z: 0},
			{X: x, Y: 0, Z: z},
		},
	}
}

func TestMisaligned(t *testing.T) {
	c := newCorrector(t) // factor 3.0

	tests := []struct {
		name string
		mesh *formats.OBJ
		want bool
	}{
		{"flat terrain", boxMesh(100, 80, 5), false},
		{"vertical mesh", boxMesh(2, 1, 10), true},
		{"exactly at factor", boxMesh(2, 1, 6), false},
		{"tall thin wall", boxMesh(1, 0.1, 20), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec diag.Recorder
			if got := c.Misaligned(tt.mesh, &rec); got != tt.want {
				t.Errorf("Misaligned() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMisalignedTooFewVertices(t *testing.T) {
	c := newCorrector(t)
	var rec diag.Recorder

	mesh := &formats.OBJ{Vertices: []geom.Vec3{{X: 0, Y: 0, Z: 100}}}
	if c.Misaligned(mesh, &rec) {
		t.Error("Misaligned() = true for 1-vertex mesh, want false")
	}
	if rec.Count() != 1 {
		t.Errorf("diagnostics = %d, want 1 geometry warning", rec.Count())
	}
}

func TestCorrectAppliesRoll(t *testing.T) {
	world, err := formats.ParseWorld([]byte(worldDoc))
	if err != nil {
		t.Fatal(err)
	}
	c := newCorrector(t)
	var rec diag.Recorder

	changed := c.CorrectWorld(world, boxMesh(2, 1, 10), &rec)
	if changed != 1 {
		t.Fatalf("CorrectWorld() = %d, want 1", changed)
	}

	m, _ := world.FindModel("osm_environment")
	pose, ok := m.Pose()
	if !ok {
		t.Fatal("pose absent after correction")
	}
	if pose.Roll() != 1.5708 {
		t.Errorf("Roll = %v, want 1.5708", pose.Roll())
	}
}

func TestCorrectPreservesTranslation(t *testing.T) {
	world, err := formats.ParseWorld([]byte(worldDoc))
	if err != nil {
		t.Fatal(err)
	}
	m, _ := world.FindModel("osm_environment")
	m.SetPose(formats.Pose{5, 6, 7, 0, 0, 0})

	c := newCorrector(t)
	var rec diag.Recorder
	if !c.Correct(m, boxMesh(2, 1, 10), &rec) {
		t.Fatal("Correct() = false, want applied")
	}

	pose, _ := m.Pose()
	want := formats.Pose{5, 6, 7, 1.5708, 0, 0}
	if pose != want {
		t.Errorf("pose = %v, want %v", pose, want)
	}
}

func TestCorrectIdempotent(t *testing.T) {
	world, err := formats.ParseWorld([]byte(worldDoc))
	if err != nil {
		t.Fatal(err)
	}
	c := newCorrector(t)
	mesh := boxMesh(2, 1, 10)
	var rec diag.Recorder

	if n := c.CorrectWorld(world, mesh, &rec); n != 1 {
		t.Fatalf("first pass changed %d poses, want 1", n)
	}
	first, err := world.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	if n := c.CorrectWorld(world, mesh, &rec); n != 0 {
		t.Errorf("second pass changed %d poses, want 0", n)
	}
	second, err := world.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("second pass modified the document")
	}
}

func TestCorrectExistingFixIsByteIdentical(t *testing.T) {
	// A descriptor whose pose already encodes the fix stays untouched.
	world, err := formats.ParseWorld([]byte(worldDoc))
	if err != nil {
		t.Fatal(err)
	}
	m, _ := world.FindModel("osm_environment")
	m.SetPose(formats.Pose{0, 0, 0, 1.5708, 0, 0})
	before, err := world.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	c := newCorrector(t)
	var rec diag.Recorder
	if c.Correct(m, boxMesh(2, 1, 10), &rec) {
		t.Error("Correct() = true on already-fixed pose, want no-op")
	}
	after, err := world.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("already-fixed descriptor was modified")
	}
}

func TestCorrectAlignedMeshNoPose(t *testing.T) {
	world, err := formats.ParseWorld([]byte(worldDoc))
	if err != nil {
		t.Fatal(err)
	}
	c := newCorrector(t)
	var rec diag.Recorder

	if n := c.CorrectWorld(world, boxMesh(100, 80, 5), &rec); n != 0 {
		t.Errorf("CorrectWorld() = %d on aligned mesh, want 0", n)
	}
	m, _ := world.FindModel("osm_environment")
	if _, ok := m.Pose(); ok {
		t.Error("pose created for aligned mesh")
	}
}

func TestCustomRotation(t *testing.T) {
	cfg := config.Default().Orientation
	cfg.Rotation = "0 0 1.5708"
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	world, _ := formats.ParseWorld([]byte(worldDoc))
	m, _ := world.FindModel("osm_environment")
	var rec diag.Recorder
	if !c.Correct(m, boxMesh(2, 1, 10), &rec) {
		t.Fatal("Correct() = false, want applied")
	}
	pose, _ := m.Pose()
	if pose[5] != 1.5708 || pose[3] != 0 {
		t.Errorf("pose = %v, want yaw-only rotation", pose)
	}
}

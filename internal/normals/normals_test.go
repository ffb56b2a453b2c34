package normals

import (
	"math"
	"testing"

	"github.com/osmsim/worldfix/internal/diag"
	"github.com/osmsim/worldfix/pkg/formats"
	"github.com/osmsim/worldfix/pkg/geom"
)

func triangleMesh() *formats.OBJ {
	return &formats.OBJ{
		Vertices: []geom.Vec3{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
		},
		Submeshes: []formats.Submesh{{
			Name: "tri",
			Faces: []formats.Face{{Corners: []formats.FaceCorner{
				{Vertex: 0, TexCoord: -1, Normal: -1},
				{Vertex: 1, TexCoord: -1, Normal: -1},
				{Vertex: 2, TexCoord: -1, Normal: -1},
			}}},
		}},
	}
}

func face(indices ...int) formats.Face {
	f := formats.Face{}
	for _, i := range indices {
		f.Corners = append(f.Corners, formats.FaceCorner{Vertex: i, TexCoord: -1, Normal: -1})
	}
	return f
}

func almostEqual(a, b geom.Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}

func TestRepairSingleTriangle(t *testing.T) {
	mesh := triangleMesh()
	var rec diag.Recorder

	if err := New(1e-12).Repair(mesh, &rec); err != nil {
		t.Fatalf("Repair() error: %v", err)
	}

	s := &mesh.Submeshes[0]
	if len(s.Normals) != 3 {
		t.Fatalf("normal count = %d, want 3", len(s.Normals))
	}

	// All three normals equal the face normal (+Z for CCW in the XY plane).
	want := geom.Vec3{X: 0, Y: 0, Z: 1}
	for i, n := range s.Normals {
		if !almostEqual(n, want, 1e-9) {
			t.Errorf("normal[%d] = %v, want %v", i, n, want)
		}
	}

	// Every face corner carries a normal index parallel to its vertex.
	for _, c := range s.Faces[0].Corners {
		if c.Normal < 0 || c.Normal >= len(s.Normals) {
			t.Errorf("corner normal index %d out of range", c.Normal)
		}
	}
	if rec.Count() != 0 {
		t.Errorf("unexpected diagnostics: %v", rec.Warnings())
	}
}

func TestRepairSharedEdgeAreaWeighted(t *testing.T) {
	// Two triangles sharing the edge (0,1): one in the XY plane (normal
	// +Z), one tilted into the XZ plane (normal -Y). The shared vertices'
	// normals are the area-weighted average; the unshared ones match
	// their single face exactly.
	mesh := &formats.OBJ{
		Vertices: []geom.Vec3{
			{X: 0, Y: 0, Z: 0},
			{X: 2, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
			{X: 0, Y: 0, Z: 3},
		},
		Submeshes: []formats.Submesh{{
			Faces: []formats.Face{
				face(0, 1, 2),
				face(0, 3, 1),
			},
		}},
	}
	var rec diag.Recorder

	if err := New(1e-12).Repair(mesh, &rec); err != nil {
		t.Fatalf("Repair() error: %v", err)
	}

	s := &mesh.Submeshes[0]
	if len(s.Normals) != 4 {
		t.Fatalf("normal count = %d, want 4", len(s.Normals))
	}

	// Unnormalized face normals: f0 = (0,0,2), f1 = (0,6,0).
	f0 := geom.Vec3{X: 0, Y: 0, Z: 2}
	f1 := geom.Vec3{X: 0, Y: 6, Z: 0}
	wantShared := f0.Add(f1).Normalize()

	refs := s.ReferencedVertices()
	byVertex := make(map[int]geom.Vec3)
	for li, vi := range refs {
		byVertex[vi] = s.Normals[li]
	}

	for _, vi := range []int{0, 1} {
		if !almostEqual(byVertex[vi], wantShared, 1e-9) {
			t.Errorf("shared vertex %d normal = %v, want %v", vi, byVertex[vi], wantShared)
		}
	}
	if !almostEqual(byVertex[2], f0.Normalize(), 1e-9) {
		t.Errorf("vertex 2 normal = %v, want %v", byVertex[2], f0.Normalize())
	}
	if !almostEqual(byVertex[3], f1.Normalize(), 1e-9) {
		t.Errorf("vertex 3 normal = %v, want %v", byVertex[3], f1.Normalize())
	}
}

func TestRepairDegenerateFaceFallback(t *testing.T) {
	// All three corners collinear: the face contributes nothing, and its
	// vertices get the up-axis fallback instead of NaN or zero.
	mesh := &formats.OBJ{
		Vertices: []geom.Vec3{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 2, Y: 0, Z: 0},
		},
		Submeshes: []formats.Submesh{{Faces: []formats.Face{face(0, 1, 2)}}},
	}
	var rec diag.Recorder

	if err := New(1e-12).Repair(mesh, &rec); err != nil {
		t.Fatalf("Repair() error: %v", err)
	}

	s := &mesh.Submeshes[0]
	for i, n := range s.Normals {
		if math.IsNaN(n.X) || math.IsNaN(n.Y) || math.IsNaN(n.Z) {
			t.Errorf("normal[%d] contains NaN: %v", i, n)
		}
		if n != geom.UnitZ {
			t.Errorf("normal[%d] = %v, want up-axis fallback %v", i, n, geom.UnitZ)
		}
	}
	if rec.Count() == 0 {
		t.Error("expected geometry diagnostics for degenerate face")
	}
}

func TestRepairDuplicateVertexFace(t *testing.T) {
	mesh := &formats.OBJ{
		Vertices:  []geom.Vec3{{X: 1, Y: 2, Z: 3}},
		Submeshes: []formats.Submesh{{Faces: []formats.Face{face(0, 0, 0)}}},
	}
	var rec diag.Recorder

	if err := New(1e-12).Repair(mesh, &rec); err != nil {
		t.Fatalf("Repair() error: %v", err)
	}
	s := &mesh.Submeshes[0]
	if len(s.Normals) != 1 {
		t.Fatalf("normal count = %d, want 1", len(s.Normals))
	}
	if s.Normals[0] != geom.UnitZ {
		t.Errorf("normal = %v, want fallback %v", s.Normals[0], geom.UnitZ)
	}
}

func TestRepairSubmeshIndependence(t *testing.T) {
	// Two submeshes share vertices 0 and 1 but have opposite-facing
	// geometry; each must get its own locally consistent normals.
	mesh := &formats.OBJ{
		Vertices: []geom.Vec3{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
		},
		Submeshes: []formats.Submesh{
			{Name: "up", Faces: []formats.Face{face(0, 1, 2)}},
			{Name: "down", Faces: []formats.Face{face(0, 2, 1)}},
		},
	}
	var rec diag.Recorder

	if err := New(1e-12).Repair(mesh, &rec); err != nil {
		t.Fatalf("Repair() error: %v", err)
	}

	up := geom.Vec3{X: 0, Y: 0, Z: 1}
	down := geom.Vec3{X: 0, Y: 0, Z: -1}
	for _, n := range mesh.Submeshes[0].Normals {
		if !almostEqual(n, up, 1e-9) {
			t.Errorf("submesh up: normal = %v, want %v", n, up)
		}
	}
	for _, n := range mesh.Submeshes[1].Normals {
		if !almostEqual(n, down, 1e-9) {
			t.Errorf("submesh down: normal = %v, want %v", n, down)
		}
	}
}

func TestRepairNormalCountMatchesVertexCount(t *testing.T) {
	mesh := &formats.OBJ{
		Vertices: []geom.Vec3{
			{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0},
			{X: 0, Y: 1, Z: 0}, {X: 0.5, Y: 0.5, Z: 1},
		},
		Submeshes: []formats.Submesh{{
			Faces: []formats.Face{
				face(0, 1, 2, 3), // quad
				face(0, 1, 4),
			},
		}},
	}
	var rec diag.Recorder

	if err := New(1e-12).Repair(mesh, &rec); err != nil {
		t.Fatalf("Repair() error: %v", err)
	}

	for i := range mesh.Submeshes {
		s := &mesh.Submeshes[i]
		if got, want := len(s.Normals), len(s.ReferencedVertices()); got != want {
			t.Errorf("submesh %d: normal count %d != referenced vertex count %d", i, got, want)
		}
		for _, n := range s.Normals {
			if l := n.Length(); math.Abs(l-1) > 1e-5 {
				t.Errorf("normal %v has length %v, want 1", n, l)
			}
		}
	}
}

func TestRepairOutOfRangeVertex(t *testing.T) {
	mesh := &formats.OBJ{
		Vertices:  []geom.Vec3{{X: 0, Y: 0, Z: 0}},
		Submeshes: []formats.Submesh{{Faces: []formats.Face{face(0, 1, 2)}}},
	}
	var rec diag.Recorder

	if err := New(1e-12).Repair(mesh, &rec); err == nil {
		t.Fatal("Repair() = nil, want index range error")
	}
}

// Package normals reconstructs per-vertex surface normals for meshes that
// lack them, as required by physics consumers that reject meshes whose
// normal tables do not match their vertex counts.
package normals

import (
	"fmt"

	"github.com/osmsim/worldfix/internal/diag"
	"github.com/osmsim/worldfix/pkg/formats"
	"github.com/osmsim/worldfix/pkg/geom"
)

// Calculator rebuilds submesh normal tables.
type Calculator struct {
	// Epsilon is the cross-product magnitude below which a face is
	// treated as degenerate and contributes nothing.
	Epsilon float64
}

// New returns a Calculator with the given degenerate-face epsilon.
func New(epsilon float64) *Calculator {
	return &Calculator{Epsilon: epsilon}
}

// Repair rebuilds every submesh's normal table in place so that each table
// has exactly one unit normal per distinct vertex the submesh references,
// and every face corner carries a normal index parallel to its vertex
// index.
//
// Each submesh is processed independently: two submeshes sharing a vertex
// each get their own locally consistent normal. Face normals are
// accumulated unnormalized, so larger triangles weigh more (area-weighted
// averaging). Vertices with no valid contribution fall back to the up
// axis; the output never contains a zero-length normal.
func (c *Calculator) Repair(mesh *formats.OBJ, rec *diag.Recorder) error {
	for i := range mesh.Submeshes {
		if err := c.repairSubmesh(mesh, i, rec); err != nil {
			return err
		}
	}
	return nil
}

func (c *Calculator) repairSubmesh(mesh *formats.OBJ, idx int, rec *diag.Recorder) error {
	s := &mesh.Submeshes[idx]

	refs := s.ReferencedVertices()
	local := make(map[int]int, len(refs))
	for li, vi := range refs {
		if vi < 0 || vi >= len(mesh.Vertices) {
			return fmt.Errorf("%w: submesh %q vertex %d", formats.ErrFaceIndexRange, s.Name, vi)
		}
		local[vi] = li
	}

	acc := make([]geom.Vec3, len(refs))
	degenerate := 0

	for _, f := range s.Faces {
		if len(f.Corners) < 3 {
			degenerate++
			continue
		}

		// Face normal from the first three corners, in declared winding
		// order. The unnormalized cross product has magnitude 2x the
		// triangle area, which is exactly the accumulation weight.
		v0 := mesh.Vertices[f.Corners[0].Vertex]
		v1 := mesh.Vertices[f.Corners[1].Vertex]
		v2 := mesh.Vertices[f.Corners[2].Vertex]

		cross := v1.Sub(v0).Cross(v2.Sub(v0))
		if cross.Length() < c.Epsilon {
			degenerate++
			continue
		}

		for _, corner := range f.Corners {
			li := local[corner.Vertex]
			acc[li] = acc[li].Add(cross)
		}
	}

	fallbacks := 0
	normalsTable := make([]geom.Vec3, len(refs))
	for li, a := range acc {
		n := a.Normalize()
		if n.IsZero() {
			// Isolated vertex, all incident faces degenerate, or exact
			// cancellation of opposing faces.
			n = geom.UnitZ
			fallbacks++
		}
		normalsTable[li] = n
	}

	s.Normals = normalsTable
	for fi := range s.Faces {
		for ci := range s.Faces[fi].Corners {
			corner := &s.Faces[fi].Corners[ci]
			corner.Normal = local[corner.Vertex]
		}
	}

	if degenerate > 0 {
		rec.Geometryf("submesh %q: skipped %d degenerate face(s)", s.Name, degenerate)
	}
	if fallbacks > 0 {
		rec.Geometryf("submesh %q: %d vertex normal(s) fell back to the up axis", s.Name, fallbacks)
	}

	return nil
}

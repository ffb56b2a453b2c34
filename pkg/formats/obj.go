// Package formats provides parsers and writers for simulation artifact formats.
package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/osmsim/worldfix/pkg/geom"
)

// ErrParse is the base class for all malformed-input errors in this
// package; every format-specific sentinel wraps it.
var ErrParse = errors.New("parse error")

// OBJ format errors.
var (
	ErrMalformedVertex   = fmt.Errorf("%w: malformed vertex record", ErrParse)
	ErrMalformedTexCoord = fmt.Errorf("%w: malformed texture coordinate record", ErrParse)
	ErrMalformedNormal   = fmt.Errorf("%w: malformed normal record", ErrParse)
	ErrMalformedFace     = fmt.Errorf("%w: malformed face record", ErrParse)
	ErrFaceIndexRange    = fmt.Errorf("%w: face references out-of-range vertex index", ErrParse)
)

// FaceCorner is one corner of a face. Vertex and TexCoord are zero-based
// indices into the mesh-wide tables; Normal is a zero-based index into the
// owning submesh's normal table. A value of -1 means the reference is absent.
type FaceCorner struct {
	Vertex   int
	TexCoord int
	Normal   int
}

// Face is an ordered list of three or more corners in winding order.
type Face struct {
	Corners []FaceCorner
}

// Submesh is a named group of faces with its own normal table.
// Submeshes model logically distinct surfaces; normals are never shared
// or blended across submesh boundaries.
type Submesh struct {
	Name       string
	Keyword    string   // record that introduced the group, "g" or "o"; empty means "g"
	Directives []string // usemtl, s, and unrecognized records, in order
	Faces      []Face
	Normals    []geom.Vec3
}

// FaceCount returns the number of faces in the submesh.
func (s *Submesh) FaceCount() int {
	return len(s.Faces)
}

// ReferencedVertices returns the distinct vertex indices referenced by the
// submesh's faces, ordered by first appearance. The repaired normal table is
// parallel to this ordering.
func (s *Submesh) ReferencedVertices() []int {
	seen := make(map[int]int)
	var order []int
	for _, f := range s.Faces {
		for _, c := range f.Corners {
			if _, ok := seen[c.Vertex]; !ok {
				seen[c.Vertex] = len(order)
				order = append(order, c.Vertex)
			}
		}
	}
	return order
}

// OBJ is a parsed Wavefront OBJ mesh.
type OBJ struct {
	Header    []string // comments, mtllib, and unrecognized records before the first group
	Vertices  []geom.Vec3
	TexCoords [][2]float64
	Submeshes []Submesh
}

// FaceCount returns the total face count across all submeshes.
func (o *OBJ) FaceCount() int {
	total := 0
	for i := range o.Submeshes {
		total += o.Submeshes[i].FaceCount()
	}
	return total
}

// NormalCount returns the total normal count across all submeshes.
func (o *OBJ) NormalCount() int {
	total := 0
	for i := range o.Submeshes {
		total += len(o.Submeshes[i].Normals)
	}
	return total
}

// Bounds returns the axis-aligned bounding box of all vertex positions.
func (o *OBJ) Bounds() geom.Bounds {
	b := geom.NewBounds()
	for _, v := range o.Vertices {
		b.Extend(v)
	}
	return b
}

// FlattenSubmeshes merges all submeshes into a single unnamed group,
// dropping per-group normal tables. Used for the reduced-fidelity pass on
// meshes whose grouping breaks downstream validation.
func (o *OBJ) FlattenSubmeshes() {
	if len(o.Submeshes) <= 1 {
		return
	}
	var merged Submesh
	for i := range o.Submeshes {
		s := &o.Submeshes[i]
		merged.Directives = append(merged.Directives, s.Directives...)
		for _, f := range s.Faces {
			for j := range f.Corners {
				f.Corners[j].Normal = -1
			}
			merged.Faces = append(merged.Faces, f)
		}
	}
	o.Submeshes = []Submesh{merged}
}

// ParseOBJ parses an OBJ mesh from raw bytes.
//
// Vertex positions, texture coordinates, groups, normals, and faces are
// interpreted; any other record is preserved verbatim and re-emitted in
// place on write. A face referencing an undeclared vertex is a fatal
// parse error.
func ParseOBJ(data []byte) (*OBJ, error) {
	obj := &OBJ{}
	var cur *Submesh

	// Global vn index -> (submesh, local index), for resolving face normal
	// references. Normals declared inside a group belong to that group.
	type normalRef struct {
		submesh int
		local   int
	}
	var normalRefs []normalRef

	// currentSubmesh returns the submesh receiving records, creating the
	// default group on demand.
	currentSubmesh := func() *Submesh {
		if cur == nil {
			obj.Submeshes = append(obj.Submeshes, Submesh{})
			cur = &obj.Submeshes[len(obj.Submeshes)-1]
		}
		return cur
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			obj.passthrough(cur, line)
			continue
		}

		fields := strings.Fields(trimmed)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedVertex, lineNo, trimmed)
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedVertex, lineNo, err)
			}
			obj.Vertices = append(obj.Vertices, v)

		case "vt":
			if len(fields) < 3 {
				return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedTexCoord, lineNo, trimmed)
			}
			u, err1 := strconv.ParseFloat(fields[1], 64)
			w, err2 := strconv.ParseFloat(fields[2], 64)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedTexCoord, lineNo, trimmed)
			}
			obj.TexCoords = append(obj.TexCoords, [2]float64{u, w})

		case "vn":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedNormal, lineNo, trimmed)
			}
			n, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedNormal, lineNo, err)
			}
			s := currentSubmesh()
			s.Normals = append(s.Normals, n)
			normalRefs = append(normalRefs, normalRef{
				submesh: len(obj.Submeshes) - 1,
				local:   len(s.Normals) - 1,
			})

		case "g", "o":
			name := ""
			if len(fields) > 1 {
				name = strings.Join(fields[1:], " ")
			}
			obj.Submeshes = append(obj.Submeshes, Submesh{Name: name, Keyword: fields[0]})
			cur = &obj.Submeshes[len(obj.Submeshes)-1]

		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: fewer than 3 corners", ErrMalformedFace, lineNo)
			}
			s := currentSubmesh()
			face := Face{Corners: make([]FaceCorner, 0, len(fields)-1)}
			for _, spec := range fields[1:] {
				corner, err := parseFaceCorner(spec, len(obj.Vertices), len(obj.TexCoords), len(normalRefs))
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", err, lineNo, spec)
				}
				// Resolve the global vn reference to a local table index;
				// a reference into another submesh's table is dropped and
				// left for repair.
				if corner.Normal >= 0 {
					ref := normalRefs[corner.Normal]
					if ref.submesh == len(obj.Submeshes)-1 {
						corner.Normal = ref.local
					} else {
						corner.Normal = -1
					}
				}
				face.Corners = append(face.Corners, corner)
			}
			s.Faces = append(s.Faces, face)

		default:
			obj.passthrough(cur, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ data: %w", err)
	}

	return obj, nil
}

// passthrough records an unrecognized or structural line for later re-emit.
func (o *OBJ) passthrough(cur *Submesh, line string) {
	if cur == nil {
		o.Header = append(o.Header, line)
		return
	}
	cur.Directives = append(cur.Directives, line)
}

// parseVec3 parses three float fields.
func parseVec3(fields []string) (geom.Vec3, error) {
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return geom.Vec3{}, err
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return geom.Vec3{}, err
	}
	z, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return geom.Vec3{}, err
	}
	return geom.Vec3{X: x, Y: y, Z: z}, nil
}

// parseFaceCorner parses one "v", "v/vt", "v//vn", or "v/vt/vn" reference.
// Indices in the file are 1-based and may be negative (relative to the
// current table size); the result is zero-based with -1 meaning absent.
func parseFaceCorner(spec string, nVerts, nTex, nNormals int) (FaceCorner, error) {
	corner := FaceCorner{Vertex: -1, TexCoord: -1, Normal: -1}

	parts := strings.Split(spec, "/")
	if len(parts) == 0 || len(parts) > 3 || parts[0] == "" {
		return corner, ErrMalformedFace
	}

	v, err := resolveIndex(parts[0], nVerts)
	if err != nil || v < 0 {
		return corner, ErrFaceIndexRange
	}
	corner.Vertex = v

	if len(parts) > 1 && parts[1] != "" {
		t, err := resolveIndex(parts[1], nTex)
		if err != nil || t < 0 {
			return corner, ErrFaceIndexRange
		}
		corner.TexCoord = t
	}

	if len(parts) > 2 && parts[2] != "" {
		n, err := resolveIndex(parts[2], nNormals)
		if err != nil {
			return corner, ErrMalformedFace
		}
		// Out-of-range normal references are dropped, not fatal: the
		// normal table gets rebuilt by repair anyway.
		if n >= 0 {
			corner.Normal = n
		}
	}

	return corner, nil
}

// resolveIndex converts a 1-based (possibly negative relative) OBJ index to
// a zero-based index, or -1 if it falls outside [0, size).
func resolveIndex(s string, size int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return -1, err
	}
	if i < 0 {
		i = size + i
	} else {
		i--
	}
	if i < 0 || i >= size {
		return -1, nil
	}
	return i, nil
}

// Encode writes the mesh in OBJ format. Normal tables are emitted per
// submesh, after the group record, so each group's faces reference their
// own table; unrecognized records are replayed in their original positions.
func (o *OBJ) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)

	for _, line := range o.Header {
		fmt.Fprintln(bw, line)
	}
	for _, v := range o.Vertices {
		fmt.Fprintf(bw, "v %s %s %s\n", formatCoord(v.X), formatCoord(v.Y), formatCoord(v.Z))
	}
	for _, t := range o.TexCoords {
		fmt.Fprintf(bw, "vt %s %s\n", formatCoord(t[0]), formatCoord(t[1]))
	}

	normalBase := 0
	for i := range o.Submeshes {
		s := &o.Submeshes[i]
		if s.Name != "" {
			kw := s.Keyword
			if kw == "" {
				kw = "g"
			}
			fmt.Fprintf(bw, "%s %s\n", kw, s.Name)
		}
		for _, line := range s.Directives {
			fmt.Fprintln(bw, line)
		}
		for _, n := range s.Normals {
			fmt.Fprintf(bw, "vn %s %s %s\n", formatCoord(n.X), formatCoord(n.Y), formatCoord(n.Z))
		}
		for _, f := range s.Faces {
			bw.WriteString("f")
			for _, c := range f.Corners {
				bw.WriteByte(' ')
				bw.WriteString(formatCorner(c, normalBase))
			}
			bw.WriteByte('\n')
		}
		normalBase += len(s.Normals)
	}

	return bw.Flush()
}

// formatCorner renders one face corner reference with 1-based indices.
func formatCorner(c FaceCorner, normalBase int) string {
	v := strconv.Itoa(c.Vertex + 1)
	switch {
	case c.TexCoord >= 0 && c.Normal >= 0:
		return v + "/" + strconv.Itoa(c.TexCoord+1) + "/" + strconv.Itoa(normalBase+c.Normal+1)
	case c.Normal >= 0:
		return v + "//" + strconv.Itoa(normalBase+c.Normal+1)
	case c.TexCoord >= 0:
		return v + "/" + strconv.Itoa(c.TexCoord+1)
	default:
		return v
	}
}

// formatCoord renders a coordinate with six decimal places, the precision
// OSM2World itself emits.
func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// ParseOBJFile parses an OBJ file from disk.
func ParseOBJFile(path string) (*OBJ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading OBJ file: %w", err)
	}
	return ParseOBJ(data)
}

// WriteFile writes the mesh to disk.
func (o *OBJ) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating OBJ file: %w", err)
	}
	if err := o.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("writing OBJ file: %w", err)
	}
	return f.Close()
}

package formats

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// SDF format errors.
var (
	ErrInvalidSDFRoot = fmt.Errorf("%w: missing <sdf> root", ErrParse)
	ErrMissingWorld   = fmt.Errorf("%w: missing <world> element", ErrParse)
	ErrMalformedSDF   = fmt.Errorf("%w: malformed SDF document", ErrParse)
	ErrMalformedPose  = fmt.Errorf("%w: malformed pose, expected 6 numeric components", ErrParse)
	ErrModelNotFound  = errors.New("model not found in world")
)

// Pose is a 6-component transform: translation XYZ plus roll, pitch, yaw
// rotation in radians.
type Pose [6]float64

// ParsePose parses a whitespace-separated 6-component pose string.
func ParsePose(s string) (Pose, error) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return Pose{}, fmt.Errorf("%w: %q", ErrMalformedPose, s)
	}
	var p Pose
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Pose{}, fmt.Errorf("%w: %q", ErrMalformedPose, s)
		}
		p[i] = v
	}
	return p, nil
}

// String renders the pose in SDF text form with minimal digits.
func (p Pose) String() string {
	parts := make([]string, 6)
	for i, v := range p {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// Roll returns the rotation about the X axis.
func (p Pose) Roll() float64 { return p[3] }

// World is a parsed SDF world descriptor. Edits are targeted: elements the
// tool does not recognize are carried through serialization untouched, so
// consumer-specific extensions survive a rewrite.
type World struct {
	doc  *etree.Document
	root *etree.Element // the <world> element
}

// ParseWorld parses an SDF world descriptor from raw bytes.
func ParseWorld(data []byte) (*World, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSDF, err)
	}

	sdf := doc.SelectElement("sdf")
	if sdf == nil {
		return nil, ErrInvalidSDFRoot
	}
	world := sdf.SelectElement("world")
	if world == nil {
		return nil, ErrMissingWorld
	}

	return &World{doc: doc, root: world}, nil
}

// ParseWorldFile parses an SDF world file from disk.
func ParseWorldFile(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world file: %w", err)
	}
	return ParseWorld(data)
}

// Name returns the world name attribute.
func (w *World) Name() string {
	return w.root.SelectAttrValue("name", "")
}

// Root returns the underlying <world> element for targeted edits.
func (w *World) Root() *etree.Element {
	return w.root
}

// Physics returns the <physics> element, or nil if absent.
func (w *World) Physics() *etree.Element {
	return w.root.SelectElement("physics")
}

// Scene returns the <scene> element, or nil if absent.
func (w *World) Scene() *etree.Element {
	return w.root.SelectElement("scene")
}

// Lights returns all <light> elements in the world.
func (w *World) Lights() []*etree.Element {
	return w.root.SelectElements("light")
}

// Models returns all models in the world, in document order.
func (w *World) Models() []*Model {
	var models []*Model
	for _, el := range w.root.SelectElements("model") {
		models = append(models, &Model{el: el})
	}
	return models
}

// FindModel returns the model with the given name attribute.
func (w *World) FindModel(name string) (*Model, error) {
	for _, m := range w.Models() {
		if m.Name() == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrModelNotFound, name)
}

// MeshModels returns models that reference at least one mesh asset.
func (w *World) MeshModels() []*Model {
	var out []*Model
	for _, m := range w.Models() {
		if len(m.MeshURIs()) > 0 {
			out = append(out, m)
		}
	}
	return out
}

// Encode serializes the descriptor.
func (w *World) Encode(out io.Writer) error {
	_, err := w.doc.WriteTo(out)
	return err
}

// Bytes serializes the descriptor to a byte slice.
func (w *World) Bytes() ([]byte, error) {
	var sb strings.Builder
	if err := w.Encode(&sb); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// WriteFile writes the descriptor to disk.
func (w *World) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating world file: %w", err)
	}
	if err := w.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("writing world file: %w", err)
	}
	return f.Close()
}

// Model wraps a <model> element.
type Model struct {
	el *etree.Element
}

// Name returns the model's name attribute.
func (m *Model) Name() string {
	return m.el.SelectAttrValue("name", "")
}

// Element returns the underlying <model> element.
func (m *Model) Element() *etree.Element {
	return m.el
}

// Pose returns the model's pose and whether a pose element is present.
func (m *Model) Pose() (Pose, bool) {
	el := m.el.SelectElement("pose")
	if el == nil {
		return Pose{}, false
	}
	p, err := ParsePose(el.Text())
	if err != nil {
		return Pose{}, false
	}
	return p, true
}

// PoseText returns the raw pose element text, or "" if absent.
func (m *Model) PoseText() string {
	el := m.el.SelectElement("pose")
	if el == nil {
		return ""
	}
	return el.Text()
}

// SetPose writes the pose, creating the element directly after <static>
// (or as the first child) when absent.
func (m *Model) SetPose(p Pose) {
	el := m.el.SelectElement("pose")
	if el == nil {
		el = etree.NewElement("pose")
		idx := 0
		if static := m.el.SelectElement("static"); static != nil {
			idx = static.Index() + 1
		}
		m.el.InsertChildAt(idx, el)
	}
	el.SetText(p.String())
}

// Static reports whether the model is marked static. Absence of the
// element means non-static in SDF.
func (m *Model) Static() (value, present bool) {
	el := m.el.SelectElement("static")
	if el == nil {
		return false, false
	}
	t := strings.TrimSpace(el.Text())
	return t == "true" || t == "1", true
}

// SetStatic writes the static flag, creating the element as the model's
// first child when absent.
func (m *Model) SetStatic(static bool) {
	el := m.el.SelectElement("static")
	if el == nil {
		el = etree.NewElement("static")
		m.el.InsertChildAt(0, el)
	}
	if static {
		el.SetText("true")
	} else {
		el.SetText("false")
	}
}

// Links returns the model's <link> elements.
func (m *Model) Links() []*etree.Element {
	return m.el.SelectElements("link")
}

// Collisions returns all <collision> elements across the model's links.
func (m *Model) Collisions() []*etree.Element {
	var out []*etree.Element
	for _, link := range m.Links() {
		out = append(out, link.SelectElements("collision")...)
	}
	return out
}

// Visuals returns all <visual> elements across the model's links.
func (m *Model) Visuals() []*etree.Element {
	var out []*etree.Element
	for _, link := range m.Links() {
		out = append(out, link.SelectElements("visual")...)
	}
	return out
}

// MeshURIs returns every mesh asset URI referenced by the model's visual
// and collision geometry, in document order without duplicates.
func (m *Model) MeshURIs() []string {
	seen := make(map[string]bool)
	var uris []string
	for _, el := range m.el.FindElements(".//geometry/mesh/uri") {
		uri := strings.TrimSpace(el.Text())
		if uri != "" && !seen[uri] {
			seen[uri] = true
			uris = append(uris, uri)
		}
	}
	return uris
}

// RewriteMeshURIs replaces every mesh reference equal to from with to and
// returns the number of elements changed.
func (m *Model) RewriteMeshURIs(from, to string) int {
	changed := 0
	for _, el := range m.el.FindElements(".//geometry/mesh/uri") {
		if strings.TrimSpace(el.Text()) == from {
			el.SetText(to)
			changed++
		}
	}
	return changed
}

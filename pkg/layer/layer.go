package layer

import (
	"slices"

	"cogentcore.org/core/math32"

	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/grammar"
)

// HighlightSet receives highlight flags for one level. A knot's shader set
// implements it; the key scopes highlight state per knot since several knots
// may draw the same layer.
type HighlightSet interface {
	HighlightKey() string
	ApplyHighlights(level grammar.Level, flags []bool)
}

// Layer is one loaded mesh plus the function values knots computed for it.
type Layer struct {
	id          string
	typ         string
	styleKey    string
	renderStyle []string
	mesh        *Mesh

	functions  map[string]map[grammar.Level][][]float64
	highlights map[string]map[grammar.Level][]bool

	needsJoin   bool
	joined      *Joined
	joinApplied bool
}

func newLayer(data Data, centroid math32.Vector3, joined bool) (*Layer, error) {
	mesh, err := newMesh(data.ID, data.MeshDimension(), data.Data, centroid)
	if err != nil {
		return nil, err
	}
	return &Layer{
		id:          data.ID,
		typ:         data.Type,
		styleKey:    data.StyleKey,
		renderStyle: data.RenderStyle,
		mesh:        mesh,
		functions:   map[string]map[grammar.Level][][]float64{},
		highlights:  map[string]map[grammar.Level][]bool{},
		needsJoin:   joined,
	}, nil
}

func (l *Layer) ID() string            { return l.id }
func (l *Layer) Type() string          { return l.typ }
func (l *Layer) StyleKey() string      { return l.styleKey }
func (l *Layer) RenderStyle() []string { return l.renderStyle }
func (l *Layer) Mesh() *Mesh           { return l.mesh }

// RowCount returns the number of records the layer exposes at level.
func (l *Layer) RowCount(level grammar.Level) int {
	if level == grammar.LevelObjects {
		return l.mesh.ElementCount()
	}
	return l.mesh.VertexCount()
}

// VertexSpans returns how many vertices each record at level covers.
func (l *Layer) VertexSpans(level grammar.Level) []int {
	if level == grammar.LevelObjects {
		return slices.Clone(l.mesh.counts)
	}
	spans := make([]int, l.mesh.VertexCount())
	for i := range spans {
		spans[i] = 1
	}
	return spans
}

// CoordsByLevel returns one coordinate record per row at level. OBJECTS
// records hold the element's full flat coordinates; COORDINATES records are
// (x, y); COORDINATES3D records are (x, y, z).
func (l *Layer) CoordsByLevel(level grammar.Level) [][]float64 {
	m := l.mesh
	switch level {
	case grammar.LevelObjects:
		out := make([][]float64, m.ElementCount())
		for i := range out {
			out[i] = slices.Clone(m.element(i))
		}
		return out
	case grammar.LevelCoordinates, grammar.LevelCoordinates3D:
		width := 2
		if level == grammar.LevelCoordinates3D {
			width = 3
		}
		out := make([][]float64, m.VertexCount())
		for v := range out {
			rec := make([]float64, width)
			copy(rec, m.vertex(v))
			out[v] = rec
		}
		return out
	default:
		return nil
	}
}

// OwnValues returns the values shipped with the layer file at level.
// OBJECTS rows average the element's vertex values.
func (l *Layer) OwnValues(level grammar.Level) [][]float64 {
	m := l.mesh
	if level != grammar.LevelObjects {
		out := make([][]float64, m.VertexCount())
		for v := range out {
			out[v] = []float64{m.values[v]}
		}
		return out
	}
	out := make([][]float64, m.ElementCount())
	for i := range out {
		vals := m.values[m.starts[i] : m.starts[i]+m.counts[i]]
		out[i] = []float64{grammar.Aggregate("avg", vals)}
	}
	return out
}

// SetFunction stores the function values a knot computed at level. There
// must be exactly one row per record.
func (l *Layer) SetFunction(knotID string, level grammar.Level, values [][]float64) error {
	if want := l.RowCount(level); len(values) != want {
		return errors.New(errors.ErrCodeDataIntegrity,
			"layer %q knot %q: %d function rows at %s, want %d", l.id, knotID, len(values), level, want)
	}
	if l.functions[knotID] == nil {
		l.functions[knotID] = map[grammar.Level][][]float64{}
	}
	l.functions[knotID][level] = values
	return nil
}

// FunctionByLevel returns a knot's function values at level. Rows are zero
// until the knot has processed its thematic data.
func (l *Layer) FunctionByLevel(level grammar.Level, knotID string) [][]float64 {
	if rows, ok := l.functions[knotID][level]; ok {
		return rows
	}
	out := make([][]float64, l.RowCount(level))
	for i := range out {
		out[i] = []float64{0}
	}
	return out
}

// HighlightsByLevel returns the highlight flags of set at level.
func (l *Layer) HighlightsByLevel(level grammar.Level, set HighlightSet) []bool {
	flags := make([]bool, l.RowCount(level))
	if set != nil {
		copy(flags, l.highlights[set.HighlightKey()][level])
	}
	return flags
}

// SetHighlightElements sets the highlight flag of the given records and
// pushes the flags to set.
func (l *Layer) SetHighlightElements(indices []int, level grammar.Level, value bool, set HighlightSet) error {
	if set == nil {
		return errors.New(errors.ErrCodeInvalidInput, "layer %q: no highlight target", l.id)
	}
	n := l.RowCount(level)
	for _, i := range indices {
		if i < 0 || i >= n {
			return errors.New(errors.ErrCodeInvalidInput, "layer %q: element %d out of range at %s (%d records)", l.id, i, level, n)
		}
	}

	key := set.HighlightKey()
	if l.highlights[key] == nil {
		l.highlights[key] = map[grammar.Level][]bool{}
	}
	flags := l.highlights[key][level]
	if len(flags) != n {
		flags = make([]bool, n)
	}
	for _, i := range indices {
		flags[i] = value
	}
	l.highlights[key][level] = flags
	set.ApplyHighlights(level, slices.Clone(flags))
	return nil
}

// ClearHighlights drops every highlight of set on this layer.
func (l *Layer) ClearHighlights(set HighlightSet) {
	if set == nil {
		return
	}
	key := set.HighlightKey()
	for level := range l.highlights[key] {
		set.ApplyHighlights(level, make([]bool, l.RowCount(level)))
	}
	delete(l.highlights, key)
}

// NeedsJoin reports whether a knot reads data joined from another layer.
func (l *Layer) NeedsJoin() bool { return l.needsJoin }

// JoinApplied reports whether the joined dataset has been attached.
func (l *Layer) JoinApplied() bool { return l.joinApplied }

// Joined returns the attached joined dataset, or nil.
func (l *Layer) Joined() *Joined { return l.joined }

// SetJoinedJSON attaches the joined dataset of this layer.
func (l *Layer) SetJoinedJSON(j *Joined) error {
	if j == nil {
		return errors.New(errors.ErrCodeInvalidInput, "layer %q: joined dataset is nil", l.id)
	}
	for i, obj := range j.JoinedObjects {
		if obj.JoinedLayerIndex < 0 || obj.JoinedLayerIndex >= len(j.JoinedLayers) {
			return errors.New(errors.ErrCodeDataIntegrity,
				"layer %q joined object %d: joined layer index %d out of range", l.id, i, obj.JoinedLayerIndex)
		}
	}
	l.joined = j
	l.joinApplied = true
	l.needsJoin = true
	return nil
}

// JoinFor finds the join that brought inLayer at inLevel onto this layer at
// outLevel.
func (l *Layer) JoinFor(inLayer string, inLevel, outLevel grammar.Level) (JoinedLayer, JoinedObject, bool) {
	if l.joined == nil {
		return JoinedLayer{}, JoinedObject{}, false
	}
	for idx, jl := range l.joined.JoinedLayers {
		if jl.LayerID != inLayer || jl.InLevel != inLevel || jl.OutLevel != outLevel {
			continue
		}
		for _, obj := range l.joined.JoinedObjects {
			if obj.JoinedLayerIndex == idx {
				return jl, obj, true
			}
		}
	}
	return JoinedLayer{}, JoinedObject{}, false
}

// Bounds returns the world-space bounding box of a layer file's vertices.
func Bounds(data Data) math32.Box3 {
	box := math32.B3Empty()
	dim := data.MeshDimension()
	for _, f := range data.Data {
		c := f.Geometry.Coordinates
		for v := 0; v+dim <= len(c); v += dim {
			p := math32.Vec3(float32(c[v]), 0, 0)
			if dim > 1 {
				p.Y = float32(c[v+1])
			}
			if dim > 2 {
				p.Z = float32(c[v+2])
			}
			box.ExpandByPoint(p)
		}
	}
	return box
}

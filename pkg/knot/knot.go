// Package knot binds layer data to render passes.
//
// A knot is created from one grammar knot. Its integration scheme decides
// which layer it draws on, at which level, and how its function values are
// derived: from the layer's own values, from a joined dataset, or for
// operation knots, by combining other knots.
package knot

import (
	"slices"

	"github.com/matzehuels/knotview/pkg/camera"
	"github.com/matzehuels/knotview/pkg/gl"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/layer"
)

// Interpreter is the part of the grammar interpreter knots query.
type Interpreter interface {
	KnotByID(id string, viewID int) (*grammar.Knot, bool)
	KnotLastLink(k *grammar.Knot, viewID int) grammar.Link
	EvaluateKnotVisibility(k *grammar.Knot, viewID int) bool
}

// Knot is a renderable binding of layer data.
type Knot struct {
	id     string
	spec   *grammar.Knot
	layer  *layer.Layer
	interp Interpreter
	viewID int

	outputs  []string // output layer ids in scheme order
	joined   bool
	lastLink grammar.Link

	visible bool
	shaders []Shader
}

func newKnot(id string, l *layer.Layer, spec *grammar.Knot, interp Interpreter, viewID int, mapped bool) *Knot {
	k := &Knot{
		id:      id,
		spec:    spec,
		layer:   l,
		interp:  interp,
		viewID:  viewID,
		visible: mapped,
	}
	if !spec.KnotOp {
		for _, link := range spec.IntegrationScheme {
			if !slices.Contains(k.outputs, link.Out.Name) {
				k.outputs = append(k.outputs, link.Out.Name)
			}
			if link.Joins() {
				k.joined = true
			}
		}
	}
	k.lastLink = interp.KnotLastLink(spec, viewID)
	return k
}

func (k *Knot) ID() string             { return k.id }
func (k *Knot) Spec() *grammar.Knot    { return k.spec }
func (k *Knot) Layer() *layer.Layer    { return k.layer }
func (k *Knot) Visible() bool          { return k.visible }
func (k *Knot) Shaders() []Shader      { return k.shaders }
func (k *Knot) LastLink() grammar.Link { return k.lastLink }

// OutputLayers returns the layers the integration scheme writes to.
func (k *Knot) OutputLayers() []string { return slices.Clone(k.outputs) }

// Joined reports whether the knot reads data joined from another layer.
func (k *Knot) Joined() bool { return k.joined }

// Level returns the level the knot's data is read at. Pure knots have none.
func (k *Knot) Level() (grammar.Level, bool) {
	if k.lastLink.Out.Level == nil {
		return "", false
	}
	return *k.lastLink.Out.Level, true
}

// Pure reports whether the knot has no output level and so cannot be drawn
// or plotted.
func (k *Knot) Pure() bool {
	_, ok := k.Level()
	return !ok
}

// HighlightKey scopes highlight state on the layer to this knot.
func (k *Knot) HighlightKey() string { return k.id }

// ApplyHighlights pushes record-level highlight flags to every
// highlightable pass, expanded to one flag per vertex.
func (k *Knot) ApplyHighlights(level grammar.Level, flags []bool) {
	perVertex := expand(k.layer.VertexSpans(level), flags, false)
	for _, s := range k.shaders {
		if h, ok := s.(Highlightable); ok {
			h.SetHighlights(perVertex)
		}
	}
}

// LoadShaders builds the knot's render passes: a standard pass and a
// picking pass. Pure knots get none.
func (k *Knot) LoadShaders(ctx gl.Context) {
	level, ok := k.Level()
	if !ok {
		k.shaders = nil
		return
	}
	spans := k.layer.VertexSpans(level)
	ids := make([]uint32, 0, k.layer.Mesh().VertexCount())
	for rec, n := range spans {
		for range n {
			ids = append(ids, uint32(rec+1))
		}
	}

	k.shaders = []Shader{
		newStandardShader(k.spec.ColorMap),
		newPickingShader(k.id, ids),
	}
	k.pushFunction(level)
	k.ApplyHighlights(level, k.layer.HighlightsByLevel(level, k))
}

// Render issues every pass of the knot.
func (k *Knot) Render(ctx gl.Context, cam *camera.Camera) {
	for _, s := range k.shaders {
		s.Draw(ctx, cam, k.layer.Mesh())
	}
}

// Pick runs the knot's pickable passes at (x, y).
func (k *Knot) Pick(ctx gl.Context, x, y int) (int, bool) {
	for _, s := range k.shaders {
		if p, ok := s.(Pickable); ok {
			if element, hit := p.Pick(ctx, x, y); hit {
				return element, true
			}
		}
	}
	return 0, false
}

// MarkResizeDirty flags every resizable pass for reallocation.
func (k *Knot) MarkResizeDirty() {
	for _, s := range k.shaders {
		if r, ok := s.(Resizable); ok {
			r.SetResizeDirty(true)
		}
	}
}

// pushFunction sends the knot's function values at level to thematic
// passes, normalized to [0, 1].
func (k *Knot) pushFunction(level grammar.Level) {
	rows := k.layer.FunctionByLevel(level, k.id)
	first := make([]float64, len(rows))
	for i, r := range rows {
		if len(r) > 0 {
			first[i] = r[0]
		}
	}
	perVertex := expand(k.layer.VertexSpans(level), first, 0)
	normalized := normalize(perVertex)
	for _, s := range k.shaders {
		if t, ok := s.(Thematic); ok {
			t.SetFunction(normalized)
		}
	}
}

// expand repeats each record value over the vertices it spans.
func expand[T any](spans []int, values []T, zero T) []T {
	var out []T
	for i, n := range spans {
		v := zero
		if i < len(values) {
			v = values[i]
		}
		for range n {
			out = append(out, v)
		}
	}
	return out
}

func normalize(values []float64) []float32 {
	out := make([]float32, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := slices.Min(values), slices.Max(values)
	if hi == lo {
		return out
	}
	for i, v := range values {
		out[i] = float32((v - lo) / (hi - lo))
	}
	return out
}

package knot

import (
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knotview/pkg/camera"
	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/gl"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/layer"
	"github.com/matzehuels/knotview/pkg/observability"
)

// Manager owns the knots of a scene in render order.
//
// Manager is not safe for concurrent use; the scene controller serializes
// access to it.
type Manager struct {
	logger *log.Logger
	hooks  observability.SceneHooks
	knots  []*Knot
}

// NewManager creates an empty knot manager. A nil logger discards output;
// nil hooks report to the globally registered scene hooks.
func NewManager(logger *log.Logger, hooks observability.SceneHooks) *Manager {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Manager{logger: logger, hooks: hooks}
}

func (m *Manager) sceneHooks() observability.SceneHooks {
	if m.hooks != nil {
		return m.hooks
	}
	return observability.Scene()
}

// CreateKnot builds a knot drawing on l and appends it to the render order.
// The knot starts visible when it is listed in the map knots.
func (m *Manager) CreateKnot(id string, l *layer.Layer, spec *grammar.Knot, interp Interpreter, viewID int, mapped bool) *Knot {
	k := newKnot(id, l, spec, interp, viewID, mapped)
	m.knots = append(m.knots, k)
	m.logger.Debug("knot created", "knot", id, "layer", l.ID(), "joined", k.joined, "visible", mapped)
	return k
}

// KnotByID returns the knot with the given id, or nil.
func (m *Manager) KnotByID(id string) *Knot {
	if i := slices.IndexFunc(m.knots, func(k *Knot) bool { return k.id == id }); i >= 0 {
		return m.knots[i]
	}
	return nil
}

// Knots returns the knots in render order.
func (m *Manager) Knots() []*Knot { return slices.Clone(m.knots) }

// ToggleKnot sets a knot's visibility to *value, or flips it when value
// is nil.
func (m *Manager) ToggleKnot(id string, value *bool) error {
	k := m.KnotByID(id)
	if k == nil {
		return errors.New(errors.ErrCodeUnresolvableKnot, "knot %q not found", id)
	}
	if value != nil {
		k.visible = *value
	} else {
		k.visible = !k.visible
	}
	return nil
}

// Render draws one frame. visible is evaluated for every knot; the knot's
// stored flag is reconciled with the result before drawing so that it
// matches what was drawn. It returns the number of knots drawn.
func (m *Manager) Render(ctx gl.Context, cam *camera.Camera, visible func(*Knot) bool) int {
	hooks := m.sceneHooks()
	start := time.Now()
	drawn := 0
	for _, k := range m.knots {
		v := visible(k)
		if k.visible != v {
			k.visible = v
			hooks.OnVisibilityChange(k.id, v)
		}
		if !v {
			continue
		}
		k.Render(ctx, cam)
		drawn++
	}
	hooks.OnFrame(drawn, time.Since(start))
	return drawn
}

// Groups orders knots for presentation. Knots sharing a group name are
// listed together, sorted by position, at the place the group first
// appears; ungrouped knots form a group of their own.
func Groups(knots []*Knot) [][]string {
	type member struct {
		id  string
		pos int
	}
	var (
		order   []string
		members = map[string][]member{}
	)
	for _, k := range knots {
		key, pos := "\x00"+k.id, 0
		if g := k.spec.Group; g != nil {
			key, pos = g.Name, g.Position
		}
		if _, ok := members[key]; !ok {
			order = append(order, key)
		}
		members[key] = append(members[key], member{k.id, pos})
	}

	out := make([][]string, 0, len(order))
	for _, key := range order {
		ms := members[key]
		slices.SortStableFunc(ms, func(a, b member) int { return a.pos - b.pos })
		ids := make([]string, len(ms))
		for i, mb := range ms {
			ids[i] = mb.id
		}
		out = append(out, ids)
	}
	return out
}

package layer

import (
	"io"
	"slices"

	"cogentcore.org/core/math32"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/knotview/pkg/errors"
)

// Manager owns the layers of a scene and the spatial filter applied to them.
//
// Manager is not safe for concurrent use; the scene controller serializes
// access to it.
type Manager struct {
	logger    *log.Logger
	layers    []*Layer
	bbox      []float64
	observers []func()
}

// NewManager creates an empty layer manager. A nil logger discards output.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Manager{logger: logger}
}

// CreateLayer builds a layer from a layer file. Coordinates are stored
// relative to centroid. It returns nil without error when the file carries
// no features. A layer with the same id is replaced.
func (m *Manager) CreateLayer(data Data, centroid math32.Vector3, joined bool) (*Layer, error) {
	if len(data.Data) == 0 {
		m.logger.Warn("layer has no features", "layer", data.ID)
		return nil, nil
	}
	if err := errors.ValidateIdentifier("layer", data.ID); err != nil {
		return nil, err
	}
	l, err := newLayer(data, centroid, joined)
	if err != nil {
		return nil, err
	}
	if box := m.filterBox(); box != nil {
		l.mesh.setFilter(box)
	}

	if i := m.index(data.ID); i >= 0 {
		m.layers[i] = l
	} else {
		m.layers = append(m.layers, l)
	}
	m.logger.Debug("layer created", "layer", l.id, "elements", l.mesh.ElementCount(), "vertices", l.mesh.VertexCount(), "joined", joined)
	return l, nil
}

// SearchByLayerID returns the layer with the given id, or nil.
func (m *Manager) SearchByLayerID(id string) *Layer {
	if i := m.index(id); i >= 0 {
		return m.layers[i]
	}
	return nil
}

// Layers returns the layers in creation order.
func (m *Manager) Layers() []*Layer { return slices.Clone(m.layers) }

// FilterBbox returns the active filter box, or nil.
func (m *Manager) FilterBbox() []float64 { return slices.Clone(m.bbox) }

// SetFilterBbox sets the world-space filter box [minX, minY, maxX, maxY]
// and recomputes every layer's mask. An empty box clears the filter.
// Observers run afterwards.
func (m *Manager) SetFilterBbox(bbox []float64) error {
	if err := errors.ValidateBbox(bbox); err != nil {
		return err
	}
	m.bbox = nil
	if len(bbox) > 0 {
		m.bbox = slices.Clone(bbox)
	}

	box := m.filterBox()
	for _, l := range m.layers {
		l.mesh.setFilter(box)
	}
	for _, fn := range m.observers {
		fn()
	}
	return nil
}

// OnFilterChange registers fn to run after every SetFilterBbox.
func (m *Manager) OnFilterChange(fn func()) {
	m.observers = append(m.observers, fn)
}

func (m *Manager) filterBox() *math32.Box2 {
	if len(m.bbox) != 4 {
		return nil
	}
	b := math32.B2(float32(m.bbox[0]), float32(m.bbox[1]), float32(m.bbox[2]), float32(m.bbox[3]))
	return &b
}

func (m *Manager) index(id string) int {
	return slices.IndexFunc(m.layers, func(l *Layer) bool { return l.id == id })
}

package grammar

import (
	"maps"
	"slices"
	"sync"

	"github.com/matzehuels/knotview/pkg/errors"
)

// Status keys reported through StatusFunc.
const (
	StatusPlotsData = "plotsData"
	StatusHighlight = "highlight"
	StatusLayersIDs = "layersIds"
)

// StatusFunc receives state pushed to the host application.
type StatusFunc func(key string, value any)

// HighlightFunc writes a highlight into the 3D view. It is a closure
// supplied by the owner of the layers.
type HighlightFunc func(knotID string, index int, value bool) error

// Manager holds the plot-side state of a view: the latest plot bindings
// and the per-knot selection. Highlights coming from the 3D view update the
// selection only; highlights coming from a plot are also pushed to the 3D
// view through the highlight callback.
type Manager struct {
	grammar   *Grammar
	status    StatusFunc
	highlight HighlightFunc

	mu        sync.Mutex
	plotsData []KnotData
	selection map[string]map[int]struct{}
}

// NewManager creates a manager seeded with the initial plot bindings.
// The initial bindings are reported through status.
func NewManager(g *Grammar, status StatusFunc, initial []KnotData, highlight HighlightFunc) *Manager {
	if status == nil {
		status = func(string, any) {}
	}
	m := &Manager{
		grammar:   g,
		status:    status,
		highlight: highlight,
		selection: map[string]map[int]struct{}{},
	}
	m.UpdateGrammarPlotsData(initial)
	return m
}

// UpdateGrammarPlotsData replaces the plot bindings and reports them.
func (m *Manager) UpdateGrammarPlotsData(data []KnotData) {
	if data == nil {
		data = []KnotData{}
	}
	m.mu.Lock()
	m.plotsData = data
	m.mu.Unlock()
	m.status(StatusPlotsData, data)
}

// PlotsData returns the latest plot bindings.
func (m *Manager) PlotsData() []KnotData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plotsData
}

// SetHighlightElementsLocally records highlighted elements keyed by knot id.
// exclusive replaces a knot's selection instead of extending it. When local
// is false the highlights originate outside the 3D view and are forwarded
// to it through the highlight callback; a knot whose callback fails keeps
// its previous selection.
func (m *Manager) SetHighlightElementsLocally(elements map[string]int, local, exclusive bool) error {
	applied := elements
	var cbErr error
	if !local && m.highlight != nil {
		applied = make(map[string]int, len(elements))
		for _, id := range slices.Sorted(maps.Keys(elements)) {
			if cbErr = m.highlight(id, elements[id], true); cbErr != nil {
				break
			}
			applied[id] = elements[id]
		}
	}
	if cbErr != nil && len(applied) == 0 {
		return cbErr
	}

	m.mu.Lock()
	for id, idx := range applied {
		if exclusive || m.selection[id] == nil {
			m.selection[id] = map[int]struct{}{}
		}
		m.selection[id][idx] = struct{}{}
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.status(StatusHighlight, snapshot)
	return cbErr
}

// ClearHighlightsLocally drops the selection of the given knots.
func (m *Manager) ClearHighlightsLocally(knotIDs []string) {
	m.mu.Lock()
	for _, id := range knotIDs {
		delete(m.selection, id)
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()
	m.status(StatusHighlight, snapshot)
}

// SelectFromPlot handles a selection made in a plot: the highlight is
// written into the 3D view, and only then is the selection updated.
func (m *Manager) SelectFromPlot(knotID string, index int, value bool) error {
	if _, ok := m.grammar.KnotByID(knotID); !ok {
		return errors.New(errors.ErrCodeUnresolvableKnot, "cannot highlight element: knot %q not found", knotID)
	}
	if value {
		return m.SetHighlightElementsLocally(map[string]int{knotID: index}, false, false)
	}

	if m.highlight != nil {
		if err := m.highlight(knotID, index, false); err != nil {
			return err
		}
	}

	m.mu.Lock()
	delete(m.selection[knotID], index)
	if len(m.selection[knotID]) == 0 {
		delete(m.selection, knotID)
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()
	m.status(StatusHighlight, snapshot)
	return nil
}

// Selection returns the selected element indices of a knot, sorted.
func (m *Manager) Selection(knotID string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.selection[knotID]))
}

func (m *Manager) snapshotLocked() map[string][]int {
	out := make(map[string][]int, len(m.selection))
	for id, set := range m.selection {
		out[id] = slices.Sorted(maps.Keys(set))
	}
	return out
}

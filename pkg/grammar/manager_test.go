package grammar

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/knotview/pkg/errors"
)

type statusRecorder struct {
	events []string
	last   map[string]any
}

func (r *statusRecorder) record(key string, value any) {
	if r.last == nil {
		r.last = map[string]any{}
	}
	r.events = append(r.events, key)
	r.last[key] = value
}

type highlightCall struct {
	knot  string
	index int
	value bool
}

func newTestManager(t *testing.T) (*Manager, *statusRecorder, *[]highlightCall) {
	t.Helper()
	in := loadCity(t)
	status := &statusRecorder{}
	var calls []highlightCall
	initial := []KnotData{{KnotID: "shadow", Elements: []Element{{Index: 0}, {Index: 1}}}}
	m := NewManager(in.ProcessedGrammar(), status.record, initial, func(knot string, index int, value bool) error {
		calls = append(calls, highlightCall{knot, index, value})
		return nil
	})
	return m, status, &calls
}

func TestManagerReportsInitialPlotsData(t *testing.T) {
	m, status, _ := newTestManager(t)
	require.Equal(t, []string{StatusPlotsData}, status.events)
	assert.Len(t, m.PlotsData(), 1)

	m.UpdateGrammarPlotsData(nil)
	assert.NotNil(t, m.PlotsData())
	assert.Empty(t, m.PlotsData())
}

func TestSetHighlightElementsLocally(t *testing.T) {
	m, status, calls := newTestManager(t)

	// from the 3D view: no echo back
	require.NoError(t, m.SetHighlightElementsLocally(map[string]int{"shadow": 3}, true, true))
	assert.Empty(t, *calls)
	assert.Equal(t, []int{3}, m.Selection("shadow"))

	// non-exclusive extends
	require.NoError(t, m.SetHighlightElementsLocally(map[string]int{"shadow": 1}, true, false))
	assert.Equal(t, []int{1, 3}, m.Selection("shadow"))

	// exclusive replaces
	require.NoError(t, m.SetHighlightElementsLocally(map[string]int{"shadow": 5}, true, true))
	assert.Equal(t, []int{5}, m.Selection("shadow"))

	// from outside: forwarded to the 3D view
	require.NoError(t, m.SetHighlightElementsLocally(map[string]int{"water": 2}, false, false))
	assert.Equal(t, []highlightCall{{"water", 2, true}}, *calls)

	snapshot := status.last[StatusHighlight].(map[string][]int)
	assert.Equal(t, []int{5}, snapshot["shadow"])
	assert.Equal(t, []int{2}, snapshot["water"])
}

func TestClearHighlightsLocally(t *testing.T) {
	m, status, _ := newTestManager(t)
	require.NoError(t, m.SetHighlightElementsLocally(map[string]int{"shadow": 1, "water": 2}, true, true))

	m.ClearHighlightsLocally([]string{"shadow"})
	assert.Empty(t, m.Selection("shadow"))
	assert.Equal(t, []int{2}, m.Selection("water"))

	snapshot := status.last[StatusHighlight].(map[string][]int)
	assert.NotContains(t, snapshot, "shadow")
}

func TestSelectFromPlot(t *testing.T) {
	m, _, calls := newTestManager(t)

	require.NoError(t, m.SelectFromPlot("shadow", 4, true))
	assert.Equal(t, []int{4}, m.Selection("shadow"))

	require.NoError(t, m.SelectFromPlot("shadow", 4, false))
	assert.Empty(t, m.Selection("shadow"))

	assert.Equal(t, []highlightCall{{"shadow", 4, true}, {"shadow", 4, false}}, *calls)

	err := m.SelectFromPlot("ghost", 0, true)
	assert.True(t, errors.Is(err, errors.ErrCodeUnresolvableKnot))
}

func TestSelectFromPlotPropagatesCallbackError(t *testing.T) {
	in := loadCity(t)
	status := &statusRecorder{}
	fail := false
	m := NewManager(in.ProcessedGrammar(), status.record, nil, func(_ string, index int, _ bool) error {
		if fail || index == 99 {
			return fmt.Errorf("element %d out of range", index)
		}
		return nil
	})

	require.NoError(t, m.SelectFromPlot("shadow", 1, true))
	events := len(status.events)

	// a rejected selection leaves the previous one in place and reports nothing
	assert.Error(t, m.SelectFromPlot("shadow", 99, true))
	assert.Equal(t, []int{1}, m.Selection("shadow"))
	assert.Len(t, status.events, events)

	// the same holds for a rejected deselection
	fail = true
	assert.Error(t, m.SelectFromPlot("shadow", 1, false))
	assert.Equal(t, []int{1}, m.Selection("shadow"))
	assert.Len(t, status.events, events)

	fail = false
	require.NoError(t, m.SelectFromPlot("shadow", 2, true))
	snapshot := status.last[StatusHighlight].(map[string][]int)
	assert.Equal(t, []int{1, 2}, snapshot["shadow"])
}

func TestSetHighlightElementsKeepsAppliedOnError(t *testing.T) {
	in := loadCity(t)
	m := NewManager(in.ProcessedGrammar(), nil, nil, func(knot string, _ int, _ bool) error {
		if knot == "water" {
			return fmt.Errorf("layer gone")
		}
		return nil
	})

	err := m.SetHighlightElementsLocally(map[string]int{"shadow": 3, "water": 2}, false, true)
	assert.Error(t, err)
	assert.Equal(t, []int{3}, m.Selection("shadow"))
	assert.Empty(t, m.Selection("water"))
}

package scene

import (
	"slices"
	"time"

	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/layer"
)

// =============================================================================
// Plot bindings
// =============================================================================

// ParsePlotsKnotData extracts the plot bindings of every knot the view's
// plots reference. Elements outside the filter box are left out. A knot
// whose layer is missing, or that waits for a joined dataset, fails the
// extraction with DATA_INTEGRITY. Pure knots are skipped.
func (c *Controller) ParsePlotsKnotData() ([]grammar.KnotData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return nil, err
	}
	return c.parsePlotsLocked(false)
}

// UpdateGrammarPlotsData re-extracts the plot bindings and hands them to
// the plot-side manager, which reports them.
func (c *Controller) UpdateGrammarPlotsData() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	return c.refreshPlotsLocked(false)
}

// PlotsData returns the bindings last handed to the plots.
func (c *Controller) PlotsData() ([]grammar.KnotData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return nil, err
	}
	return c.plots.PlotsData(), nil
}

func (c *Controller) refreshPlotsLocked(lenient bool) error {
	data, err := c.parsePlotsLocked(lenient)
	if err != nil {
		return err
	}
	c.plots.UpdateGrammarPlotsData(data)
	return nil
}

// plotKnotIDs returns the union of the knots the view's plots reference,
// in first-reference order.
func (c *Controller) plotKnotIDs() []string {
	var ids []string
	for _, p := range c.interp.Plots(c.viewID) {
		for _, id := range p.Knots {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// parsePlotsLocked builds the bindings. With lenient, knots that have no
// layer in the scene or wait for a joined dataset are left out instead of
// failing the extraction. Init, filter changes and join arrivals use it so
// a partially materialized scene still serves its plots; refreshes after a
// selection are strict and report the knot that cannot be extracted.
func (c *Controller) parsePlotsLocked(lenient bool) ([]grammar.KnotData, error) {
	start := time.Now()
	out := []grammar.KnotData{}
	total := 0

	for _, id := range c.plotKnotIDs() {
		spec, ok := c.interp.KnotByID(id, c.viewID)
		if !ok {
			return nil, errors.New(errors.ErrCodeUnresolvableKnot, "plot knot %q not found", id)
		}
		layerID := c.interp.KnotOutputLayer(spec, c.viewID)
		l := c.layers.SearchByLayerID(layerID)
		k := c.knots.KnotByID(id)
		if l == nil || k == nil {
			if lenient {
				c.logger.Debug("plot knot skipped, layer not loaded", "knot", id, "layer", layerID)
				continue
			}
			return nil, errors.New(errors.ErrCodeDataIntegrity, "layer %q not found while processing knot %q", layerID, id)
		}
		link := c.interp.KnotLastLink(spec, c.viewID)
		if link.Out.Level == nil {
			continue
		}
		level := *link.Out.Level

		if pending, ok := pendingJoin(k, c.layers); ok {
			if lenient {
				c.logger.Debug("plot knot skipped, join pending", "knot", id, "layer", pending)
				continue
			}
			return nil, errors.New(errors.ErrCodeDataIntegrity, "knot %q waits for the joined dataset of %q", id, pending)
		}

		elements := extractElements(l, level, id, k)
		total += len(elements)
		out = append(out, grammar.KnotData{KnotID: id, Elements: elements})
	}

	c.sceneHooks().OnPlotsUpdate(len(out), total, time.Since(start))
	return out, nil
}

// extractElements reads the records of a layer at level. The filter mask
// is per vertex, so a running cursor advances by the number of vertices
// each record covers.
func extractElements(l *layer.Layer, level grammar.Level, knotID string, set layer.HighlightSet) []grammar.Element {
	coords := l.CoordsByLevel(level)
	values := l.FunctionByLevel(level, knotID)
	highlighted := l.HighlightsByLevel(level, set)
	spans := l.VertexSpans(level)
	filtered := l.Mesh().Filtered()

	elements := make([]grammar.Element, 0, len(coords))
	cursor := 0
	for i := range coords {
		if len(filtered) == 0 || (cursor < len(filtered) && filtered[cursor] == 1) {
			var abstract float64
			if len(values[i]) > 0 {
				abstract = values[i][0]
			}
			elements = append(elements, grammar.Element{
				Coordinates: coords[i],
				Abstract:    abstract,
				Highlighted: highlighted[i],
				Index:       i,
			})
		}
		cursor += spans[i]
	}
	return elements
}

// =============================================================================
// Highlight propagation
// =============================================================================

// UpdateGrammarPlotsHighlight propagates a 3D selection to the plots.
// Without clear, every knot whose data ends on (layerID, level) selects
// element exclusively. With clear, level and element are ignored and every
// knot ending on layerID loses all its highlights, both in the plots and
// on the layer.
func (c *Controller) UpdateGrammarPlotsHighlight(layerID string, level grammar.Level, element int, clear bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	if err := c.updatePlotsHighlightLocked(layerID, level, element, clear); err != nil {
		return err
	}
	if clear {
		c.renderLocked()
		return c.refreshPlotsLocked(false)
	}
	return nil
}

func (c *Controller) updatePlotsHighlightLocked(layerID string, level grammar.Level, element int, clear bool) error {
	if !clear {
		elements := map[string]int{}
		for _, spec := range c.interp.Knots(c.viewID) {
			out := c.interp.KnotLastLink(spec, c.viewID).Out
			if out.Name == layerID && out.Level != nil && *out.Level == level {
				elements[spec.ID] = element
			}
		}
		return c.plots.SetHighlightElementsLocally(elements, true, true)
	}

	var ids []string
	for _, spec := range c.interp.Knots(c.viewID) {
		if c.interp.KnotLastLink(spec, c.viewID).Out.Name != layerID {
			continue
		}
		ids = append(ids, spec.ID)
		if k := c.knots.KnotByID(spec.ID); k != nil {
			k.Layer().ClearHighlights(k)
		}
	}
	c.plots.ClearHighlightsLocally(ids)
	return nil
}

// SetHighlightElement writes a highlight on a knot element into the 3D
// view and re-renders. It is the path plots use to reach the scene. A knot
// unknown to the grammar fails with UNRESOLVABLE_KNOT; pure knots are
// ignored.
func (c *Controller) SetHighlightElement(knotID string, element int, value bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	return c.setHighlightElementLocked(knotID, element, value)
}

func (c *Controller) setHighlightElementLocked(knotID string, element int, value bool) error {
	spec, ok := c.interp.KnotByID(knotID, c.viewID)
	if !ok {
		return errors.New(errors.ErrCodeUnresolvableKnot, "cannot highlight element: knot %q not found", knotID)
	}
	link := c.interp.KnotLastLink(spec, c.viewID)
	if link.Out.Level == nil {
		return nil
	}
	layerID := c.interp.KnotOutputLayer(spec, c.viewID)
	l := c.layers.SearchByLayerID(layerID)
	if l == nil {
		return errors.New(errors.ErrCodeDataIntegrity, "layer %q of knot %q not found", layerID, knotID)
	}
	k := c.knots.KnotByID(knotID)
	if k == nil {
		return errors.New(errors.ErrCodeUnresolvableKnot, "knot %q is not part of the scene", knotID)
	}
	if err := l.SetHighlightElements([]int{element}, *link.Out.Level, value, k); err != nil {
		return err
	}
	c.sceneHooks().OnHighlight(knotID, value)
	c.renderLocked()
	return nil
}

// SelectFromPlot handles a selection made in a plot: the plot-side
// selection is updated, the highlight written into the 3D view and the
// bindings re-extracted.
func (c *Controller) SelectFromPlot(knotID string, element int, value bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	if err := c.plots.SelectFromPlot(knotID, element, value); err != nil {
		return err
	}
	return c.refreshPlotsLocked(false)
}

// =============================================================================
// Filtering and joins
// =============================================================================

// SetFilterBbox sets the world-space filter box [minX, minY, maxX, maxY]
// on every layer, re-extracts the plot bindings and re-renders. An empty
// box clears the filter.
func (c *Controller) SetFilterBbox(bbox []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	if err := c.layers.SetFilterBbox(bbox); err != nil {
		return err
	}
	c.renderLocked()
	return nil
}

// SetJoinedJSON attaches a joined dataset to a layer, recomputes the
// thematic data of every knot, re-extracts the plot bindings and
// re-renders. Knots that waited for the dataset become plottable.
func (c *Controller) SetJoinedJSON(layerID string, j *layer.Joined) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	l := c.layers.SearchByLayerID(layerID)
	if l == nil {
		return errors.New(errors.ErrCodeLayerNotFound, "layer %q not found", layerID)
	}
	if err := l.SetJoinedJSON(j); err != nil {
		return err
	}
	if err := c.processThematic(c.layers, c.knots); err != nil {
		return err
	}
	if err := c.refreshPlotsLocked(true); err != nil {
		return err
	}
	c.renderLocked()
	return nil
}

package scene

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/knotview/pkg/camera"
	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/gl"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/knot"
)

// PickResult is the outcome of a click on the scene.
type PickResult struct {
	KnotID  string `json:"knotId,omitempty"`
	Element int    `json:"element"`
	Hit     bool   `json:"hit"`
}

// =============================================================================
// Rendering
// =============================================================================

// Render draws one frame and returns the number of knots drawn. Every
// knot's visibility rule is evaluated and its visible flag reconciled with
// the result before drawing. Rendering a scene that is not ready draws
// nothing.
func (c *Controller) Render() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readyLocked() != nil {
		return 0
	}
	return c.renderLocked()
}

func (c *Controller) renderLocked() int {
	if c.camera == nil {
		return 0
	}
	c.state = StateRendering

	c.gl.ClearColor(SkyColor[0], SkyColor[1], SkyColor[2], SkyColor[3])
	c.gl.Clear(gl.ColorBufferBit | gl.DepthBufferBit)
	c.gl.ClearStencil(0)
	c.gl.Clear(gl.StencilBufferBit)

	c.camera.Update()
	drawn := c.knots.Render(c.gl, c.camera, func(k *knot.Knot) bool {
		return c.interp.EvaluateKnotVisibility(k.Spec(), c.viewID)
	})

	c.frameID = uuid.NewString()
	c.state = StateIdle
	return drawn
}

// =============================================================================
// Visibility monitor
// =============================================================================

func (c *Controller) startMonitorLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.monitorDone = cancel, done
	go c.monitor(ctx, done)
}

// stopMonitor cancels the monitor and waits for it to exit. It must be
// called without holding mu.
func (c *Controller) stopMonitor() {
	c.mu.Lock()
	cancel, done := c.cancel, c.monitorDone
	c.cancel, c.monitorDone = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// monitor polls the visibility rules and re-renders when a knot's
// evaluated visibility changed since the previous poll. Rules may depend
// on state the scene does not observe, such as time or host variables.
func (c *Controller) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	var previous map[string]bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			previous = c.pollVisibilityLocked(previous)
			c.mu.Unlock()
		}
	}
}

func (c *Controller) pollVisibilityLocked(previous map[string]bool) map[string]bool {
	if c.readyLocked() != nil || c.knots == nil {
		return nil
	}
	knots := c.knots.Knots()
	if previous == nil {
		previous = make(map[string]bool, len(knots))
		for _, k := range knots {
			previous[k.ID()] = k.Visible()
		}
	}
	changed := false
	for _, k := range knots {
		current := c.interp.EvaluateKnotVisibility(k.Spec(), c.viewID)
		if previous[k.ID()] != current {
			previous[k.ID()] = current
			changed = true
		}
	}
	if changed {
		c.logger.Debug("knot visibility changed, re-rendering")
		c.renderLocked()
	}
	return previous
}

// =============================================================================
// Interaction
// =============================================================================

// Resize recomputes the viewport from the surface's client size and
// re-renders. The viewport is a square of the larger dimension; picking
// passes of visible knots reallocate their buffers before next use.
func (c *Controller) Resize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readyLocked() != nil {
		return
	}
	resize(c.surface, c.gl, c.camera, c.knots.Knots())
	c.renderLocked()
}

func resize(s Surface, ctx gl.Context, cam *camera.Camera, knots []*knot.Knot) {
	w, h := s.ClientSize()
	size := max(w, h)
	ctx.Viewport(0, 0, size, size)
	ctx.SetCanvasSize(w, h)
	cam.SetViewportResolution(w, h)
	for _, k := range knots {
		if k.Visible() {
			k.MarkResizeDirty()
		}
	}
}

// SetCamera moves the camera to (position[0], position[1]) relative to the
// world origin and re-renders.
func (c *Controller) SetCamera(p grammar.CameraParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	if len(p.Position) < 2 {
		return errors.New(errors.ErrCodeInvalidInput, "camera position needs at least 2 values, got %d", len(p.Position))
	}
	c.camera.SetPosition(p.Position[0], p.Position[1])
	c.renderLocked()
	return nil
}

// ToggleKnot sets a knot's visible flag to *value, or flips it when value
// is nil, and re-renders.
func (c *Controller) ToggleKnot(id string, value *bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	if err := c.knots.ToggleKnot(id, value); err != nil {
		return err
	}
	c.renderLocked()
	return nil
}

// Pick resolves a click at (x, y) to a knot element. The top-most visible
// knot hit wins; its element becomes the knot's only highlight, the plots
// are told about it and the scene re-renders.
func (c *Controller) Pick(x, y int) (PickResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return PickResult{}, err
	}

	knots := c.knots.Knots()
	for i := len(knots) - 1; i >= 0; i-- {
		k := knots[i]
		if !k.Visible() {
			continue
		}
		element, hit := k.Pick(c.gl, x, y)
		if !hit {
			continue
		}
		level, _ := k.Level()
		l := k.Layer()
		l.ClearHighlights(k)
		if err := l.SetHighlightElements([]int{element}, level, true, k); err != nil {
			return PickResult{}, err
		}
		c.sceneHooks().OnHighlight(k.ID(), true)
		c.renderLocked()
		if err := c.updatePlotsHighlightLocked(l.ID(), level, element, false); err != nil {
			return PickResult{}, err
		}
		if err := c.refreshPlotsLocked(false); err != nil {
			return PickResult{}, err
		}
		return PickResult{KnotID: k.ID(), Element: element, Hit: true}, nil
	}
	return PickResult{}, nil
}

package scene

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"cogentcore.org/core/math32"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/knotview/pkg/camera"
	"github.com/matzehuels/knotview/pkg/dataapi"
	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/gl"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/knot"
	"github.com/matzehuels/knotview/pkg/layer"
	"github.com/matzehuels/knotview/pkg/observability"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultMonitorInterval is the period of the visibility monitor.
	DefaultMonitorInterval = 100 * time.Millisecond

	// DefaultFetchConcurrency bounds concurrent layer fetches during Init.
	DefaultFetchConcurrency = 4
)

// SkyColor is the clear color of every frame.
var SkyColor = [4]float32{0.95, 0.96, 0.98, 1}

// =============================================================================
// Types
// =============================================================================

// GrammarInterpreter answers the queries the controller makes over a
// resolved grammar. [*grammar.Interpreter] implements it.
type GrammarInterpreter interface {
	knot.Interpreter
	ProcessedGrammar() *grammar.Grammar
	Camera(viewID int) (grammar.CameraSpec, error)
	Map(viewID int) grammar.MapSpec
	Knots(viewID int) []*grammar.Knot
	KnotOutputLayer(k *grammar.Knot, viewID int) string
	Plots(viewID int) []grammar.Plot
	FilterKnots(viewID int) []float64
}

// State is a point in the scene lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateRendering
	StateIdle
	StateDisposed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateRendering:
		return "rendering"
	case StateIdle:
		return "idle"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Options configures a Controller.
type Options struct {
	Interpreter GrammarInterpreter // Required
	Loader      dataapi.Loader     // Required
	Surfaces    *Registry          // Required
	Logger      *log.Logger        // Nil discards output
	ViewID      int                // Grammar view to render

	// Hooks receives scene events. Nil uses the registered hooks.
	Hooks observability.SceneHooks

	// MonitorInterval is the visibility polling period.
	// Zero uses DefaultMonitorInterval.
	MonitorInterval time.Duration

	// FetchConcurrency bounds concurrent layer fetches.
	// Zero uses DefaultFetchConcurrency.
	FetchConcurrency int
}

// Controller is the orchestrator of one map view. It owns the camera, the
// layer, knot and plot managers, and is the only entry point external
// collaborators call.
type Controller struct {
	interp      GrammarInterpreter
	loader      dataapi.Loader
	surfaces    *Registry
	logger      *log.Logger
	hooks       observability.SceneHooks
	viewID      int
	interval    time.Duration
	concurrency int

	initMu sync.Mutex // serializes Init and Dispose

	mu      sync.Mutex
	state   State
	surface Surface
	gl      gl.Context
	status  grammar.StatusFunc
	camera  *camera.Camera
	layers  *layer.Manager
	knots   *knot.Manager
	plots   *grammar.Manager
	groups  [][]string
	frameID string

	cancel      context.CancelFunc
	monitorDone chan struct{}
}

// New creates an uninitialized controller.
func New(opts Options) (*Controller, error) {
	if opts.Interpreter == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "scene needs a grammar interpreter")
	}
	if opts.Loader == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "scene needs a data loader")
	}
	if opts.Surfaces == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "scene needs a surface registry")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = DefaultMonitorInterval
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = DefaultFetchConcurrency
	}
	return &Controller{
		interp:      opts.Interpreter,
		loader:      opts.Loader,
		surfaces:    opts.Surfaces,
		logger:      opts.Logger,
		hooks:       opts.Hooks,
		viewID:      opts.ViewID,
		interval:    opts.MonitorInterval,
		concurrency: opts.FetchConcurrency,
	}, nil
}

func (c *Controller) sceneHooks() observability.SceneHooks {
	if c.hooks != nil {
		return c.hooks
	}
	return observability.Scene()
}

// =============================================================================
// Initialization
// =============================================================================

// Init builds the scene on the surface surfaceID and draws the first frame.
// A missing surface is not an error: Init returns nil and the scene stays
// blank. Data-client failures are returned wrapped with the payload they
// concern. A second Init tears the previous scene down first.
func (c *Controller) Init(ctx context.Context, surfaceID string, status grammar.StatusFunc) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	c.stopMonitor()

	surface, ok := c.surfaces.Lookup(surfaceID)
	if !ok {
		c.logger.Warn("surface not found, scene left blank", "surface", surfaceID)
		return nil
	}
	if status == nil {
		status = func(string, any) {}
	}

	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return errors.New(errors.ErrCodeDisposed, "scene was disposed")
	}
	c.state = StateInitializing
	c.surface = surface
	c.gl = surface.Context()
	c.status = status
	c.camera, c.layers, c.knots, c.plots, c.groups = nil, nil, nil, nil, nil
	c.startMonitorLocked()
	c.mu.Unlock()

	surface.Listen(c)

	start := time.Now()
	b, err := c.build(ctx, surface, status)
	if err == nil {
		err = c.install(b, status)
	}
	if err != nil {
		c.mu.Lock()
		c.state = StateUninitialized
		c.camera, c.layers, c.knots, c.plots, c.groups = nil, nil, nil, nil, nil
		c.mu.Unlock()
		c.stopMonitor()
		return err
	}

	c.logger.Info("scene ready",
		"surface", surfaceID,
		"layers", len(b.layers.Layers()),
		"knots", len(b.knots.Knots()),
		"duration", time.Since(start))
	return nil
}

// install publishes a built scene, extracts the initial plot bindings and
// draws the first frame.
func (c *Controller) install(b *built, status grammar.StatusFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera, c.layers, c.knots, c.groups = b.camera, b.layers, b.knots, b.groups

	initial, err := c.parsePlotsLocked(true)
	if err != nil {
		return err
	}
	c.plots = grammar.NewManager(c.interp.ProcessedGrammar(), status, initial, func(knotID string, index int, value bool) error {
		return c.setHighlightElementLocked(knotID, index, value)
	})
	c.layers.OnFilterChange(func() {
		if err := c.refreshPlotsLocked(true); err != nil {
			c.logger.Warn("plot bindings not updated after filter change", "err", err)
		}
	})
	if err := c.layers.SetFilterBbox(c.interp.FilterKnots(c.viewID)); err != nil {
		return err
	}

	c.state = StateReady
	c.renderLocked()
	return nil
}

// built is a scene assembled outside the lock.
type built struct {
	camera *camera.Camera
	layers *layer.Manager
	knots  *knot.Manager
	groups [][]string
}

func (c *Controller) build(ctx context.Context, surface Surface, status grammar.StatusFunc) (*built, error) {
	b := &built{
		layers: layer.NewManager(c.logger),
		knots:  knot.NewManager(c.logger, c.sceneHooks()),
	}
	ctxGL := surface.Context()

	spec, err := c.interp.Camera(c.viewID)
	if err != nil {
		return nil, err
	}
	if !spec.IsZero() {
		params, err := c.cameraParams(ctx, spec)
		if err != nil {
			return nil, err
		}
		if b.camera, err = camera.New(*params); err != nil {
			return nil, err
		}
		resize(surface, ctxGL, b.camera, nil)
	}

	reqs := layerRequests(c.interp.Knots(c.viewID))
	payloads, err := c.fetchLayers(ctx, reqs)
	if err != nil {
		return nil, err
	}

	if b.camera == nil {
		box := math32.B3Empty()
		for _, d := range payloads {
			if d != nil {
				box.ExpandByBox(layer.Bounds(*d))
			}
		}
		if box.IsEmpty() {
			box = math32.B3(0, 0, 0, 0, 0, 0)
		}
		if b.camera, err = camera.New(camera.FromBbox(box)); err != nil {
			return nil, err
		}
		c.logger.Debug("camera derived from layer bounds", "position", b.camera.Position())
		resize(surface, ctxGL, b.camera, nil)
	}

	if err := c.initLayers(ctx, b.layers, reqs, payloads, b.camera.WorldOrigin()); err != nil {
		return nil, err
	}
	if err := c.initKnots(b.layers, b.knots, ctxGL); err != nil {
		return nil, err
	}

	b.groups = knot.Groups(b.knots.Knots())
	status(grammar.StatusLayersIDs, b.groups)
	return b, nil
}

func (c *Controller) cameraParams(ctx context.Context, spec grammar.CameraSpec) (*grammar.CameraParams, error) {
	if spec.Params != nil {
		return spec.Params, nil
	}
	params, err := c.loader.GetCameraParameters(ctx, spec.Ref)
	if err != nil {
		return nil, fmt.Errorf("load camera %s: %w", spec.Ref, err)
	}
	return params, nil
}

// layerRequest is a layer Init fetches.
type layerRequest struct {
	id       string
	joined   bool // a link joins another layer onto this one
	optional bool // only read as the input of a join
}

// layerRequests derives the layers the knots need, in declaration order.
// Output layers are required; a layer read only as the input of a join is
// optional because abstract joins carry their values in the joined dataset.
func layerRequests(knots []*grammar.Knot) []layerRequest {
	var reqs []layerRequest
	index := map[string]int{}
	add := func(id string, optional bool) int {
		if i, ok := index[id]; ok {
			reqs[i].optional = reqs[i].optional && optional
			return i
		}
		index[id] = len(reqs)
		reqs = append(reqs, layerRequest{id: id, optional: optional})
		return len(reqs) - 1
	}
	for _, k := range knots {
		if k.KnotOp {
			continue
		}
		for _, link := range k.IntegrationScheme {
			i := add(link.Out.Name, false)
			if link.Joins() {
				reqs[i].joined = true
				add(link.In.Name, true)
			}
		}
	}
	return reqs
}

// fetchLayers loads every requested layer concurrently. The result is
// indexed like reqs; optional layers that do not exist are nil.
func (c *Controller) fetchLayers(ctx context.Context, reqs []layerRequest) ([]*layer.Data, error) {
	payloads := make([]*layer.Data, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, r := range reqs {
		g.Go(func() error {
			start := time.Now()
			d, err := c.loader.GetLayer(gctx, r.id)
			if err != nil {
				if r.optional && stderrors.Is(err, dataapi.ErrNotFound) {
					c.logger.Debug("join input layer not available", "layer", r.id)
					return nil
				}
				c.sceneHooks().OnLayerLoad(ctx, r.id, 0, time.Since(start), err)
				return fmt.Errorf("load layer %s: %w", r.id, err)
			}
			payloads[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

// initLayers builds the fetched layers in request order and attaches the
// joined datasets. A joined dataset that does not exist leaves the join
// pending until SetJoinedJSON supplies it.
func (c *Controller) initLayers(ctx context.Context, lm *layer.Manager, reqs []layerRequest, payloads []*layer.Data, centroid math32.Vector3) error {
	for i, r := range reqs {
		d := payloads[i]
		if d == nil {
			continue
		}
		start := time.Now()
		l, err := lm.CreateLayer(*d, centroid, r.joined)
		if err != nil {
			c.sceneHooks().OnLayerLoad(ctx, r.id, 0, time.Since(start), err)
			return fmt.Errorf("build layer %s: %w", r.id, err)
		}
		if l == nil {
			continue
		}
		c.sceneHooks().OnLayerLoad(ctx, r.id, l.Mesh().ElementCount(), time.Since(start), nil)

		if !r.joined {
			continue
		}
		j, err := c.loader.GetJoinedJSON(ctx, l.ID())
		switch {
		case stderrors.Is(err, dataapi.ErrNotFound):
			c.logger.Warn("joined dataset not found, join pending", "layer", l.ID())
		case err != nil:
			return fmt.Errorf("load joined dataset of %s: %w", l.ID(), err)
		default:
			if err := l.SetJoinedJSON(j); err != nil {
				return err
			}
		}
	}
	return nil
}

// initKnots creates a knot for every grammar knot whose layer was loaded,
// computes thematic data and loads the shaders.
func (c *Controller) initKnots(lm *layer.Manager, km *knot.Manager, ctxGL gl.Context) error {
	mapped := c.interp.Map(c.viewID).Knots
	for _, spec := range c.interp.Knots(c.viewID) {
		layerID := c.interp.KnotOutputLayer(spec, c.viewID)
		l := lm.SearchByLayerID(layerID)
		if l == nil {
			c.logger.Warn("knot skipped, layer not loaded", "knot", spec.ID, "layer", layerID)
			continue
		}
		km.CreateKnot(spec.ID, l, spec, c.interp, c.viewID, slices.Contains(mapped, spec.ID))
	}
	if err := c.processThematic(lm, km); err != nil {
		return err
	}
	for _, k := range km.Knots() {
		k.LoadShaders(ctxGL)
	}
	return nil
}

// processThematic computes function values, plain knots before operation
// knots. Knots waiting for a joined dataset are skipped.
func (c *Controller) processThematic(lm *layer.Manager, km *knot.Manager) error {
	for _, ops := range []bool{false, true} {
		for _, k := range km.Knots() {
			if k.Spec().KnotOp != ops {
				continue
			}
			if id, ok := pendingJoin(k, lm); ok {
				c.logger.Warn("knot waits for joined dataset", "knot", k.ID(), "layer", id)
				continue
			}
			if err := k.ProcessThematicData(lm); err != nil {
				return fmt.Errorf("knot %s: %w", k.ID(), err)
			}
		}
	}
	return nil
}

// pendingJoin returns the first layer a knot joins onto whose joined
// dataset has not been attached.
func pendingJoin(k *knot.Knot, lm *layer.Manager) (string, bool) {
	if !k.Joined() {
		return "", false
	}
	for _, link := range k.Spec().IntegrationScheme {
		if !link.Joins() {
			continue
		}
		if out := lm.SearchByLayerID(link.Out.Name); out != nil && !out.JoinApplied() {
			return out.ID(), true
		}
	}
	return "", false
}

// =============================================================================
// Teardown
// =============================================================================

// Dispose stops the monitor and releases the scene. A disposed controller
// rejects every call.
func (c *Controller) Dispose() {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	c.mu.Lock()
	c.state = StateDisposed
	c.camera, c.layers, c.knots, c.plots, c.groups = nil, nil, nil, nil, nil
	c.mu.Unlock()

	c.stopMonitor()
	c.logger.Debug("scene disposed")
}

// =============================================================================
// Accessors
// =============================================================================

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ViewID returns the grammar view the controller renders.
func (c *Controller) ViewID() int { return c.viewID }

// Camera returns a snapshot of the camera.
func (c *Controller) Camera() (camera.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return camera.State{}, err
	}
	return c.camera.State(), nil
}

// Groups returns the knot grouping reported during Init.
func (c *Controller) Groups() ([][]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return nil, err
	}
	return slices.Clone(c.groups), nil
}

// FrameID identifies the last rendered frame.
func (c *Controller) FrameID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameID
}

// LayerManager returns the scene's layers. The manager must only be used
// through the controller's lock, e.g. inside tests after Init returned.
func (c *Controller) LayerManager() *layer.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layers
}

// KnotManager returns the scene's knots, with the same caveat as
// LayerManager.
func (c *Controller) KnotManager() *knot.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.knots
}

// GrammarManager returns the plot-side state.
func (c *Controller) GrammarManager() *grammar.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plots
}

// KnotStatus describes a knot for presentation.
type KnotStatus struct {
	ID      string `json:"id"`
	Layer   string `json:"layer"`
	Level   string `json:"level,omitempty"`
	Visible bool   `json:"visible"`
	Joined  bool   `json:"joined"`
	Pending bool   `json:"pending,omitempty"`
	Group   string `json:"group,omitempty"`
}

// Knots describes every knot in render order.
func (c *Controller) Knots() ([]KnotStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return nil, err
	}
	knots := c.knots.Knots()
	out := make([]KnotStatus, len(knots))
	for i, k := range knots {
		level, _ := k.Level()
		_, pending := pendingJoin(k, c.layers)
		out[i] = KnotStatus{
			ID:      k.ID(),
			Layer:   k.Layer().ID(),
			Level:   string(level),
			Visible: k.Visible(),
			Joined:  k.Joined(),
			Pending: pending,
		}
		if g := k.Spec().Group; g != nil {
			out[i].Group = g.Name
		}
	}
	return out, nil
}

func (c *Controller) readyLocked() error {
	switch c.state {
	case StateReady, StateRendering, StateIdle:
		return nil
	case StateDisposed:
		return errors.New(errors.ErrCodeDisposed, "scene was disposed")
	default:
		return errors.New(errors.ErrCodeNotReady, "scene is %s", c.state)
	}
}

package scene

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/knotview/pkg/dataapi"
	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/gl"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/layer"
	"github.com/matzehuels/knotview/pkg/observability"
)

// =============================================================================
// Fixtures
// =============================================================================

func lvl(l grammar.Level) *grammar.Level { return grammar.LevelPtr(l) }

// memLoader serves payloads from memory.
type memLoader struct {
	mu      sync.Mutex
	layers  map[string]*layer.Data
	joined  map[string]*layer.Joined
	cameras map[string]*grammar.CameraParams
	fail    error
	calls   map[string]int
}

func newMemLoader() *memLoader {
	return &memLoader{
		layers:  map[string]*layer.Data{},
		joined:  map[string]*layer.Joined{},
		cameras: map[string]*grammar.CameraParams{},
		calls:   map[string]int{},
	}
}

func (l *memLoader) GetLayer(_ context.Context, id string) (*layer.Data, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["layer:"+id]++
	if l.fail != nil {
		return nil, l.fail
	}
	if d, ok := l.layers[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("layer %s: %w", id, dataapi.ErrNotFound)
}

func (l *memLoader) GetJoinedJSON(_ context.Context, id string) (*layer.Joined, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["joined:"+id]++
	if j, ok := l.joined[id]; ok {
		return j, nil
	}
	return nil, fmt.Errorf("joined %s: %w", id, dataapi.ErrNotFound)
}

func (l *memLoader) GetCameraParameters(_ context.Context, ref string) (*grammar.CameraParams, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["camera:"+ref]++
	if p, ok := l.cameras[ref]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("camera %s: %w", ref, dataapi.ErrNotFound)
}

// terrain has four single-vertex elements; element 1 lies far from the
// others.
func terrain() *layer.Data {
	point := func(x, y, v float64) layer.Feature {
		return layer.Feature{Geometry: layer.Geometry{Coordinates: []float64{x, y, 0}}, Values: []float64{v}}
	}
	return &layer.Data{ID: "terrain", Dimension: 3, Data: []layer.Feature{
		point(1, 1, 1), point(50, 50, 2), point(2, 2, 3), point(3, 3, 4),
	}}
}

func shadow() *layer.Data {
	return &layer.Data{ID: "shadow", Dimension: 3, Data: []layer.Feature{
		{Geometry: layer.Geometry{Coordinates: []float64{1, 1, 0}}, Values: []float64{5}},
		{Geometry: layer.Geometry{Coordinates: []float64{2, 2, 0}}, Values: []float64{7}},
		{Geometry: layer.Geometry{Coordinates: []float64{50, 50, 0}}, Values: []float64{11}},
	}}
}

var elevKnot = grammar.Knot{
	ID:                "elev",
	IntegrationScheme: []grammar.Link{{Out: grammar.LayerRef{Name: "terrain", Level: lvl(grammar.LevelObjects)}}},
}

var shadeKnot = grammar.Knot{
	ID: "shade",
	IntegrationScheme: []grammar.Link{{
		In:  &grammar.LayerRef{Name: "shadow", Level: lvl(grammar.LevelCoordinates3D)},
		Out: grammar.LayerRef{Name: "terrain", Level: lvl(grammar.LevelObjects)},
		Op:  grammar.AggregateSum,
	}},
}

func inlineCamera() grammar.CameraSpec {
	return grammar.CameraSpec{Params: &grammar.CameraParams{Position: []float64{0, 0, 100}}}
}

// testGrammar maps every knot and plots the given ones.
func testGrammar(plot []string, knots ...grammar.Knot) *grammar.Grammar {
	ids := make([]string, len(knots))
	for i, k := range knots {
		ids[i] = k.ID
	}
	g := &grammar.Grammar{
		Knots:     knots,
		Variables: map[string]any{"hour": 12},
		Views: []grammar.View{{
			Map: grammar.MapSpec{Camera: inlineCamera(), Knots: ids},
		}},
	}
	if len(plot) > 0 {
		g.Views[0].Plots = []grammar.Plot{{Name: "hist", Knots: plot}}
	}
	return g
}

// statusLog records status callbacks.
type statusLog struct {
	mu     sync.Mutex
	events map[string][]any
}

func (s *statusLog) record(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil {
		s.events = map[string][]any{}
	}
	s.events[key] = append(s.events[key], value)
}

func (s *statusLog) last(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.events[key]
	if len(ev) == 0 {
		return nil, false
	}
	return ev[len(ev)-1], true
}

// countingHooks counts the scene events it receives.
type countingHooks struct {
	observability.NoopSceneHooks
	mu         sync.Mutex
	frames     int
	visibility int
	loads      int
}

func (h *countingHooks) OnFrame(int, time.Duration) {
	h.mu.Lock()
	h.frames++
	h.mu.Unlock()
}

func (h *countingHooks) OnVisibilityChange(string, bool) {
	h.mu.Lock()
	h.visibility++
	h.mu.Unlock()
}

func (h *countingHooks) OnLayerLoad(context.Context, string, int, time.Duration, error) {
	h.mu.Lock()
	h.loads++
	h.mu.Unlock()
}

func (h *countingHooks) counts() (frames, visibility, loads int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames, h.visibility, h.loads
}

type harness struct {
	c       *Controller
	interp  *grammar.Interpreter
	loader  *memLoader
	surface *HeadlessSurface
	status  *statusLog
}

func newHarness(t *testing.T, g *grammar.Grammar, opts ...func(*Options)) *harness {
	t.Helper()
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return newUnvalidatedHarness(t, g, opts...)
}

func newUnvalidatedHarness(t *testing.T, g *grammar.Grammar, opts ...func(*Options)) *harness {
	t.Helper()
	interp, err := grammar.NewInterpreter(g)
	if err != nil {
		t.Fatalf("NewInterpreter: %v", err)
	}
	h := &harness{
		interp:  interp,
		loader:  newMemLoader(),
		surface: NewHeadlessSurface("map", 800, 600),
		status:  &statusLog{},
	}
	h.loader.layers["terrain"] = terrain()
	h.loader.layers["shadow"] = shadow()

	o := Options{
		Interpreter: interp,
		Loader:      h.loader,
		Surfaces:    NewRegistry(h.surface),
		// keep the monitor out of the way unless a test asks for it
		MonitorInterval: time.Hour,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if h.c, err = New(o); err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(h.c.Dispose)
	return h
}

// monitorRunning reports whether the visibility monitor is active.
func (h *harness) monitorRunning() bool {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	return h.c.cancel != nil
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	if err := h.c.Init(context.Background(), "map", h.status.record); err != nil {
		t.Fatalf("Init: %v", err)
	}
}

func (h *harness) plots(t *testing.T) []grammar.KnotData {
	t.Helper()
	data, err := h.c.ParsePlotsKnotData()
	if err != nil {
		t.Fatalf("ParsePlotsKnotData: %v", err)
	}
	return data
}

func highlighted(d grammar.KnotData) []int {
	var out []int
	for _, e := range d.Elements {
		if e.Highlighted {
			out = append(out, e.Index)
		}
	}
	return out
}

func indices(d grammar.KnotData) []int {
	out := make([]int, len(d.Elements))
	for i, e := range d.Elements {
		out[i] = e.Index
	}
	return out
}

// =============================================================================
// Initialization
// =============================================================================

func TestEndToEnd(t *testing.T) {
	h := newHarness(t, testGrammar([]string{"elev"}, elevKnot))
	h.init(t)

	if got := h.c.State(); got != StateIdle {
		t.Errorf("State = %v, want idle", got)
	}

	data := h.plots(t)
	if len(data) != 1 || data[0].KnotID != "elev" {
		t.Fatalf("bindings = %+v", data)
	}
	raw := terrain()
	if len(data[0].Elements) != 4 {
		t.Fatalf("got %d elements, want 4", len(data[0].Elements))
	}
	for i, e := range data[0].Elements {
		if e.Index != i || e.Highlighted {
			t.Errorf("element %d = %+v", i, e)
		}
		if !reflect.DeepEqual(e.Coordinates, raw.Data[i].Geometry.Coordinates) {
			t.Errorf("element %d coordinates = %v, want %v", i, e.Coordinates, raw.Data[i].Geometry.Coordinates)
		}
		if e.Abstract != raw.Data[i].Values[0] {
			t.Errorf("element %d abstract = %v, want %v", i, e.Abstract, raw.Data[i].Values[0])
		}
	}

	if v, ok := h.status.last(grammar.StatusLayersIDs); !ok || !reflect.DeepEqual(v, [][]string{{"elev"}}) {
		t.Errorf("layersIds = %v", v)
	}
	if v, ok := h.status.last(grammar.StatusPlotsData); !ok || len(v.([]grammar.KnotData)) != 1 {
		t.Errorf("plotsData = %v", v)
	}
	if got := h.surface.Recorder().Count("Clear"); got == 0 {
		t.Error("first frame was not rendered")
	}
}

func TestInitMissingSurface(t *testing.T) {
	h := newHarness(t, testGrammar(nil, elevKnot))
	if err := h.c.Init(context.Background(), "elsewhere", h.status.record); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := h.c.State(); got != StateUninitialized {
		t.Errorf("State = %v", got)
	}
	if len(h.status.events) != 0 {
		t.Errorf("status called: %v", h.status.events)
	}
	if n := len(h.loader.calls); n != 0 {
		t.Errorf("loader called %d times", n)
	}
	if _, err := h.c.ParsePlotsKnotData(); !errors.Is(err, errors.ErrCodeNotReady) {
		t.Errorf("ParsePlotsKnotData error = %v, want NOT_READY", err)
	}
}

func TestInitLoaderFailurePropagates(t *testing.T) {
	h := newHarness(t, testGrammar(nil, elevKnot))
	boom := stderrors.New("connection reset")
	h.loader.fail = boom

	err := h.c.Init(context.Background(), "map", h.status.record)
	if !stderrors.Is(err, boom) {
		t.Fatalf("Init error = %v, want wrapped %v", err, boom)
	}
	if got := h.c.State(); got != StateUninitialized {
		t.Errorf("State = %v", got)
	}
}

func TestInitFailureStopsMonitor(t *testing.T) {
	g := testGrammar([]string{"elev", "ghost"}, elevKnot)
	h := newUnvalidatedHarness(t, g)

	err := h.c.Init(context.Background(), "map", h.status.record)
	if !errors.Is(err, errors.ErrCodeUnresolvableKnot) {
		t.Fatalf("Init error = %v, want UNRESOLVABLE_KNOT", err)
	}
	if got := h.c.State(); got != StateUninitialized {
		t.Errorf("State = %v", got)
	}
	if h.monitorRunning() {
		t.Error("monitor still running after failed Init")
	}
	if _, err := h.c.Knots(); !errors.Is(err, errors.ErrCodeNotReady) {
		t.Errorf("Knots error = %v, want NOT_READY", err)
	}
}

func TestInitCameraByReference(t *testing.T) {
	g := testGrammar(nil, elevKnot)
	g.Views[0].Map.Camera = grammar.CameraSpec{Ref: "nyc"}
	h := newHarness(t, g)
	h.loader.cameras["nyc"] = &grammar.CameraParams{Position: []float64{10, 20, 300}}
	h.init(t)

	st, err := h.c.Camera()
	if err != nil {
		t.Fatalf("Camera: %v", err)
	}
	if st.Origin != [3]float32{10, 20, 0} || st.Position[2] != 300 {
		t.Errorf("camera = %+v", st)
	}
	if st.Viewport != [2]int{800, 600} {
		t.Errorf("viewport = %v", st.Viewport)
	}
}

func TestInitCameraFromBounds(t *testing.T) {
	g := testGrammar(nil, elevKnot)
	g.Views[0].Map.Camera = grammar.CameraSpec{}
	h := newUnvalidatedHarness(t, g)
	h.init(t)

	st, err := h.c.Camera()
	if err != nil {
		t.Fatalf("Camera: %v", err)
	}
	// terrain spans (1, 1) to (50, 50)
	if st.Origin != [3]float32{25.5, 25.5, 0} {
		t.Errorf("origin = %v", st.Origin)
	}
}

func TestInitSkipsKnotsWithoutLayer(t *testing.T) {
	empty := grammar.Knot{ID: "void", IntegrationScheme: []grammar.Link{{Out: grammar.LayerRef{Name: "empty", Level: lvl(grammar.LevelObjects)}}}}
	h := newHarness(t, testGrammar([]string{"elev", "void"}, elevKnot, empty))
	h.loader.layers["empty"] = &layer.Data{ID: "empty"}
	h.init(t)

	knots, err := h.c.Knots()
	if err != nil {
		t.Fatalf("Knots: %v", err)
	}
	if len(knots) != 1 || knots[0].ID != "elev" {
		t.Errorf("knots = %+v", knots)
	}

	// the initial bindings leave the knot out, an explicit extraction fails
	plots, _ := h.c.PlotsData()
	if len(plots) != 1 {
		t.Errorf("initial bindings = %+v", plots)
	}
	if _, err := h.c.ParsePlotsKnotData(); !errors.Is(err, errors.ErrCodeDataIntegrity) {
		t.Errorf("ParsePlotsKnotData error = %v, want DATA_INTEGRITY", err)
	}
}

func TestInitReportsGroups(t *testing.T) {
	a := elevKnot
	a.ID, a.Group = "a", &grammar.Group{Name: "g", Position: 1}
	b := elevKnot
	b.ID, b.Group = "b", &grammar.Group{Name: "g", Position: 0}
	h := newHarness(t, testGrammar(nil, a, b))
	h.init(t)

	v, _ := h.status.last(grammar.StatusLayersIDs)
	if !reflect.DeepEqual(v, [][]string{{"b", "a"}}) {
		t.Errorf("layersIds = %v", v)
	}
}

func TestReinit(t *testing.T) {
	h := newHarness(t, testGrammar([]string{"elev"}, elevKnot), func(o *Options) {
		o.MonitorInterval = time.Millisecond
	})
	h.init(t)
	h.init(t)

	if got := h.c.State(); got != StateIdle {
		t.Errorf("State = %v", got)
	}
	if got := h.loader.calls["layer:terrain"]; got != 2 {
		t.Errorf("terrain fetched %d times, want 2", got)
	}
	if len(h.plots(t)) != 1 {
		t.Error("bindings missing after re-init")
	}
}

func TestDispose(t *testing.T) {
	h := newHarness(t, testGrammar([]string{"elev"}, elevKnot))
	h.init(t)
	h.c.Dispose()

	if got := h.c.State(); got != StateDisposed {
		t.Errorf("State = %v", got)
	}
	if drawn := h.c.Render(); drawn != 0 {
		t.Errorf("Render drew %d knots after Dispose", drawn)
	}
	if _, err := h.c.ParsePlotsKnotData(); !errors.Is(err, errors.ErrCodeDisposed) {
		t.Errorf("ParsePlotsKnotData error = %v, want DISPOSED", err)
	}
	if err := h.c.Init(context.Background(), "map", nil); !errors.Is(err, errors.ErrCodeDisposed) {
		t.Errorf("Init error = %v, want DISPOSED", err)
	}
}

func TestLayerRequests(t *testing.T) {
	op := grammar.Knot{ID: "op", KnotOp: true, IntegrationScheme: []grammar.Link{{In: &grammar.LayerRef{Name: "elev"}, Out: grammar.LayerRef{Name: "shade"}, Op: "elev + shade"}}}
	got := layerRequests([]*grammar.Knot{&shadeKnot, &elevKnot, &op})
	want := []layerRequest{
		{id: "terrain", joined: true},
		{id: "shadow", optional: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("layerRequests = %+v, want %+v", got, want)
	}

	own := grammar.Knot{ID: "s", IntegrationScheme: []grammar.Link{{Out: grammar.LayerRef{Name: "shadow", Level: lvl(grammar.LevelObjects)}}}}
	got = layerRequests([]*grammar.Knot{&shadeKnot, &own})
	if got[1].optional {
		t.Error("shadow is an output layer and must be required")
	}
}

// =============================================================================
// Plot bindings and highlights
// =============================================================================

func TestFilterMask(t *testing.T) {
	g := testGrammar([]string{"elev"}, elevKnot)
	g.Views[0].Map.Filter = []float64{0, 0, 10, 10}
	h := newHarness(t, g)
	h.init(t)

	mask := h.c.LayerManager().SearchByLayerID("terrain").Mesh().Filtered()
	if !reflect.DeepEqual(mask, []int{1, 0, 1, 1}) {
		t.Fatalf("mask = %v", mask)
	}
	data := h.plots(t)
	if got := indices(data[0]); !reflect.DeepEqual(got, []int{0, 2, 3}) {
		t.Errorf("indices = %v, want [0 2 3]", got)
	}

	if err := h.c.SetFilterBbox(nil); err != nil {
		t.Fatalf("SetFilterBbox: %v", err)
	}
	plots, _ := h.c.PlotsData()
	if got := indices(plots[0]); !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Errorf("indices after clearing filter = %v", got)
	}

	if err := h.c.SetFilterBbox([]float64{10, 10, 0, 0}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("inverted box error = %v", err)
	}
}

func TestFilterMaskMultiVertexElements(t *testing.T) {
	lots := grammar.Knot{
		ID:                "lots",
		IntegrationScheme: []grammar.Link{{Out: grammar.LayerRef{Name: "parcels", Level: lvl(grammar.LevelObjects)}}},
	}
	g := testGrammar([]string{"lots"}, lots)
	g.Views[0].Map.Filter = []float64{0, 0, 10, 10}
	h := newHarness(t, g)
	// elements of 2, 3, 1 and 1 vertices; the first vertex of elements
	// 0 and 2 lies outside the box
	h.loader.layers["parcels"] = &layer.Data{ID: "parcels", Dimension: 3, Data: []layer.Feature{
		{Geometry: layer.Geometry{Coordinates: []float64{50, 50, 0, 1, 1, 0}}, Values: []float64{1}},
		{Geometry: layer.Geometry{Coordinates: []float64{1, 1, 0, 2, 2, 0, 3, 3, 0}}, Values: []float64{2}},
		{Geometry: layer.Geometry{Coordinates: []float64{60, 60, 0}}, Values: []float64{3}},
		{Geometry: layer.Geometry{Coordinates: []float64{4, 4, 0}}, Values: []float64{4}},
	}}
	h.init(t)

	mask := h.c.LayerManager().SearchByLayerID("parcels").Mesh().Filtered()
	if want := []int{0, 1, 1, 1, 1, 0, 1}; !reflect.DeepEqual(mask, want) {
		t.Fatalf("mask = %v, want %v", mask, want)
	}
	data := h.plots(t)
	if got := indices(data[0]); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("indices = %v, want [1 3]", got)
	}
	if got := data[0].Elements[1].Coordinates; len(got) != 3 {
		t.Errorf("element 3 coordinates = %v", got)
	}
}

func TestSetHighlightElementIdempotent(t *testing.T) {
	h := newHarness(t, testGrammar([]string{"elev"}, elevKnot))
	h.init(t)

	if err := h.c.SetHighlightElement("elev", 2, true); err != nil {
		t.Fatalf("SetHighlightElement: %v", err)
	}
	first := h.plots(t)
	if err := h.c.SetHighlightElement("elev", 2, true); err != nil {
		t.Fatalf("SetHighlightElement: %v", err)
	}
	second := h.plots(t)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("bindings differ:\n%+v\n%+v", first, second)
	}
	if got := highlighted(second[0]); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("highlighted = %v", got)
	}
}

func TestSetHighlightElementErrors(t *testing.T) {
	h := newHarness(t, testGrammar([]string{"elev"}, elevKnot))
	h.init(t)

	tests := []struct {
		name string
		call func() error
		code errors.Code
	}{
		{"unknown knot", func() error { return h.c.SetHighlightElement("ghost", 0, true) }, errors.ErrCodeUnresolvableKnot},
		{"unknown knot from plot", func() error { return h.c.SelectFromPlot("ghost", 0, true) }, errors.ErrCodeUnresolvableKnot},
		{"element out of range", func() error { return h.c.SetHighlightElement("elev", 9, true) }, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestClearHighlights(t *testing.T) {
	other := elevKnot
	other.ID = "elev2"
	h := newHarness(t, testGrammar([]string{"elev", "elev2"}, elevKnot, other))
	h.init(t)

	for _, id := range []string{"elev", "elev2"} {
		if err := h.c.SelectFromPlot(id, 1, true); err != nil {
			t.Fatalf("SelectFromPlot: %v", err)
		}
	}
	for _, d := range h.plots(t) {
		if got := highlighted(d); !reflect.DeepEqual(got, []int{1}) {
			t.Fatalf("%s highlighted = %v before clear", d.KnotID, got)
		}
	}

	if err := h.c.UpdateGrammarPlotsHighlight("terrain", "", 0, true); err != nil {
		t.Fatalf("UpdateGrammarPlotsHighlight: %v", err)
	}
	for _, d := range h.plots(t) {
		if n := d.HighlightedCount(); n != 0 {
			t.Errorf("%s has %d highlighted elements after clear", d.KnotID, n)
		}
		if sel := h.c.GrammarManager().Selection(d.KnotID); len(sel) != 0 {
			t.Errorf("%s selection = %v after clear", d.KnotID, sel)
		}
	}
}

func TestUpdateGrammarPlotsHighlightExclusive(t *testing.T) {
	h := newHarness(t, testGrammar([]string{"elev"}, elevKnot))
	h.init(t)

	for _, element := range []int{0, 3} {
		if err := h.c.UpdateGrammarPlotsHighlight("terrain", grammar.LevelObjects, element, false); err != nil {
			t.Fatalf("UpdateGrammarPlotsHighlight: %v", err)
		}
	}
	if got := h.c.GrammarManager().Selection("elev"); !reflect.DeepEqual(got, []int{3}) {
		t.Errorf("selection = %v, want [3]", got)
	}

	// another level does not match the knot
	if err := h.c.UpdateGrammarPlotsHighlight("terrain", grammar.LevelCoordinates, 1, false); err != nil {
		t.Fatalf("UpdateGrammarPlotsHighlight: %v", err)
	}
	if got := h.c.GrammarManager().Selection("elev"); !reflect.DeepEqual(got, []int{3}) {
		t.Errorf("selection = %v, want [3]", got)
	}
}

func TestSelectFromPlotReachesScene(t *testing.T) {
	h := newHarness(t, testGrammar([]string{"elev"}, elevKnot))
	h.init(t)

	if err := h.c.SelectFromPlot("elev", 1, true); err != nil {
		t.Fatalf("SelectFromPlot: %v", err)
	}
	plots, _ := h.c.PlotsData()
	if got := highlighted(plots[0]); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("highlighted = %v", got)
	}

	if err := h.c.SelectFromPlot("elev", 1, false); err != nil {
		t.Fatalf("SelectFromPlot: %v", err)
	}
	if n := h.plots(t)[0].HighlightedCount(); n != 0 {
		t.Errorf("%d highlighted after deselect", n)
	}
	// an element the layer does not have leaves no selection behind
	if err := h.c.SelectFromPlot("elev", 99, true); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("out-of-range select error = %v, want INVALID_INPUT", err)
	}
	if sel := h.c.GrammarManager().Selection("elev"); len(sel) != 0 {
		t.Errorf("selection = %v after rejected select", sel)
	}
}

func TestSelectionRefreshIsStrict(t *testing.T) {
	h := newHarness(t, testGrammar([]string{"elev", "shade"}, elevKnot, shadeKnot))
	h.init(t)

	// shade waits for its joined dataset, so Init leaves it out
	plots, _ := h.c.PlotsData()
	if len(plots) != 1 || plots[0].KnotID != "elev" {
		t.Fatalf("initial bindings = %+v", plots)
	}

	if err := h.c.SelectFromPlot("elev", 1, true); !errors.Is(err, errors.ErrCodeDataIntegrity) {
		t.Errorf("SelectFromPlot error = %v, want DATA_INTEGRITY", err)
	}
	if err := h.c.UpdateGrammarPlotsHighlight("terrain", "", 0, true); !errors.Is(err, errors.ErrCodeDataIntegrity) {
		t.Errorf("clear error = %v, want DATA_INTEGRITY", err)
	}

	joined := &layer.Joined{
		JoinedLayers:  []layer.JoinedLayer{{LayerID: "shadow", InLevel: grammar.LevelCoordinates3D, OutLevel: grammar.LevelObjects}},
		JoinedObjects: []layer.JoinedObject{{JoinedLayerIndex: 0, InIDs: [][]int{{0}, {1}, {2}, {}}}},
	}
	if err := h.c.SetJoinedJSON("terrain", joined); err != nil {
		t.Fatalf("SetJoinedJSON: %v", err)
	}
	if err := h.c.SelectFromPlot("elev", 1, true); err != nil {
		t.Fatalf("SelectFromPlot after join: %v", err)
	}
	plots, _ = h.c.PlotsData()
	if len(plots) != 2 {
		t.Fatalf("bindings after join = %+v", plots)
	}
	if got := highlighted(plots[0]); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("elev highlighted = %v", got)
	}
}

// =============================================================================
// Joins
// =============================================================================

func TestJoinPendingUntilApplied(t *testing.T) {
	h := newHarness(t, testGrammar([]string{"shade"}, shadeKnot))
	h.init(t)

	knots, _ := h.c.Knots()
	if len(knots) != 1 || !knots[0].Joined || !knots[0].Pending {
		t.Fatalf("knots = %+v", knots)
	}
	if _, err := h.c.ParsePlotsKnotData(); !errors.Is(err, errors.ErrCodeDataIntegrity) {
		t.Fatalf("ParsePlotsKnotData error = %v, want DATA_INTEGRITY", err)
	}

	joined := &layer.Joined{
		JoinedLayers:  []layer.JoinedLayer{{LayerID: "shadow", InLevel: grammar.LevelCoordinates3D, OutLevel: grammar.LevelObjects}},
		JoinedObjects: []layer.JoinedObject{{JoinedLayerIndex: 0, InIDs: [][]int{{0, 1}, {2}, {}, {0}}}},
	}
	if err := h.c.SetJoinedJSON("terrain", joined); err != nil {
		t.Fatalf("SetJoinedJSON: %v", err)
	}

	data := h.plots(t)
	var got []float64
	for _, e := range data[0].Elements {
		got = append(got, e.Abstract)
	}
	if want := []float64{12, 11, 0, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("joined values = %v, want %v", got, want)
	}
	if err := h.c.SetJoinedJSON("nowhere", joined); !errors.Is(err, errors.ErrCodeLayerNotFound) {
		t.Errorf("SetJoinedJSON on unknown layer = %v", err)
	}
}

func TestJoinFetchedDuringInit(t *testing.T) {
	h := newHarness(t, testGrammar([]string{"shade"}, shadeKnot))
	h.loader.joined["terrain"] = &layer.Joined{
		JoinedLayers:  []layer.JoinedLayer{{LayerID: "shadow", InLevel: grammar.LevelCoordinates3D, OutLevel: grammar.LevelObjects}},
		JoinedObjects: []layer.JoinedObject{{JoinedLayerIndex: 0, InIDs: [][]int{{0}, {1}, {2}, {}}}},
	}
	h.init(t)

	data := h.plots(t)
	if data[0].Elements[2].Abstract != 11 {
		t.Errorf("element 2 = %+v", data[0].Elements[2])
	}
	if h.loader.calls["joined:terrain"] != 1 || h.loader.calls["joined:shadow"] != 0 {
		t.Errorf("joined fetches = %v", h.loader.calls)
	}
}

// =============================================================================
// Rendering
// =============================================================================

func TestVisibilityConsistency(t *testing.T) {
	g := testGrammar(nil, elevKnot)
	g.Views[0].Map.KnotVisibility = []grammar.VisibilityRule{{Knot: "elev", Test: "hour > 6"}}
	h := newHarness(t, g)
	h.init(t)

	spec, _ := h.interp.KnotByID("elev", 0)
	for _, hour := range []int{12, 3, 9} {
		h.interp.SetVariable("hour", hour)
		h.c.Render()
		k := h.c.KnotManager().KnotByID("elev")
		if want := h.interp.EvaluateKnotVisibility(spec, 0); k.Visible() != want {
			t.Errorf("hour %d: visible = %v, rule = %v", hour, k.Visible(), want)
		}
	}
}

func TestToggleKnot(t *testing.T) {
	h := newHarness(t, testGrammar(nil, elevKnot))
	h.init(t)

	if err := h.c.ToggleKnot("ghost", nil); !errors.Is(err, errors.ErrCodeUnresolvableKnot) {
		t.Errorf("ToggleKnot error = %v", err)
	}
	rec := h.surface.Recorder()
	rec.Reset()
	if err := h.c.ToggleKnot("elev", nil); err != nil {
		t.Fatalf("ToggleKnot: %v", err)
	}
	if rec.Count("Clear") == 0 {
		t.Error("toggle did not re-render")
	}
}

func TestMonitorRerendersOnVisibilityChange(t *testing.T) {
	g := testGrammar(nil, elevKnot)
	g.Views[0].Map.KnotVisibility = []grammar.VisibilityRule{{Knot: "elev", Test: "hour > 6"}}
	h := newHarness(t, g, func(o *Options) { o.MonitorInterval = 5 * time.Millisecond })
	h.init(t)

	h.interp.SetVariable("hour", 2)
	deadline := time.Now().Add(2 * time.Second)
	for {
		knots, err := h.c.Knots()
		if err != nil {
			t.Fatalf("Knots: %v", err)
		}
		if !knots[0].Visible {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("monitor did not pick up the visibility change")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSceneHooksReceiveRenderEvents(t *testing.T) {
	g := testGrammar(nil, elevKnot)
	g.Views[0].Map.KnotVisibility = []grammar.VisibilityRule{{Knot: "elev", Test: "hour > 6"}}
	hooks := &countingHooks{}
	h := newHarness(t, g, func(o *Options) {
		o.Hooks = hooks
		o.MonitorInterval = 5 * time.Millisecond
	})
	h.init(t)

	frames, _, loads := hooks.counts()
	if frames == 0 {
		t.Error("no frame reported after Init")
	}
	if loads != 1 {
		t.Errorf("layer loads = %d, want 1", loads)
	}

	h.interp.SetVariable("hour", 2)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, visibility, _ := hooks.counts(); visibility > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("visibility change not reported to the scene hooks")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestResize(t *testing.T) {
	h := newHarness(t, testGrammar(nil, elevKnot))
	h.init(t)
	rec := h.surface.Recorder()

	if w, hh, ok := rec.FramebufferSize("elev_picking"); !ok || w != 800 || hh != 600 {
		t.Fatalf("picking buffer = %dx%d (%v)", w, hh, ok)
	}

	rec.Reset()
	h.surface.SetClientSize(300, 500)

	var viewport []any
	for _, call := range rec.Calls() {
		if call.Op == "Viewport" {
			viewport = call.Args
		}
	}
	if !reflect.DeepEqual(viewport, []any{0, 0, 500, 500}) {
		t.Errorf("viewport = %v, want square of 500", viewport)
	}
	if w, hh, _ := rec.FramebufferSize("elev_picking"); w != 300 || hh != 500 {
		t.Errorf("picking buffer = %dx%d after resize", w, hh)
	}
	st, _ := h.c.Camera()
	if st.Viewport != [2]int{300, 500} {
		t.Errorf("camera viewport = %v", st.Viewport)
	}
}

func TestPick(t *testing.T) {
	h := newHarness(t, testGrammar([]string{"elev"}, elevKnot))
	h.init(t)
	rec := h.surface.Recorder()

	miss, err := h.surface.Click(5, 5)
	if err != nil || miss.Hit {
		t.Fatalf("Click on empty pixel = %+v, %v", miss, err)
	}

	rec.SetPixel("elev_picking", 10, 20, 3)
	got, err := h.surface.Click(10, 20)
	if err != nil {
		t.Fatalf("Click: %v", err)
	}
	if want := (PickResult{KnotID: "elev", Element: 2, Hit: true}); got != want {
		t.Errorf("pick = %+v, want %+v", got, want)
	}
	if sel := h.c.GrammarManager().Selection("elev"); !reflect.DeepEqual(sel, []int{2}) {
		t.Errorf("selection = %v", sel)
	}
	plots, _ := h.c.PlotsData()
	if hl := highlighted(plots[0]); !reflect.DeepEqual(hl, []int{2}) {
		t.Errorf("highlighted = %v", hl)
	}

	// a second pick replaces the highlight
	rec.SetPixel("elev_picking", 10, 20, 1)
	if _, err := h.surface.Click(10, 20); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if hl := highlighted(h.plots(t)[0]); !reflect.DeepEqual(hl, []int{0}) {
		t.Errorf("highlighted after second pick = %v", hl)
	}

	var picked bool
	for _, d := range rec.Draws() {
		if d.Framebuffer == "elev_picking" && d.Mode == gl.Points {
			picked = true
		}
	}
	if !picked {
		t.Error("picking pass was not drawn")
	}
}

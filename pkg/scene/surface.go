package scene

import (
	"sync"

	"github.com/matzehuels/knotview/pkg/gl"
)

// Input receives the events a surface raises.
type Input interface {
	// Resize is called after the surface's client size changed.
	Resize()
	// Pick is called for a click at (x, y) in canvas pixels.
	Pick(x, y int) (PickResult, error)
}

// Surface hosts a scene: it owns the rendering context and raises input
// events.
type Surface interface {
	ID() string
	ClientSize() (width, height int)
	Context() gl.Context
	// Listen routes the surface's events to in, replacing any previous
	// listener.
	Listen(in Input)
}

// Registry finds surfaces by id. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	surfaces map[string]Surface
}

// NewRegistry creates a registry holding the given surfaces.
func NewRegistry(surfaces ...Surface) *Registry {
	r := &Registry{surfaces: make(map[string]Surface, len(surfaces))}
	for _, s := range surfaces {
		r.Register(s)
	}
	return r
}

// Register adds s, replacing a surface with the same id.
func (r *Registry) Register(s Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surfaces[s.ID()] = s
}

// Remove drops the surface with the given id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.surfaces, id)
}

// Lookup returns the surface with the given id.
func (r *Registry) Lookup(id string) (Surface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surfaces[id]
	return s, ok
}

// HeadlessSurface is a surface backed by a [gl.Recorder]. It is used by the
// CLI and the HTTP server, which render without a window, and by tests.
type HeadlessSurface struct {
	id  string
	rec *gl.Recorder

	mu     sync.Mutex
	width  int
	height int
	input  Input
}

// NewHeadlessSurface creates a surface with the given client size.
func NewHeadlessSurface(id string, width, height int) *HeadlessSurface {
	return &HeadlessSurface{
		id:     id,
		rec:    gl.NewRecorder(width, height),
		width:  width,
		height: height,
	}
}

func (s *HeadlessSurface) ID() string             { return s.id }
func (s *HeadlessSurface) Context() gl.Context    { return s.rec }
func (s *HeadlessSurface) Recorder() *gl.Recorder { return s.rec }

// ClientSize returns the current client size.
func (s *HeadlessSurface) ClientSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Listen routes events to in.
func (s *HeadlessSurface) Listen(in Input) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = in
}

// SetClientSize changes the client size and raises a resize event.
func (s *HeadlessSurface) SetClientSize(width, height int) {
	s.mu.Lock()
	s.width, s.height = width, height
	in := s.input
	s.mu.Unlock()
	if in != nil {
		in.Resize()
	}
}

// Click raises a pick event at (x, y). Without a listener nothing is hit.
func (s *HeadlessSurface) Click(x, y int) (PickResult, error) {
	s.mu.Lock()
	in := s.input
	s.mu.Unlock()
	if in == nil {
		return PickResult{}, nil
	}
	return in.Pick(x, y)
}

package gl

import (
	"fmt"
	"slices"
	"sync"
)

// Call is one recorded Context call.
type Call struct {
	Op   string
	Args []any
}

// String formats the call for logs and debugging.
func (c Call) String() string { return fmt.Sprintf("%s%v", c.Op, c.Args) }

// Draw is a recorded DrawArrays call with the state it ran under.
type Draw struct {
	Program     string
	Framebuffer string
	Mode        Mode
	Count       int
}

type framebuffer struct {
	width, height int
	pixels        map[[2]int]uint32
}

// Recorder is a headless Context that records calls. Offscreen framebuffers
// return whatever SetPixel stored in them.
//
// Recorder is safe for concurrent use.
type Recorder struct {
	mu            sync.Mutex
	calls         []Call
	draws         []Draw
	width, height int
	program       string
	bound         string
	fbs           map[string]*framebuffer
}

// NewRecorder returns a recorder with a canvas of the given size.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{
		width:  width,
		height: height,
		fbs:    map[string]*framebuffer{DefaultFramebuffer: {width: width, height: height, pixels: map[[2]int]uint32{}}},
	}
}

func (r *Recorder) record(op string, args ...any) {
	r.calls = append(r.calls, Call{Op: op, Args: args})
}

func (r *Recorder) ClearColor(cr, cg, cb, ca float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("ClearColor", cr, cg, cb, ca)
}

func (r *Recorder) Clear(mask Mask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Clear", mask)
}

func (r *Recorder) ClearStencil(s int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("ClearStencil", s)
}

func (r *Recorder) Viewport(x, y, width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Viewport", x, y, width, height)
}

func (r *Recorder) SetCanvasSize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = width, height
	r.record("SetCanvasSize", width, height)
}

func (r *Recorder) CanvasSize() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *Recorder) UseProgram(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.program = name
	r.record("UseProgram", name)
}

func (r *Recorder) Uniform(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Uniform", name, value)
}

func (r *Recorder) Attribute(name string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Attribute", name, data)
}

func (r *Recorder) AllocFramebuffer(name string, width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fbs[name] = &framebuffer{width: width, height: height, pixels: map[[2]int]uint32{}}
	r.record("AllocFramebuffer", name, width, height)
}

func (r *Recorder) BindFramebuffer(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound = name
	r.record("BindFramebuffer", name)
}

func (r *Recorder) DrawArrays(mode Mode, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws = append(r.draws, Draw{Program: r.program, Framebuffer: r.bound, Mode: mode, Count: count})
	r.record("DrawArrays", mode, count)
}

func (r *Recorder) ReadPixel(x, y int) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("ReadPixel", x, y)
	fb := r.fbs[r.bound]
	if fb == nil {
		return 0
	}
	return fb.pixels[[2]int{x, y}]
}

// SetPixel stores a value in a framebuffer, allocating it if needed.
func (r *Recorder) SetPixel(name string, x, y int, v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fb := r.fbs[name]
	if fb == nil {
		fb = &framebuffer{pixels: map[[2]int]uint32{}}
		r.fbs[name] = fb
	}
	fb.pixels[[2]int{x, y}] = v
}

// FramebufferSize returns the allocated size of an offscreen framebuffer.
func (r *Recorder) FramebufferSize(name string) (width, height int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fb, ok := r.fbs[name]
	if !ok {
		return 0, 0, false
	}
	return fb.width, fb.height, true
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Draws returns a copy of the recorded draw calls.
func (r *Recorder) Draws() []Draw {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.draws)
}

// Count returns how many times op was called.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset drops recorded calls and draws. Framebuffers are kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.draws = nil
}

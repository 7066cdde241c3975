// Package gl defines the rendering context knots draw into.
//
// The scene never talks to a GPU API directly. A host embeds knotview by
// implementing [Context] on top of its own graphics binding; [Recorder] is
// a headless implementation that records every call, used by the CLI and in
// tests.
package gl

// Mask selects buffers to clear.
type Mask uint8

const (
	ColorBufferBit Mask = 1 << iota
	DepthBufferBit
	StencilBufferBit
)

// Mode is a primitive assembly mode.
type Mode string

const (
	Triangles Mode = "TRIANGLES"
	Lines     Mode = "LINES"
	Points    Mode = "POINTS"
)

// DefaultFramebuffer is the on-screen framebuffer.
const DefaultFramebuffer = ""

// Context is the subset of a WebGL-like API the scene uses.
type Context interface {
	ClearColor(r, g, b, a float32)
	Clear(mask Mask)
	ClearStencil(s int)
	Viewport(x, y, width, height int)

	SetCanvasSize(width, height int)
	CanvasSize() (width, height int)

	UseProgram(name string)
	Uniform(name string, value any)
	Attribute(name string, data any)

	// AllocFramebuffer (re)allocates an offscreen framebuffer.
	AllocFramebuffer(name string, width, height int)
	BindFramebuffer(name string)
	DrawArrays(mode Mode, count int)

	// ReadPixel returns the encoded value at (x, y) of the bound
	// framebuffer; 0 means nothing was drawn there.
	ReadPixel(x, y int) uint32
}

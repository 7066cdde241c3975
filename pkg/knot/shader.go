package knot

import (
	"github.com/matzehuels/knotview/pkg/camera"
	"github.com/matzehuels/knotview/pkg/gl"
	"github.com/matzehuels/knotview/pkg/layer"
)

// Program names issued through gl.Context.UseProgram.
const (
	ProgramStandard = "standard"
	ProgramPicking  = "picking"
)

// Shader is one render pass of a knot.
type Shader interface {
	Name() string
	Draw(ctx gl.Context, cam *camera.Camera, mesh *layer.Mesh)
}

// Resizable passes own buffers sized to the canvas. A dirty pass
// reallocates them before its next draw.
type Resizable interface {
	SetResizeDirty(dirty bool)
	ResizeDirty() bool
}

// Pickable passes resolve a screen position to an element index.
type Pickable interface {
	Pick(ctx gl.Context, x, y int) (element int, ok bool)
}

// Highlightable passes draw per-vertex highlight flags.
type Highlightable interface {
	SetHighlights(flags []bool)
}

// Thematic passes color vertices by function value.
type Thematic interface {
	SetFunction(values []float32)
}

// =============================================================================
// Standard pass
// =============================================================================

type standardShader struct {
	colorMap   string
	function   []float32
	highlights []bool
}

func newStandardShader(colorMap string) *standardShader {
	if colorMap == "" {
		colorMap = "interpolateReds"
	}
	return &standardShader{colorMap: colorMap}
}

func (s *standardShader) Name() string { return ProgramStandard }

func (s *standardShader) SetFunction(values []float32) { s.function = values }

func (s *standardShader) SetHighlights(flags []bool) { s.highlights = flags }

func (s *standardShader) Draw(ctx gl.Context, cam *camera.Camera, mesh *layer.Mesh) {
	ctx.UseProgram(ProgramStandard)
	setCameraUniforms(ctx, cam)
	ctx.Uniform("uColorMap", s.colorMap)
	ctx.Attribute("vertCoords", mesh.Coords32())
	ctx.Attribute("funcValues", s.function)
	ctx.Attribute("inHighlighted", s.highlights)
	ctx.Attribute("inFiltered", mesh.Filtered())
	drawMesh(ctx, mesh)
}

// =============================================================================
// Picking pass
// =============================================================================

// pickingShader renders element ids into an offscreen framebuffer. Ids are
// stored as index+1 so that 0 means background.
type pickingShader struct {
	framebuffer string
	ids         []uint32
	dirty       bool
}

func newPickingShader(knotID string, ids []uint32) *pickingShader {
	return &pickingShader{framebuffer: knotID + "_picking", ids: ids, dirty: true}
}

func (s *pickingShader) Name() string { return ProgramPicking }

func (s *pickingShader) SetResizeDirty(dirty bool) { s.dirty = dirty }

func (s *pickingShader) ResizeDirty() bool { return s.dirty }

func (s *pickingShader) Draw(ctx gl.Context, cam *camera.Camera, mesh *layer.Mesh) {
	if s.dirty {
		w, h := ctx.CanvasSize()
		ctx.AllocFramebuffer(s.framebuffer, w, h)
		s.dirty = false
	}
	ctx.BindFramebuffer(s.framebuffer)
	ctx.Clear(gl.ColorBufferBit | gl.DepthBufferBit)
	ctx.UseProgram(ProgramPicking)
	setCameraUniforms(ctx, cam)
	ctx.Attribute("vertCoords", mesh.Coords32())
	ctx.Attribute("cellIds", s.ids)
	drawMesh(ctx, mesh)
	ctx.BindFramebuffer(gl.DefaultFramebuffer)
}

func (s *pickingShader) Pick(ctx gl.Context, x, y int) (int, bool) {
	if s.dirty {
		// buffer not allocated for the current canvas yet
		return 0, false
	}
	ctx.BindFramebuffer(s.framebuffer)
	v := ctx.ReadPixel(x, y)
	ctx.BindFramebuffer(gl.DefaultFramebuffer)
	if v == 0 {
		return 0, false
	}
	return int(v) - 1, true
}

func setCameraUniforms(ctx gl.Context, cam *camera.Camera) {
	s := cam.State()
	ctx.Uniform("uWorldOrigin", s.Origin)
	ctx.Uniform("uCameraPos", s.Position)
	ctx.Uniform("uLookAt", s.LookAt)
	ctx.Uniform("uUp", s.Up)
}

func drawMesh(ctx gl.Context, mesh *layer.Mesh) {
	if n := mesh.IndexCount(); n > 0 {
		ctx.DrawArrays(gl.Triangles, n)
		return
	}
	ctx.DrawArrays(gl.Points, mesh.VertexCount())
}

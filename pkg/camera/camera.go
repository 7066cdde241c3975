// Package camera holds the view state of a scene.
//
// The camera keeps its world origin separately from its position: the
// origin is the point layer coordinates are normalized against, and the
// position is relative to it.
package camera

import (
	"cogentcore.org/core/math32"

	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/grammar"
)

// Default orientation used when camera parameters omit a direction.
var (
	DefaultUp     = math32.Vec3(0, 1, 0)
	DefaultLookAt = math32.Vec3(0, 0, -1)
	DefaultRight  = math32.Vec3(1, 0, 0)
)

// State is a serializable snapshot of the camera.
type State struct {
	Origin   [3]float32 `json:"origin"`
	Position [3]float32 `json:"position"`
	Up       [3]float32 `json:"up"`
	LookAt   [3]float32 `json:"lookAt"`
	Right    [3]float32 `json:"right"`
	Viewport [2]int     `json:"viewport"`
	Frame    uint64     `json:"frame"`
}

// Camera is the view state of one scene. It is not safe for concurrent use.
type Camera struct {
	origin   math32.Vector3
	position math32.Vector3
	up       math32.Vector3
	lookAt   math32.Vector3
	right    math32.Vector3
	width    int
	height   int
	frame    uint64
}

// New creates a camera from grammar parameters.
func New(p grammar.CameraParams) (*Camera, error) {
	c := &Camera{}
	if err := c.Reset(p); err != nil {
		return nil, err
	}
	return c, nil
}

// Reset replaces the camera state. Position is [x, y, z] in world
// coordinates; (x, y) becomes the world origin.
func (c *Camera) Reset(p grammar.CameraParams) error {
	if len(p.Position) != 3 {
		return errors.New(errors.ErrCodeInvalidInput, "camera position needs 3 values, got %d", len(p.Position))
	}
	up, err := vec(p.Direction.Up, DefaultUp, "up")
	if err != nil {
		return err
	}
	lookAt, err := vec(p.Direction.LookAt, DefaultLookAt, "lookAt")
	if err != nil {
		return err
	}
	right, err := vec(p.Direction.Right, DefaultRight, "right")
	if err != nil {
		return err
	}

	c.origin = math32.Vec3(float32(p.Position[0]), float32(p.Position[1]), 0)
	c.position = math32.Vec3(0, 0, float32(p.Position[2]))
	c.up, c.lookAt, c.right = up, lookAt, right
	c.orthonormalize()
	return nil
}

func vec(v []float64, def math32.Vector3, name string) (math32.Vector3, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 3:
		return math32.Vec3(float32(v[0]), float32(v[1]), float32(v[2])), nil
	default:
		return math32.Vector3{}, errors.New(errors.ErrCodeInvalidInput, "camera %s needs 3 values, got %d", name, len(v))
	}
}

// SetPosition moves the camera over world coordinates (x, y), keeping its
// height.
func (c *Camera) SetPosition(x, y float64) {
	c.position.X = float32(x) - c.origin.X
	c.position.Y = float32(y) - c.origin.Y
}

// SetViewportResolution records the size of the drawing surface.
func (c *Camera) SetViewportResolution(width, height int) {
	c.width, c.height = width, height
}

// ViewportResolution returns the size set by SetViewportResolution.
func (c *Camera) ViewportResolution() (width, height int) { return c.width, c.height }

// Update advances the camera by one frame.
func (c *Camera) Update() {
	c.orthonormalize()
	c.frame++
}

// orthonormalize rebuilds right and up from lookAt so the triple stays
// orthonormal.
func (c *Camera) orthonormalize() {
	if c.lookAt.Length() == 0 {
		c.lookAt = DefaultLookAt
	}
	c.lookAt = c.lookAt.Normal()

	right := c.lookAt.Cross(c.up)
	if right.Length() < 1e-6 {
		right = c.right
		if right.Length() < 1e-6 || math32.Abs(right.Dot(c.lookAt)) > 1-1e-6 {
			right = DefaultRight
		}
	}
	c.right = right.Normal()
	c.up = c.right.Cross(c.lookAt).Normal()
}

// WorldOrigin returns the point layer coordinates are stored relative to.
func (c *Camera) WorldOrigin() math32.Vector3 { return c.origin }

// Position returns the camera position relative to the world origin.
func (c *Camera) Position() math32.Vector3 { return c.position }

// State returns a snapshot of the camera.
func (c *Camera) State() State {
	return State{
		Origin:   arr(c.origin),
		Position: arr(c.position),
		Up:       arr(c.up),
		LookAt:   arr(c.lookAt),
		Right:    arr(c.right),
		Viewport: [2]int{c.width, c.height},
		Frame:    c.frame,
	}
}

func arr(v math32.Vector3) [3]float32 { return [3]float32{v.X, v.Y, v.Z} }

// FromBbox returns parameters looking straight down at the center of box
// from high enough to see all of it.
func FromBbox(box math32.Box3) grammar.CameraParams {
	center := box.Center()
	size := box.Max.Sub(box.Min)
	height := math32.Max(size.X, size.Y)*1.5 + box.Max.Z
	if height <= 0 {
		height = 1
	}
	return grammar.CameraParams{
		Position: []float64{float64(center.X), float64(center.Y), float64(height)},
		Direction: grammar.Direction{
			Up:     []float64{0, 1, 0},
			LookAt: []float64{0, 0, -1},
			Right:  []float64{1, 0, 0},
		},
	}
}

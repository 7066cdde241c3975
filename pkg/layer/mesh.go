package layer

import (
	"cogentcore.org/core/math32"

	"github.com/matzehuels/knotview/pkg/errors"
)

// Mesh is the normalized geometry of a layer. Vertices are stored relative
// to the world origin the layer was created with.
type Mesh struct {
	dimension int
	centroid  math32.Vector3

	coords []float64 // flat, dimension components per vertex
	starts []int     // first vertex of each element
	counts []int     // vertex count of each element
	values []float64 // one value per vertex

	indices [][]uint32
	normals [][]float32
	ids     [][]uint32

	// filtered is the spatial filter mask, one entry per vertex
	// (1 = inside). Empty when no filter is set.
	filtered []int
}

func newMesh(layerID string, dim int, features []Feature, centroid math32.Vector3) (*Mesh, error) {
	m := &Mesh{
		dimension: dim,
		centroid:  centroid,
		starts:    make([]int, len(features)),
		counts:    make([]int, len(features)),
	}
	origin := [3]float64{float64(centroid.X), float64(centroid.Y), float64(centroid.Z)}

	vertex := 0
	for i, f := range features {
		coords := f.Geometry.Coordinates
		if len(coords)%dim != 0 {
			return nil, errors.New(errors.ErrCodeDataIntegrity,
				"layer %q element %d: %d coordinates is not a multiple of dimension %d", layerID, i, len(coords), dim)
		}
		n := len(coords) / dim
		switch len(f.Values) {
		case 0, n:
		case 1:
			// one value for the whole element
		default:
			return nil, errors.New(errors.ErrCodeDataIntegrity,
				"layer %q element %d: %d values for %d vertices", layerID, i, len(f.Values), n)
		}

		m.starts[i] = vertex
		m.counts[i] = n
		for v := 0; v < n; v++ {
			for c := 0; c < dim; c++ {
				x := coords[v*dim+c]
				if c < 3 {
					x -= origin[c]
				}
				m.coords = append(m.coords, x)
			}
			switch len(f.Values) {
			case 0:
				m.values = append(m.values, 0)
			case 1:
				m.values = append(m.values, f.Values[0])
			default:
				m.values = append(m.values, f.Values[v])
			}
		}
		vertex += n

		m.indices = append(m.indices, f.Geometry.Indices)
		m.normals = append(m.normals, f.Geometry.Normals)
		m.ids = append(m.ids, f.Geometry.IDs)
	}
	return m, nil
}

// Dimension returns the number of components per vertex.
func (m *Mesh) Dimension() int { return m.dimension }

// ElementCount returns the number of geometry elements.
func (m *Mesh) ElementCount() int { return len(m.starts) }

// VertexCount returns the total number of vertices.
func (m *Mesh) VertexCount() int { return len(m.values) }

// Filtered returns the spatial filter mask, one entry per vertex. It is
// empty when no filter applies. The slice must not be modified.
func (m *Mesh) Filtered() []int { return m.filtered }

// Indices returns the triangle indices of element i.
func (m *Mesh) Indices(i int) []uint32 { return m.indices[i] }

// vertex returns the normalized components of vertex v.
func (m *Mesh) vertex(v int) []float64 {
	return m.coords[v*m.dimension : (v+1)*m.dimension]
}

// element returns the normalized flat coordinates of element i.
func (m *Mesh) element(i int) []float64 {
	return m.coords[m.starts[i]*m.dimension : (m.starts[i]+m.counts[i])*m.dimension]
}

// setFilter recomputes the mask from a world-space box. A nil box clears it.
func (m *Mesh) setFilter(box *math32.Box2) {
	if box == nil {
		m.filtered = nil
		return
	}
	mask := make([]int, m.VertexCount())
	for v := range mask {
		p := m.vertex(v)
		var y float64
		if m.dimension > 1 {
			y = p[1]
		}
		world := math32.Vec2(float32(p[0])+m.centroid.X, float32(y)+m.centroid.Y)
		if box.ContainsPoint(world) {
			mask[v] = 1
		}
	}
	m.filtered = mask
}

// Coords32 returns the normalized vertex buffer as float32.
func (m *Mesh) Coords32() []float32 {
	out := make([]float32, len(m.coords))
	for i, c := range m.coords {
		out[i] = float32(c)
	}
	return out
}

// IndexCount returns the total number of triangle indices.
func (m *Mesh) IndexCount() int {
	n := 0
	for _, idx := range m.indices {
		n += len(idx)
	}
	return n
}

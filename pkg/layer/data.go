package layer

import (
	"strings"

	"github.com/matzehuels/knotview/pkg/grammar"
)

// Data is the content of a layer file.
//
//	{"id": "water", "type": "TRIANGLES_3D_LAYER", "renderStyle": ["SMOOTH_COLOR"],
//	 "styleKey": "surface", "data": [{"geometry": {"coordinates": [...]}}]}
type Data struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	RenderStyle []string  `json:"renderStyle,omitempty"`
	StyleKey    string    `json:"styleKey,omitempty"`
	Dimension   int       `json:"dimension,omitempty"`
	Data        []Feature `json:"data"`
}

// Feature is one geometry element and its per-vertex values.
type Feature struct {
	Geometry Geometry  `json:"geometry"`
	Values   []float64 `json:"values,omitempty"`
}

// Geometry holds flat vertex arrays. In layer files backed by binary side
// files each field is a [start, size] pair into <id>_<field>.data instead.
type Geometry struct {
	Coordinates []float64 `json:"coordinates"`
	Indices     []uint32  `json:"indices,omitempty"`
	Normals     []float32 `json:"normals,omitempty"`
	IDs         []uint32  `json:"ids,omitempty"`
}

// MeshDimension returns the number of components per vertex.
func (d *Data) MeshDimension() int {
	if d.Dimension > 0 {
		return d.Dimension
	}
	if strings.Contains(strings.ToUpper(d.Type), "2D") {
		return 2
	}
	return 3
}

// Joined is the content of a <id>_joined.json file: which layers were
// spatially joined onto this one and, per join, the matched input ids or
// the precomputed values for each output element.
type Joined struct {
	JoinedLayers  []JoinedLayer  `json:"joinedLayers"`
	JoinedObjects []JoinedObject `json:"joinedObjects"`
}

// JoinedLayer describes one spatial join onto the owning layer.
type JoinedLayer struct {
	SpatialRelation string        `json:"spatial_relation"`
	LayerID         string        `json:"layerId"`
	OutLevel        grammar.Level `json:"outLevel"`
	InLevel         grammar.Level `json:"inLevel"`
	Abstract        bool          `json:"abstract"`
}

// JoinedObject holds the per-output-element result of a join.
// Physical joins carry InIDs (input element indices, possibly null),
// abstract joins carry InValues.
type JoinedObject struct {
	JoinedLayerIndex int       `json:"joinedLayerIndex"`
	InIDs            [][]int   `json:"inIds,omitempty"`
	InValues         []float64 `json:"inValues,omitempty"`
}

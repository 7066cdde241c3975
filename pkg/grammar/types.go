package grammar

import (
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Level is the granularity at which a layer exposes data.
type Level string

const (
	// LevelCoordinates is one record per vertex, using its x and y.
	LevelCoordinates Level = "COORDINATES"
	// LevelCoordinates3D is one record per vertex, using the full vertex.
	LevelCoordinates3D Level = "COORDINATES3D"
	// LevelObjects is one record per geometry element.
	LevelObjects Level = "OBJECTS"
)

// Levels lists the supported levels.
var Levels = []Level{LevelCoordinates, LevelCoordinates3D, LevelObjects}

// Valid reports whether l is a supported level.
func (l Level) Valid() bool { return slices.Contains(Levels, l) }

// LevelPtr returns a pointer to l.
func LevelPtr(l Level) *Level { return &l }

// SameLevel reports whether two optional levels are equal. Two absent
// levels are equal.
func SameLevel(a, b *Level) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// LayerRef names a layer and optionally the level data is read at.
// A reference without a level denotes a pure output.
type LayerRef struct {
	Name  string `json:"name" yaml:"name" toml:"name" validate:"required"`
	Level *Level `json:"level,omitempty" yaml:"level,omitempty" toml:"level,omitempty"`
}

// Link is one step of an integration scheme: data flows from In to Out.
// Op aggregates several input values that land on one output element, or
// for operation knots, combines the referenced knots' values.
type Link struct {
	In  *LayerRef `json:"in,omitempty" yaml:"in,omitempty" toml:"in,omitempty"`
	Out LayerRef  `json:"out" yaml:"out" toml:"out" validate:"required"`
	Op  string    `json:"op,omitempty" yaml:"op,omitempty" toml:"op,omitempty"`
}

// Joins reports whether the link moves data between two different layers.
func (l Link) Joins() bool {
	return l.In != nil && l.In.Name != l.Out.Name
}

// Group places a knot in a named, ordered group.
type Group struct {
	Name     string `json:"group_name" yaml:"group_name" toml:"group_name" validate:"required"`
	Position int    `json:"position" yaml:"position" toml:"position"`
}

// Knot binds data to a physical layer.
type Knot struct {
	ID                string `json:"id" yaml:"id" toml:"id" validate:"required"`
	IntegrationScheme []Link `json:"integration_scheme" yaml:"integration_scheme" toml:"integration_scheme" validate:"required,min=1,dive"`
	KnotOp            bool   `json:"knot_op,omitempty" yaml:"knot_op,omitempty" toml:"knot_op,omitempty"`
	Group             *Group `json:"group,omitempty" yaml:"group,omitempty" toml:"group,omitempty"`
	ColorMap          string `json:"color_map,omitempty" yaml:"color_map,omitempty" toml:"color_map,omitempty"`
	Visible           *bool  `json:"visible,omitempty" yaml:"visible,omitempty" toml:"visible,omitempty"`
}

// LastLink returns the final link of the integration scheme.
func (k *Knot) LastLink() Link {
	if len(k.IntegrationScheme) == 0 {
		return Link{}
	}
	return k.IntegrationScheme[len(k.IntegrationScheme)-1]
}

// Plot is a linked 2D view over a set of knots. Spec is passed through to
// the plotting front end untouched.
type Plot struct {
	Name        string         `json:"name" yaml:"name" toml:"name"`
	Knots       []string       `json:"knots" yaml:"knots" toml:"knots" validate:"required,min=1"`
	Arrangement string         `json:"arrangement,omitempty" yaml:"arrangement,omitempty" toml:"arrangement,omitempty"`
	Spec        map[string]any `json:"plot,omitempty" yaml:"plot,omitempty" toml:"plot,omitempty"`
}

// VisibilityRule is a boolean expression deciding whether Knot is drawn.
type VisibilityRule struct {
	Knot string `json:"knot" yaml:"knot" toml:"knot" validate:"required"`
	Test string `json:"test" yaml:"test" toml:"test" validate:"required"`
}

// MapSpec describes the 3D map of a view.
type MapSpec struct {
	Camera         CameraSpec       `json:"camera" yaml:"camera" toml:"camera"`
	Knots          []string         `json:"knots" yaml:"knots" toml:"knots"`
	Filter         []float64        `json:"filter_knots,omitempty" yaml:"filter_knots,omitempty" toml:"filter_knots,omitempty" validate:"omitempty,len=4"`
	KnotVisibility []VisibilityRule `json:"knot_visibility,omitempty" yaml:"knot_visibility,omitempty" toml:"knot_visibility,omitempty" validate:"dive"`
}

// View is one map plus its linked plots.
type View struct {
	Map   MapSpec `json:"map" yaml:"map" toml:"map"`
	Plots []Plot  `json:"plots,omitempty" yaml:"plots,omitempty" toml:"plots,omitempty" validate:"dive"`
}

// Grammar is a complete scene description.
type Grammar struct {
	Views     []View         `json:"views" yaml:"views" toml:"views" validate:"required,min=1,dive"`
	Knots     []Knot         `json:"knots" yaml:"knots" toml:"knots" validate:"required,min=1,dive"`
	Variables map[string]any `json:"variables,omitempty" yaml:"variables,omitempty" toml:"variables,omitempty"`
}

// KnotByID returns the knot with the given id.
func (g *Grammar) KnotByID(id string) (*Knot, bool) {
	for i := range g.Knots {
		if g.Knots[i].ID == id {
			return &g.Knots[i], true
		}
	}
	return nil, false
}

// Direction is the camera orientation triple.
type Direction struct {
	Right  []float64 `json:"right" yaml:"right" toml:"right"`
	LookAt []float64 `json:"lookAt" yaml:"lookAt" toml:"lookAt"`
	Up     []float64 `json:"up" yaml:"up" toml:"up"`
}

// CameraParams are inline camera parameters. Position is [x, y, zoom].
type CameraParams struct {
	Position  []float64 `json:"position" yaml:"position" toml:"position" validate:"len=3"`
	Direction Direction `json:"direction" yaml:"direction" toml:"direction"`
}

// CameraSpec is either inline parameters or a reference resolved through
// the data client. In grammar files a string is a reference and an object
// is inline parameters.
type CameraSpec struct {
	Ref    string
	Params *CameraParams
}

// IsZero reports whether neither form is set.
func (c CameraSpec) IsZero() bool { return c.Ref == "" && c.Params == nil }

// MarshalJSON writes the reference as a string or the parameters as an object.
func (c CameraSpec) MarshalJSON() ([]byte, error) {
	if c.Params != nil {
		return json.Marshal(c.Params)
	}
	return json.Marshal(c.Ref)
}

// UnmarshalJSON accepts a string reference or a parameter object.
func (c *CameraSpec) UnmarshalJSON(data []byte) error {
	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		*c = CameraSpec{Ref: ref}
		return nil
	}
	var p CameraParams
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("camera: expected reference string or parameter object: %w", err)
	}
	*c = CameraSpec{Params: &p}
	return nil
}

// UnmarshalYAML accepts a scalar reference or a parameter mapping.
func (c *CameraSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*c = CameraSpec{Ref: value.Value}
		return nil
	}
	var p CameraParams
	if err := value.Decode(&p); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	*c = CameraSpec{Params: &p}
	return nil
}

// UnmarshalTOML accepts a string reference or a parameter table.
func (c *CameraSpec) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case string:
		*c = CameraSpec{Ref: x}
		return nil
	case map[string]any:
		// round-trip through JSON so the parameter tags apply
		raw, err := json.Marshal(x)
		if err != nil {
			return err
		}
		var p CameraParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("camera: %w", err)
		}
		*c = CameraSpec{Params: &p}
		return nil
	default:
		return fmt.Errorf("camera: unsupported TOML value %T", v)
	}
}

// Element is one record of a plot binding.
type Element struct {
	Coordinates []float64 `json:"coordinates"`
	Abstract    float64   `json:"abstract"`
	Highlighted bool      `json:"highlighted"`
	Index       int       `json:"index"`
}

// KnotData is the plot binding of one knot: the records a plot draws.
type KnotData struct {
	KnotID   string    `json:"knotId"`
	Elements []Element `json:"elements"`
}

// HighlightedCount returns how many elements are highlighted.
func (d KnotData) HighlightedCount() int {
	n := 0
	for _, e := range d.Elements {
		if e.Highlighted {
			n++
		}
	}
	return n
}

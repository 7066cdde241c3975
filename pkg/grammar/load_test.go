package grammar

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/knotview/pkg/errors"
)

func TestLoadFormats(t *testing.T) {
	for _, name := range []string{"city.json", "city.yaml", "city.toml"} {
		t.Run(name, func(t *testing.T) {
			g, err := Load(filepath.Join("testdata", name))
			require.NoError(t, err)

			require.Len(t, g.Knots, 2)
			shadow := g.Knots[0]
			assert.Equal(t, "shadow", shadow.ID)
			require.Len(t, shadow.IntegrationScheme, 1)
			link := shadow.IntegrationScheme[0]
			require.NotNil(t, link.In)
			assert.Equal(t, "shadow", link.In.Name)
			assert.Equal(t, "buildings", link.Out.Name)
			require.NotNil(t, link.Out.Level)
			assert.Equal(t, LevelCoordinates3D, *link.Out.Level)
			assert.Equal(t, "avg", link.Op)
			assert.True(t, link.Joins())
			require.NotNil(t, shadow.Group)
			assert.Equal(t, "buildings", shadow.Group.Name)
			assert.Equal(t, 1, shadow.Group.Position)

			require.Len(t, g.Views, 1)
			assert.Equal(t, "nyc", g.Views[0].Map.Camera.Ref)
			assert.Nil(t, g.Views[0].Map.Camera.Params)
			assert.Equal(t, []string{"shadow", "water"}, g.Views[0].Map.Knots)
			require.Len(t, g.Views[0].Map.KnotVisibility, 1)
			require.Len(t, g.Views[0].Plots, 1)
			assert.Equal(t, []string{"shadow"}, g.Views[0].Plots[0].Knots)
			assert.Contains(t, g.Variables, "hour")
		})
	}
}

func TestLoadInlineCamera(t *testing.T) {
	g, err := Load(filepath.Join("testdata", "inline_camera.yaml"))
	require.NoError(t, err)

	cam := g.Views[0].Map.Camera
	require.NotNil(t, cam.Params)
	assert.Empty(t, cam.Ref)
	assert.Equal(t, []float64{10, 20, 1}, cam.Params.Position)
	assert.Equal(t, []float64{0, 1, 0}, cam.Params.Direction.Up)
	assert.Equal(t, []float64{0, 0, 100, 100}, g.Views[0].Map.Filter)
}

func TestCameraSpecJSON(t *testing.T) {
	var ref CameraSpec
	require.NoError(t, ref.UnmarshalJSON([]byte(`"nyc"`)))
	assert.Equal(t, "nyc", ref.Ref)

	var inline CameraSpec
	require.NoError(t, inline.UnmarshalJSON([]byte(`{"position":[1,2,3],"direction":{"up":[0,1,0],"lookAt":[0,0,0],"right":[0,0,0]}}`)))
	require.NotNil(t, inline.Params)
	assert.Equal(t, []float64{1, 2, 3}, inline.Params.Position)

	out, err := inline.MarshalJSON()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), `{"position":[1,2,3]`))

	var bad CameraSpec
	assert.Error(t, bad.UnmarshalJSON([]byte(`42`)))
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"a.json", FormatJSON, false},
		{"a.YAML", FormatYAML, false},
		{"a.yml", FormatYAML, false},
		{"a.toml", FormatTOML, false},
		{"a.xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if tt.wantErr {
				assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		problem string
	}{
		{
			name:    "malformed",
			doc:     `{"knots": [`,
			problem: "decode",
		},
		{
			name:    "duplicate knot",
			doc:     `{"knots":[{"id":"a","integration_scheme":[{"out":{"name":"l"}}]},{"id":"a","integration_scheme":[{"out":{"name":"l"}}]}],"views":[{"map":{"camera":"c","knots":["a"]}}]}`,
			problem: "declared twice",
		},
		{
			name:    "unknown map knot",
			doc:     `{"knots":[{"id":"a","integration_scheme":[{"out":{"name":"l"}}]}],"views":[{"map":{"camera":"c","knots":["b"]}}]}`,
			problem: "unknown knot \"b\"",
		},
		{
			name:    "unknown plot knot",
			doc:     `{"knots":[{"id":"a","integration_scheme":[{"out":{"name":"l"}}]}],"views":[{"map":{"camera":"c","knots":["a"]},"plots":[{"name":"p","knots":["z"]}]}]}`,
			problem: "plot \"p\"",
		},
		{
			name:    "empty scheme",
			doc:     `{"knots":[{"id":"a","integration_scheme":[]}],"views":[{"map":{"camera":"c","knots":[]}}]}`,
			problem: "IntegrationScheme",
		},
		{
			name:    "bad level",
			doc:     `{"knots":[{"id":"a","integration_scheme":[{"out":{"name":"l","level":"PIXELS"}}]}],"views":[{"map":{"camera":"c","knots":["a"]}}]}`,
			problem: "unknown out level",
		},
		{
			name:    "join without input level",
			doc:     `{"knots":[{"id":"a","integration_scheme":[{"in":{"name":"x"},"out":{"name":"l","level":"OBJECTS"}}]}],"views":[{"map":{"camera":"c","knots":["a"]}}]}`,
			problem: "needs an input level",
		},
		{
			name:    "bad aggregation",
			doc:     `{"knots":[{"id":"a","integration_scheme":[{"in":{"name":"x","level":"OBJECTS"},"out":{"name":"l","level":"OBJECTS"},"op":"median"}]}],"views":[{"map":{"camera":"c","knots":["a"]}}]}`,
			problem: "unknown aggregation",
		},
		{
			name:    "missing camera",
			doc:     `{"knots":[{"id":"a","integration_scheme":[{"out":{"name":"l"}}]}],"views":[{"map":{"knots":["a"]}}]}`,
			problem: "camera is required",
		},
		{
			name:    "visibility does not compile",
			doc:     `{"knots":[{"id":"a","integration_scheme":[{"out":{"name":"l"}}]}],"views":[{"map":{"camera":"c","knots":["a"],"knot_visibility":[{"knot":"a","test":"hour >"}]}}]}`,
			problem: "visibility rule",
		},
		{
			name:    "operation references later knot",
			doc:     `{"knots":[{"id":"op","knot_op":true,"integration_scheme":[{"in":{"name":"a"},"out":{"name":"b"},"op":"a+b"}]},{"id":"a","integration_scheme":[{"out":{"name":"l"}}]},{"id":"b","integration_scheme":[{"out":{"name":"l"}}]}],"views":[{"map":{"camera":"c","knots":["op"]}}]}`,
			problem: "must be declared before",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidGrammar), "code = %s", errors.GetCode(err))
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestAggregate(t *testing.T) {
	values := []float64{4, 1, 7}
	tests := []struct {
		op   string
		want float64
	}{
		{"", 4},
		{AggregateAvg, 4},
		{AggregateSum, 12},
		{AggregateMax, 7},
		{AggregateMin, 1},
		{AggregateCount, 3},
		{AggregateDiscard, 4},
	}
	for _, tt := range tests {
		t.Run("op="+tt.op, func(t *testing.T) {
			assert.InDelta(t, tt.want, Aggregate(tt.op, values), 1e-9)
		})
	}
	assert.Zero(t, Aggregate(AggregateMax, nil))
}

package dataapi

import (
	"bytes"
	"context"
	"encoding/binary"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/knotview/pkg/cache"
	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/layer"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func encode(t *testing.T, values any) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, values); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFileLoaderInline(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "water.json", []byte(`{
		"id": "water", "type": "TRIANGLES_3D_LAYER", "renderStyle": ["SMOOTH_COLOR"],
		"data": [{"geometry": {"coordinates": [0,0,0, 1,0,0, 0,1,0], "indices": [0,1,2]}, "values": [1,2,3]}]
	}`))
	writeFile(t, dir, "water_joined.json", []byte(`{
		"joinedLayers": [{"spatial_relation": "NEAREST", "layerId": "parks", "outLevel": "OBJECTS", "inLevel": "OBJECTS", "abstract": true}],
		"joinedObjects": [{"joinedLayerIndex": 0, "inValues": [0.5]}]
	}`))
	writeFile(t, dir, "nyc.json", []byte(`{"position": [1, 2, 3], "direction": {"up": [0,1,0], "lookAt": [0,0,-1], "right": [1,0,0]}}`))

	l := NewFileLoader(dir)
	ctx := context.Background()

	data, err := l.GetLayer(ctx, "water")
	if err != nil {
		t.Fatalf("GetLayer: %v", err)
	}
	if data.ID != "water" || len(data.Data) != 1 || !reflect.DeepEqual(data.Data[0].Geometry.Indices, []uint32{0, 1, 2}) {
		t.Errorf("layer = %+v", data)
	}

	joined, err := l.GetJoinedJSON(ctx, "water")
	if err != nil {
		t.Fatalf("GetJoinedJSON: %v", err)
	}
	if len(joined.JoinedLayers) != 1 || joined.JoinedLayers[0].InLevel != grammar.LevelObjects || !joined.JoinedLayers[0].Abstract {
		t.Errorf("joined = %+v", joined)
	}

	cam, err := l.GetCameraParameters(ctx, "nyc")
	if err != nil {
		t.Fatalf("GetCameraParameters: %v", err)
	}
	if !reflect.DeepEqual(cam.Position, []float64{1, 2, 3}) {
		t.Errorf("camera = %+v", cam)
	}
}

func TestFileLoaderSideFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "roofs.json", []byte(`{
		"id": "roofs", "type": "TRIANGLES_3D_LAYER",
		"data": [
			{"geometry": {"coordinates": [0, 3], "indices": [0, 1], "normals": [0, 3]}},
			{"geometry": {"coordinates": [3, 6], "indices": [1, 3], "normals": [3, 3]}}
		]
	}`))
	writeFile(t, dir, "roofs_coordinates.data", encode(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}))
	writeFile(t, dir, "roofs_indices.data", encode(t, []uint32{0, 0, 1, 2}))
	writeFile(t, dir, "roofs_normals.data", encode(t, []float32{0, 0, 1, 0, 1, 0}))

	data, err := NewFileLoader(dir).GetLayer(context.Background(), "roofs")
	if err != nil {
		t.Fatalf("GetLayer: %v", err)
	}
	g0, g1 := data.Data[0].Geometry, data.Data[1].Geometry
	if !reflect.DeepEqual(g0.Coordinates, []float64{1, 2, 3}) || !reflect.DeepEqual(g1.Coordinates, []float64{4, 5, 6, 7, 8, 9}) {
		t.Errorf("coordinates = %v %v", g0.Coordinates, g1.Coordinates)
	}
	if !reflect.DeepEqual(g0.Indices, []uint32{0}) || !reflect.DeepEqual(g1.Indices, []uint32{0, 1, 2}) {
		t.Errorf("indices = %v %v", g0.Indices, g1.Indices)
	}
	if !reflect.DeepEqual(g1.Normals, []float32{0, 1, 0}) {
		t.Errorf("normals = %v", g1.Normals)
	}
}

func TestFileLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.json", []byte(`{"data": [`))
	writeFile(t, dir, "short.json", []byte(`{"data": [{"geometry": {"coordinates": [0, 10]}}]}`))
	writeFile(t, dir, "short_coordinates.data", encode(t, []float64{1, 2, 3}))
	l := NewFileLoader(dir)
	ctx := context.Background()

	_, err := l.GetLayer(ctx, "missing")
	if !errors.Is(err, errors.ErrCodeFileNotFound) || !stderrors.Is(err, ErrNotFound) {
		t.Errorf("missing: err = %v", err)
	}
	if _, err := l.GetLayer(ctx, "broken"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("broken: err = %v", err)
	}
	if _, err := l.GetLayer(ctx, "short"); !errors.Is(err, errors.ErrCodeDataIntegrity) {
		t.Errorf("short side file: err = %v", err)
	}
	if _, err := l.GetLayer(ctx, "../secret"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("traversal: err = %v", err)
	}
}

func TestHTTPLoader(t *testing.T) {
	var failures atomic.Int32
	failures.Store(1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/getLayer" && r.URL.Query().Get("layer") == "water":
			if failures.Add(-1) >= 0 {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"id": "water", "data": [{"geometry": {"coordinates": [1, 2, 3]}}]}`))
		case r.URL.Path == "/getJoinedJson":
			_, _ = w.Write([]byte(`{"joinedLayers": [], "joinedObjects": []}`))
		case r.URL.Path == "/getCamera" && r.URL.Query().Get("camera") == "nyc":
			_, _ = w.Write([]byte(`{"position": [1, 2, 3]}`))
		case r.URL.Path == "/getLayer" && r.URL.Query().Get("layer") == "forbidden":
			http.Error(w, "no", http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l, err := NewHTTPLoader(srv.URL+"/", WithBackoff(cache.Backoff{Attempts: 3, Delay: time.Millisecond}))
	if err != nil {
		t.Fatalf("NewHTTPLoader: %v", err)
	}
	ctx := context.Background()

	data, err := l.GetLayer(ctx, "water")
	if err != nil {
		t.Fatalf("GetLayer after retry: %v", err)
	}
	if !reflect.DeepEqual(data.Data[0].Geometry.Coordinates, []float64{1, 2, 3}) {
		t.Errorf("layer = %+v", data)
	}
	if _, err := l.GetJoinedJSON(ctx, "water"); err != nil {
		t.Errorf("GetJoinedJSON: %v", err)
	}
	if cam, err := l.GetCameraParameters(ctx, "nyc"); err != nil || len(cam.Position) != 3 {
		t.Errorf("GetCameraParameters = %v, %v", cam, err)
	}

	_, err = l.GetLayer(ctx, "nope")
	if !errors.Is(err, errors.ErrCodeResourceNotFound) || !stderrors.Is(err, ErrNotFound) {
		t.Errorf("404: err = %v", err)
	}
	if _, err := l.GetLayer(ctx, "forbidden"); !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("403: err = %v", err)
	}

	if _, err := NewHTTPLoader("ftp://example.com"); err == nil {
		t.Error("expected error for non-http URL")
	}
}

type countingLoader struct {
	layers atomic.Int32
}

func (c *countingLoader) GetLayer(_ context.Context, id string) (*layer.Data, error) {
	c.layers.Add(1)
	return &layer.Data{ID: id, Data: []layer.Feature{{Geometry: layer.Geometry{Coordinates: []float64{1, 2, 3}}}}}, nil
}

func (c *countingLoader) GetJoinedJSON(context.Context, string) (*layer.Joined, error) {
	return nil, errors.Wrap(errors.ErrCodeFileNotFound, ErrNotFound, "no join")
}

func (c *countingLoader) GetCameraParameters(context.Context, string) (*grammar.CameraParams, error) {
	return &grammar.CameraParams{Position: []float64{0, 0, 1}}, nil
}

func TestCachedLoader(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	next := &countingLoader{}
	l := NewCachedLoader(next, fc, "test")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		data, err := l.GetLayer(ctx, "water")
		if err != nil {
			t.Fatalf("GetLayer: %v", err)
		}
		if data.ID != "water" {
			t.Fatalf("layer id = %q", data.ID)
		}
	}
	if n := next.layers.Load(); n != 1 {
		t.Errorf("upstream fetches = %d, want 1", n)
	}

	refresh := NewCachedLoader(next, fc, "test", WithRefresh(true))
	if _, err := refresh.GetLayer(ctx, "water"); err != nil {
		t.Fatal(err)
	}
	if n := next.layers.Load(); n != 2 {
		t.Errorf("refresh did not bypass cache: fetches = %d", n)
	}

	// errors pass through and are not cached
	if _, err := l.GetJoinedJSON(ctx, "water"); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("GetJoinedJSON err = %v", err)
	}
}

package dataapi

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/layer"
)

// FileLoader reads payloads from a data directory:
//
//	<dir>/<id>.json               layer file
//	<dir>/<id>_<field>.data       binary side file of a geometry field
//	<dir>/<id>_joined.json        joined dataset
//	<dir>/<ref>.json              camera parameters
//
// When a side file exists for a geometry field, the field in the layer file
// holds [start, size] into it instead of values. Side files are
// little-endian: float64 coordinates, float32 normals, uint32 indices and
// ids.
type FileLoader struct {
	dir string
}

// NewFileLoader creates a loader reading from dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{dir: dir}
}

// Dir returns the data directory.
func (l *FileLoader) Dir() string { return l.dir }

// GetLayer implements Loader.
func (l *FileLoader) GetLayer(ctx context.Context, id string) (*layer.Data, error) {
	if err := errors.ValidateIdentifier("layer", id); err != nil {
		return nil, err
	}
	var data layer.Data
	if err := l.readJSON(ctx, id+".json", &data); err != nil {
		return nil, err
	}
	if data.ID == "" {
		data.ID = id
	}
	if err := l.resolveSideFiles(id, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetJoinedJSON implements Loader.
func (l *FileLoader) GetJoinedJSON(ctx context.Context, layerID string) (*layer.Joined, error) {
	if err := errors.ValidateIdentifier("layer", layerID); err != nil {
		return nil, err
	}
	var joined layer.Joined
	if err := l.readJSON(ctx, layerID+"_joined.json", &joined); err != nil {
		return nil, err
	}
	return &joined, nil
}

// GetCameraParameters implements Loader.
func (l *FileLoader) GetCameraParameters(ctx context.Context, ref string) (*grammar.CameraParams, error) {
	if err := errors.ValidateIdentifier("camera", ref); err != nil {
		return nil, err
	}
	var params grammar.CameraParams
	if err := l.readJSON(ctx, ref+".json", &params); err != nil {
		return nil, err
	}
	return &params, nil
}

func (l *FileLoader) readJSON(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(l.dir, name)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeFileNotFound, ErrNotFound, "%s", path)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "read %s", path)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode %s", path)
	}
	return nil
}

// =============================================================================
// Binary side files
// =============================================================================

func (l *FileLoader) resolveSideFiles(id string, data *layer.Data) error {
	coords, err := readSide[float64](l.dir, id, "coordinates", func(b []byte) float64 {
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	})
	if err != nil {
		return err
	}
	normals, err := readSide[float32](l.dir, id, "normals", func(b []byte) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	})
	if err != nil {
		return err
	}
	indices, err := readSide[uint32](l.dir, id, "indices", binary.LittleEndian.Uint32)
	if err != nil {
		return err
	}
	ids, err := readSide[uint32](l.dir, id, "ids", binary.LittleEndian.Uint32)
	if err != nil {
		return err
	}

	for i := range data.Data {
		g := &data.Data[i].Geometry
		if coords != nil {
			if g.Coordinates, err = slice(coords, g.Coordinates, id, "coordinates", i); err != nil {
				return err
			}
		}
		if normals != nil {
			if g.Normals, err = slice(normals, g.Normals, id, "normals", i); err != nil {
				return err
			}
		}
		if indices != nil {
			if g.Indices, err = slice(indices, g.Indices, id, "indices", i); err != nil {
				return err
			}
		}
		if ids != nil {
			if g.IDs, err = slice(ids, g.IDs, id, "ids", i); err != nil {
				return err
			}
		}
	}
	return nil
}

// readSide decodes <dir>/<id>_<field>.data. It returns nil when the file
// does not exist.
func readSide[T float64 | float32 | uint32](dir, id, field string, decode func([]byte) T) ([]T, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.data", id, field))
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read %s", path)
	}
	var zero T
	size := binary.Size(zero)
	if len(raw)%size != 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "%s: %d bytes is not a multiple of %d", path, len(raw), size)
	}
	out := make([]T, 0, len(raw)/size)
	r := bytes.NewReader(raw)
	buf := make([]byte, size)
	for r.Len() > 0 {
		_, _ = r.Read(buf)
		out = append(out, decode(buf))
	}
	return out, nil
}

// slice resolves a [start, size] reference into values.
func slice[T, R float64 | float32 | uint32](values []T, ref []R, id, field string, element int) ([]T, error) {
	if len(ref) != 2 {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"layer %q element %d: %s must be [start, size] when a side file exists", id, element, field)
	}
	start, size := int(ref[0]), int(ref[1])
	if start < 0 || size < 0 || start+size > len(values) {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"layer %q element %d: %s range [%d, %d) outside side file of %d values", id, element, field, start, start+size, len(values))
	}
	out := make([]T, size)
	copy(out, values[start:start+size])
	return out, nil
}

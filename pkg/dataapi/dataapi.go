// Package dataapi loads the payloads a scene needs: layer files, joined
// datasets and camera parameters.
//
// Three [Loader] implementations are provided:
//   - [FileLoader] reads a data directory, resolving binary side files
//   - [HTTPLoader] talks to a data server with retry and backoff
//   - [CachedLoader] wraps another loader with a [cache.Cache]
package dataapi

import (
	"context"
	stderrors "errors"

	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/layer"
)

// ErrNotFound is wrapped by every loader error for a missing payload.
var ErrNotFound = stderrors.New("payload not found")

// Loader fetches scene payloads.
type Loader interface {
	// GetLayer returns the layer file of id.
	GetLayer(ctx context.Context, id string) (*layer.Data, error)
	// GetJoinedJSON returns the joined dataset of a layer.
	GetJoinedJSON(ctx context.Context, layerID string) (*layer.Joined, error)
	// GetCameraParameters resolves a camera reference.
	GetCameraParameters(ctx context.Context, ref string) (*grammar.CameraParams, error)
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// Keyer derives cache keys for the payloads the data client fetches.
type Keyer interface {
	// LayerKey is the key of a layer payload.
	LayerKey(source, layerID string) string
	// JoinedKey is the key of a layer's joined dataset.
	JoinedKey(source, layerID string) string
	// CameraKey is the key of a camera parameter document.
	CameraKey(source, ref string) string
}

// DefaultKeyer produces keys of the form kind:digest(source):id, with the id
// path-escaped so keys stay readable in redis-cli.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// LayerKey implements Keyer.
func (DefaultKeyer) LayerKey(source, layerID string) string {
	return payloadKey("layer", source, layerID)
}

// JoinedKey implements Keyer.
func (DefaultKeyer) JoinedKey(source, layerID string) string {
	return payloadKey("joined", source, layerID)
}

// CameraKey implements Keyer.
func (DefaultKeyer) CameraKey(source, ref string) string {
	return payloadKey("camera", source, ref)
}

func payloadKey(kind, source, id string) string {
	return kind + ":" + digest(source)[:16] + ":" + url.PathEscape(id)
}

// digest is the hex SHA-256 of s.
func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

package cache

// ScopedKeyer wraps a Keyer with a prefix so that several scenes sharing one
// Redis instance do not read each other's payloads.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "tenant:nyc:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// LayerKey generates a prefixed layer key.
func (k *ScopedKeyer) LayerKey(source, layerID string) string {
	return k.prefix + k.inner.LayerKey(source, layerID)
}

// JoinedKey generates a prefixed joined-dataset key.
func (k *ScopedKeyer) JoinedKey(source, layerID string) string {
	return k.prefix + k.inner.JoinedKey(source, layerID)
}

// CameraKey generates a prefixed camera key.
func (k *ScopedKeyer) CameraKey(source, ref string) string {
	return k.prefix + k.inner.CameraKey(source, ref)
}

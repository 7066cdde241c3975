package dataapi

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knotview/pkg/cache"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/layer"
	"github.com/matzehuels/knotview/pkg/observability"
)

// Key types reported to cache hooks.
const (
	keyTypeLayer  = "layer"
	keyTypeJoined = "joined"
	keyTypeCamera = "camera"
)

// CachedLoader serves payloads from a cache, falling back to another
// loader on a miss. Cache failures never fail a load; they are logged and
// the payload is fetched.
type CachedLoader struct {
	next    Loader
	cache   cache.Cache
	keyer   cache.Keyer
	source  string
	refresh bool
	logger  *log.Logger
}

// CachedOption configures a CachedLoader.
type CachedOption func(*CachedLoader)

// WithKeyer replaces the default keyer.
func WithKeyer(k cache.Keyer) CachedOption {
	return func(c *CachedLoader) {
		if k != nil {
			c.keyer = k
		}
	}
}

// WithRefresh bypasses cache reads; fetched payloads are still written.
func WithRefresh(refresh bool) CachedOption {
	return func(c *CachedLoader) { c.refresh = refresh }
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *log.Logger) CachedOption {
	return func(c *CachedLoader) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachedLoader wraps next. source namespaces keys, typically the data
// directory or server URL.
func NewCachedLoader(next Loader, c cache.Cache, source string, opts ...CachedOption) *CachedLoader {
	l := &CachedLoader{
		next:   next,
		cache:  c,
		keyer:  cache.NewDefaultKeyer(),
		source: source,
		logger: log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetLayer implements Loader.
func (l *CachedLoader) GetLayer(ctx context.Context, id string) (*layer.Data, error) {
	return cached(ctx, l, keyTypeLayer, l.keyer.LayerKey(l.source, id), cache.TTLLayer, func() (*layer.Data, error) {
		return l.next.GetLayer(ctx, id)
	})
}

// GetJoinedJSON implements Loader.
func (l *CachedLoader) GetJoinedJSON(ctx context.Context, layerID string) (*layer.Joined, error) {
	return cached(ctx, l, keyTypeJoined, l.keyer.JoinedKey(l.source, layerID), cache.TTLJoined, func() (*layer.Joined, error) {
		return l.next.GetJoinedJSON(ctx, layerID)
	})
}

// GetCameraParameters implements Loader.
func (l *CachedLoader) GetCameraParameters(ctx context.Context, ref string) (*grammar.CameraParams, error) {
	return cached(ctx, l, keyTypeCamera, l.keyer.CameraKey(l.source, ref), cache.TTLCamera, func() (*grammar.CameraParams, error) {
		return l.next.GetCameraParameters(ctx, ref)
	})
}

func cached[T any](ctx context.Context, l *CachedLoader, keyType, key string, ttl time.Duration, fetch func() (*T, error)) (*T, error) {
	hooks := observability.Cache()
	if !l.refresh {
		raw, ok, err := l.cache.Get(ctx, key)
		if err != nil {
			l.logger.Warn("cache read failed", "key", key, "err", err)
		}
		if ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				hooks.OnCacheHit(ctx, keyType)
				return &v, nil
			}
			l.logger.Warn("discarding corrupt cache entry", "key", key)
		}
	}
	hooks.OnCacheMiss(ctx, keyType)

	v, err := fetch()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := l.cache.Set(ctx, key, raw, ttl); err != nil {
		l.logger.Warn("cache write failed", "key", key, "err", err)
	} else {
		hooks.OnCacheSet(ctx, keyType, len(raw))
	}
	return v, nil
}

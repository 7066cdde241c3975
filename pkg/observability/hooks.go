// Package observability lets the scene, the cache and the data client report
// events without depending on a metrics backend.
//
// Library packages (scene, dataapi) emit events through the registered hooks
// without depending on a metrics backend. The serve command registers the
// prometheus implementation from the prom subpackage at startup.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetSceneHooks(prom.SceneHooks{})
//	    observability.SetCacheHooks(prom.CacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	// ... fetch and build the layer ...
//	observability.Scene().OnLayerLoad(ctx, layerID, elements, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// Scene Hooks
// =============================================================================

// SceneHooks receives events from the scene controller.
type SceneHooks interface {
	// OnLayerLoad records a fetched and built layer.
	OnLayerLoad(ctx context.Context, layerID string, elements int, duration time.Duration, err error)

	// OnFrame records a completed render pass and the number of knots drawn.
	OnFrame(drawn int, duration time.Duration)

	// OnHighlight records a highlight write on a knot element.
	OnHighlight(knotID string, value bool)

	// OnVisibilityChange records a knot whose evaluated visibility flipped.
	OnVisibilityChange(knotID string, visible bool)

	// OnPlotsUpdate records a plot-binding extraction.
	OnPlotsUpdate(knots, elements int, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives payload cache lookups. keyType is layer, joined or
// camera.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives requests made by the HTTP data client.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	// OnError records a request that got no response.
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopSceneHooks discards scene events.
type NoopSceneHooks struct{}

func (NoopSceneHooks) OnLayerLoad(context.Context, string, int, time.Duration, error) {}
func (NoopSceneHooks) OnFrame(int, time.Duration)                                     {}
func (NoopSceneHooks) OnHighlight(string, bool)                                       {}
func (NoopSceneHooks) OnVisibilityChange(string, bool)                                {}
func (NoopSceneHooks) OnPlotsUpdate(int, int, time.Duration)                          {}

// NoopCacheHooks discards cache events.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks discards data-client events.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Registry
// =============================================================================

// hookSet is swapped as a whole so that the render loop reads hooks without
// taking a lock.
type hookSet struct {
	scene SceneHooks
	cache CacheHooks
	http  HTTPHooks
}

var (
	current atomic.Pointer[hookSet]
	writeMu sync.Mutex
)

func init() { Reset() }

func update(fn func(*hookSet)) {
	writeMu.Lock()
	defer writeMu.Unlock()
	next := *current.Load()
	fn(&next)
	current.Store(&next)
}

// SetSceneHooks registers scene hooks. A nil h is ignored.
func SetSceneHooks(h SceneHooks) {
	if h != nil {
		update(func(s *hookSet) { s.scene = h })
	}
}

// SetCacheHooks registers cache hooks. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		update(func(s *hookSet) { s.cache = h })
	}
}

// SetHTTPHooks registers data-client hooks. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		update(func(s *hookSet) { s.http = h })
	}
}

// Scene returns the registered scene hooks.
func Scene() SceneHooks { return current.Load().scene }

// Cache returns the registered cache hooks.
func Cache() CacheHooks { return current.Load().cache }

// HTTP returns the registered data-client hooks.
func HTTP() HTTPHooks { return current.Load().http }

// Reset restores the no-op hooks.
func Reset() {
	writeMu.Lock()
	defer writeMu.Unlock()
	current.Store(&hookSet{
		scene: NoopSceneHooks{},
		cache: NoopCacheHooks{},
		http:  NoopHTTPHooks{},
	})
}

// Package prom implements the observability hooks with prometheus metrics.
// Metrics register on the default registry when the package is imported;
// the server exposes them at /metrics.
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/matzehuels/knotview/pkg/observability"
)

// ==============================================================================
// Prometheus Metrics
// ==============================================================================

var (
	layerLoadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knotview_layer_load_total",
		Help: "Layers fetched and built, by result",
	}, []string{"result"})

	layerLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "knotview_layer_load_duration_seconds",
		Help:    "Layer fetch and build duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "knotview_frame_duration_seconds",
		Help:    "Render pass duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~400ms
	})

	framesDrawn = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "knotview_frame_knots_drawn",
		Help:    "Knots drawn per render pass",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})

	highlightTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knotview_highlight_total",
		Help: "Highlight writes by knot and value",
	}, []string{"knot", "value"})

	visibilityChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knotview_visibility_changes_total",
		Help: "Evaluated knot visibility flips",
	}, []string{"knot"})

	plotElements = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "knotview_plot_elements",
		Help: "Elements in the most recent plot-binding extraction",
	})

	plotExtractDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "knotview_plot_extract_duration_seconds",
		Help:    "Plot-binding extraction duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	cacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knotview_cache_operations_total",
		Help: "Cache operations by key type and outcome",
	}, []string{"key_type", "outcome"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "knotview_data_request_duration_seconds",
		Help:    "Data-server request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "status"})

	httpErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knotview_data_request_errors_total",
		Help: "Data-server transport errors",
	}, []string{"path"})
)

// SceneHooks records scene events.
type SceneHooks struct{}

func (SceneHooks) OnLayerLoad(_ context.Context, _ string, _ int, d time.Duration, err error) {
	layerLoadTotal.WithLabelValues(result(err)).Inc()
	layerLoadDuration.Observe(d.Seconds())
}

func (SceneHooks) OnFrame(drawn int, d time.Duration) {
	frameDuration.Observe(d.Seconds())
	framesDrawn.Observe(float64(drawn))
}

func (SceneHooks) OnHighlight(knotID string, value bool) {
	highlightTotal.WithLabelValues(knotID, strconv.FormatBool(value)).Inc()
}

func (SceneHooks) OnVisibilityChange(knotID string, _ bool) {
	visibilityChanges.WithLabelValues(knotID).Inc()
}

func (SceneHooks) OnPlotsUpdate(_, elements int, d time.Duration) {
	plotElements.Set(float64(elements))
	plotExtractDuration.Observe(d.Seconds())
}

// CacheHooks records cache outcomes.
type CacheHooks struct{}

func (CacheHooks) OnCacheHit(_ context.Context, keyType string) {
	cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (CacheHooks) OnCacheMiss(_ context.Context, keyType string) {
	cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (CacheHooks) OnCacheSet(_ context.Context, keyType string, _ int) {
	cacheOps.WithLabelValues(keyType, "set").Inc()
}

// HTTPHooks records data-server requests.
type HTTPHooks struct{}

func (HTTPHooks) OnRequest(context.Context, string, string, string) {}

func (HTTPHooks) OnResponse(_ context.Context, _, _, path string, status int, d time.Duration) {
	httpDuration.WithLabelValues(path, strconv.Itoa(status)).Observe(d.Seconds())
}

func (HTTPHooks) OnError(_ context.Context, _, _, path string, _ error) {
	httpErrors.WithLabelValues(path).Inc()
}

// Register installs all prometheus hooks in the observability registry.
func Register() {
	observability.SetSceneHooks(SceneHooks{})
	observability.SetCacheHooks(CacheHooks{})
	observability.SetHTTPHooks(HTTPHooks{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

var (
	_ observability.SceneHooks = SceneHooks{}
	_ observability.CacheHooks = CacheHooks{}
	_ observability.HTTPHooks  = HTTPHooks{}
)

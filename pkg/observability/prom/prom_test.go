package prom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/matzehuels/knotview/pkg/observability"
)

func TestSceneHooksCount(t *testing.T) {
	h := SceneHooks{}
	before := testutil.ToFloat64(layerLoadTotal.WithLabelValues("error"))
	h.OnLayerLoad(context.Background(), "water", 0, time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(layerLoadTotal.WithLabelValues("error")); got != before+1 {
		t.Errorf("layer load errors = %v, want %v", got, before+1)
	}

	h.OnHighlight("shadow", true)
	if got := testutil.ToFloat64(highlightTotal.WithLabelValues("shadow", "true")); got < 1 {
		t.Errorf("highlight counter = %v, want >= 1", got)
	}

	h.OnPlotsUpdate(1, 42, time.Millisecond)
	if got := testutil.ToFloat64(plotElements); got != 42 {
		t.Errorf("plot elements gauge = %v, want 42", got)
	}
}

func TestCacheHooksCount(t *testing.T) {
	h := CacheHooks{}
	ctx := context.Background()
	h.OnCacheHit(ctx, "layer")
	h.OnCacheMiss(ctx, "layer")
	h.OnCacheSet(ctx, "layer", 10)
	for _, outcome := range []string{"hit", "miss", "set"} {
		if got := testutil.ToFloat64(cacheOps.WithLabelValues("layer", outcome)); got < 1 {
			t.Errorf("cache %s counter = %v, want >= 1", outcome, got)
		}
	}
}

func TestRegister(t *testing.T) {
	defer observability.Reset()
	Register()
	if _, ok := observability.Scene().(SceneHooks); !ok {
		t.Error("Register should install SceneHooks")
	}
	if _, ok := observability.Cache().(CacheHooks); !ok {
		t.Error("Register should install CacheHooks")
	}
}

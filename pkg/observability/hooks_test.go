package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	s := NoopSceneHooks{}
	s.OnLayerLoad(ctx, "water", 12, time.Second, nil)
	s.OnLayerLoad(ctx, "roads", 0, time.Second, errors.New("boom"))
	s.OnFrame(3, time.Millisecond)
	s.OnHighlight("shadow", true)
	s.OnVisibilityChange("shadow", false)
	s.OnPlotsUpdate(2, 40, time.Millisecond)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "layer")
	c.OnCacheMiss(ctx, "joined")
	c.OnCacheSet(ctx, "camera", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "localhost:5001", "/getLayer")
	h.OnResponse(ctx, "GET", "localhost:5001", "/getLayer", 200, time.Second)
	h.OnError(ctx, "GET", "localhost:5001", "/getLayer", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Scene().(NoopSceneHooks); !ok {
		t.Error("Scene() should return NoopSceneHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customScene := &testSceneHooks{}
	SetSceneHooks(customScene)
	if Scene() != customScene {
		t.Error("SetSceneHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Scene().(NoopSceneHooks); !ok {
		t.Error("Reset() should restore NoopSceneHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testSceneHooks{}
	SetSceneHooks(custom)
	SetSceneHooks(nil)

	if Scene() != custom {
		t.Error("SetSceneHooks(nil) should be ignored")
	}
}

type testSceneHooks struct{ NoopSceneHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }

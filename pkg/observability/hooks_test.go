package observability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Pipeline hooks
	p := NoopPipelineHooks{}
	p.OnSearchStart(ctx, "gitlab", 3)
	p.OnSearchComplete(ctx, "gitlab", 60, time.Second, nil)
	p.OnEnrichStart(ctx, 60)
	p.OnEnrichComplete(ctx, 60, time.Second, nil)
	p.OnEnrichSkipped(ctx, "gitlab3", errors.New("boom"))
	p.OnRetry(ctx, "stats:gitlab3", errors.New("429"), time.Second)

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "stats")
	c.OnCacheMiss(ctx, "stats")
	c.OnCacheSet(ctx, "stats", 128)

	// HTTP hooks
	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "pypi.org", "/search/")
	h.OnResponse(ctx, "GET", "pypi.org", "/search/", 200, time.Second)
	h.OnError(ctx, "GET", "pypistats.org", "/api/packages/gitlab3/recent", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customPipeline := &testPipelineHooks{}
	SetPipelineHooks(customPipeline)
	if Pipeline() != customPipeline {
		t.Error("SetPipelineHooks should set custom hooks")
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
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testPipelineHooks{}
	SetPipelineHooks(custom)
	SetPipelineHooks(nil)

	if Pipeline() != custom {
		t.Error("SetPipelineHooks(nil) should be ignored")
	}
}

func TestPartialHooksEmbedNoop(t *testing.T) {
	Reset()
	defer Reset()

	rec := &testPipelineHooks{}
	SetPipelineHooks(rec)

	Pipeline().OnEnrichStart(context.Background(), 3)
	Pipeline().OnRetry(context.Background(), "k", errors.New("x"), time.Millisecond)
	Pipeline().OnRetry(context.Background(), "k", errors.New("x"), time.Millisecond)

	if rec.retries != 2 {
		t.Errorf("retries = %d, want 2", rec.retries)
	}
}

// Test implementations
type testPipelineHooks struct {
	NoopPipelineHooks
	mu      sync.Mutex
	retries int
}

func (h *testPipelineHooks) OnRetry(context.Context, string, error, time.Duration) {
	h.mu.Lock()
	h.retries++
	h.mu.Unlock()
}

type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }

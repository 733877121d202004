package observability

import (
	"context"
	"testing"
	"time"
)

type countingPipelineHooks struct {
	NoopPipelineHooks
	fetchStarts int
	fetchDone   int
}

func (h *countingPipelineHooks) OnFetchStart(context.Context, string) { h.fetchStarts++ }
func (h *countingPipelineHooks) OnFetchComplete(context.Context, string, int, time.Duration, error) {
	h.fetchDone++
}

func TestHookRegistry(t *testing.T) {
	t.Cleanup(Reset)

	// Defaults are no-ops, safe to call without registration.
	Pipeline().OnFetchStart(context.Background(), "http://x")
	Cache().OnCacheHit(context.Background(), "map")
	HTTP().OnRequest(context.Background(), "GET", "host", "/path")

	h := &countingPipelineHooks{}
	SetPipelineHooks(h)

	Pipeline().OnFetchStart(context.Background(), "http://x")
	Pipeline().OnFetchComplete(context.Background(), "http://x", 3, time.Millisecond, nil)
	if h.fetchStarts != 1 || h.fetchDone != 1 {
		t.Errorf("hooks = %d starts, %d completes, want 1, 1", h.fetchStarts, h.fetchDone)
	}

	Reset()
	Pipeline().OnFetchStart(context.Background(), "http://x")
	if h.fetchStarts != 1 {
		t.Error("Reset() did not restore the no-op hooks")
	}
}

func TestSetNilHooksIgnored(t *testing.T) {
	t.Cleanup(Reset)

	SetPipelineHooks(nil)
	SetCacheHooks(nil)
	SetHTTPHooks(nil)

	// Registry stays usable after nil registrations.
	if Pipeline() == nil || Cache() == nil || HTTP() == nil {
		t.Fatal("registry returned nil hooks")
	}
	Pipeline().OnLayoutStart(context.Background(), 0)
}

package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnParseStart(ctx, "arch.yaml")
	p.OnParseComplete(ctx, "arch.yaml", 12, time.Second, nil)
	p.OnProject(ctx, "Data Flow", 12, 4, 1, time.Millisecond)
	p.OnLayoutStart(ctx, "dot", 12)
	p.OnLayoutComplete(ctx, "dot", time.Second, nil)
	p.OnRenderStart(ctx, []string{"svg"})
	p.OnRenderComplete(ctx, []string{"svg"}, time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "layout")
	c.OnCacheMiss(ctx, "layout")
	c.OnCacheSet(ctx, "render", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "POST", "/api/render")
	h.OnResponse(ctx, "POST", "/api/render", 200, time.Second)
	h.OnError(ctx, "POST", "/api/render", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	hooks := NewLogHooks(log.New(&bytes.Buffer{}))
	SetPipelineHooks(hooks)
	SetCacheHooks(hooks)
	SetHTTPHooks(hooks)
	if Pipeline() != hooks || Cache() != hooks || HTTP() != hooks {
		t.Error("Set*Hooks should register custom hooks")
	}

	SetPipelineHooks(nil)
	if Pipeline() != hooks {
		t.Error("SetPipelineHooks(nil) should be ignored")
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)
	h := NewLogHooks(logger)
	ctx := context.Background()

	h.OnLayoutStart(ctx, "dot", 7)
	h.OnLayoutComplete(ctx, "dot", 0, errors.New("boom"))
	h.OnCacheHit(ctx, "layout")

	out := buf.String()
	for _, want := range []string{"layout started", "nodes=7", "layout failed", "error=boom", "cache hit"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLogHooksRespectLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.InfoLevel)
	h := NewLogHooks(logger)

	h.OnRequest(context.Background(), "GET", "/healthz")
	if buf.Len() != 0 {
		t.Errorf("debug events should be hidden at info level, got %q", buf.String())
	}
}

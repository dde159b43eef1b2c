package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes every event to a logger at debug level. Failures are
// logged at warn level. It implements all three hook interfaces.
type LogHooks struct {
	logger *log.Logger
}

var (
	_ PipelineHooks = (*LogHooks)(nil)
	_ CacheHooks    = (*LogHooks)(nil)
	_ HTTPHooks     = (*LogHooks)(nil)
)

// NewLogHooks returns hooks that log to logger.
func NewLogHooks(logger *log.Logger) *LogHooks {
	return &LogHooks{logger: logger}
}

func (h *LogHooks) OnParseStart(_ context.Context, source string) {
	h.logger.Debug("parse started", "source", source)
}

func (h *LogHooks) OnParseComplete(_ context.Context, source string, resources int, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("parse failed", "source", source, "error", err)
		return
	}
	h.logger.Debug("parse complete", "source", source, "resources", resources, "took", d)
}

func (h *LogHooks) OnProject(_ context.Context, perspective string, nodes, edges, dropped int, d time.Duration) {
	h.logger.Debug("projected", "perspective", perspective, "nodes", nodes, "edges", edges, "dropped", dropped, "took", d)
}

func (h *LogHooks) OnLayoutStart(_ context.Context, engine string, nodes int) {
	h.logger.Debug("layout started", "engine", engine, "nodes", nodes)
}

func (h *LogHooks) OnLayoutComplete(_ context.Context, engine string, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("layout failed", "engine", engine, "error", err)
		return
	}
	h.logger.Debug("layout complete", "engine", engine, "took", d)
}

func (h *LogHooks) OnRenderStart(_ context.Context, formats []string) {
	h.logger.Debug("render started", "formats", formats)
}

func (h *LogHooks) OnRenderComplete(_ context.Context, formats []string, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("render failed", "formats", formats, "error", err)
		return
	}
	h.logger.Debug("render complete", "formats", formats, "took", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, route string) {
	h.logger.Debug("request", "method", method, "route", route)
}

func (h *LogHooks) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	h.logger.Debug("response", "method", method, "route", route, "status", status, "took", d)
}

func (h *LogHooks) OnError(_ context.Context, method, route string, err error) {
	h.logger.Warn("request failed", "method", method, "route", route, "error", err)
}

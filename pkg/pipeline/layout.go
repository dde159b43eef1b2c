package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/archdiagram/pkg/cache"
	"github.com/matzehuels/archdiagram/pkg/graph"
	"github.com/matzehuels/archdiagram/pkg/layout"
	"github.com/matzehuels/archdiagram/pkg/observability"
)

// LayoutWithCacheInfo positions g, consulting the cache first. The boolean
// reports a cache hit.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, g graph.Graph, opts Options) (graph.Graph, bool, error) {
	key := r.layoutKey(g, opts)

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if cached, err := graph.UnmarshalGraph(data); err == nil {
				observability.Cache().OnCacheHit(ctx, cache.KeyTypeLayout)
				return cached, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, cache.KeyTypeLayout)
	}

	hooks := observability.Pipeline()
	engine := opts.EffectiveLayout()[layout.KeyAlgorithm]
	hooks.OnLayoutStart(ctx, engine, graph.NodeCount(g))
	start := time.Now()

	positioned, err := r.Engine.Layout(ctx, g, opts.Layout)
	hooks.OnLayoutComplete(ctx, engine, time.Since(start), err)
	if err != nil {
		return graph.Graph{}, false, err
	}

	if data, err := graph.MarshalGraph(positioned); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.TTLLayout); err == nil {
			observability.Cache().OnCacheSet(ctx, cache.KeyTypeLayout, len(data))
		} else {
			r.Logger.Debug("layout cache write failed", "error", err)
		}
	}
	return positioned, false, nil
}

// Layout is LayoutWithCacheInfo without the cache hit flag.
func (r *Runner) Layout(ctx context.Context, g graph.Graph, opts Options) (graph.Graph, error) {
	positioned, _, err := r.LayoutWithCacheInfo(ctx, g, opts)
	return positioned, err
}

func (r *Runner) layoutKey(g graph.Graph, opts Options) string {
	data, _ := graph.MarshalGraph(g)
	return r.Keyer.LayoutKey(cache.Hash(data), opts.LayoutKeyOpts())
}

// cachedEngine adapts a Runner to layout.Engine so trackers get caching
// and hooks for free.
type cachedEngine struct {
	r    *Runner
	opts Options
}

func (e cachedEngine) Layout(ctx context.Context, g graph.Graph, lo layout.Options) (graph.Graph, error) {
	opts := e.opts
	opts.Layout = lo
	return e.r.Layout(ctx, g, opts)
}

// CachedEngine returns a layout.Engine that lays out through the runner's
// cache. base supplies Refresh and logging settings.
func (r *Runner) CachedEngine(base Options) layout.Engine {
	return cachedEngine{r: r, opts: base}
}

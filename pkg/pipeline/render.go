package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/archdiagram/pkg/cache"
	"github.com/matzehuels/archdiagram/pkg/errors"
	"github.com/matzehuels/archdiagram/pkg/graph"
	"github.com/matzehuels/archdiagram/pkg/layout"
	"github.com/matzehuels/archdiagram/pkg/observability"
	"github.com/matzehuels/archdiagram/pkg/render"
)

// Render generates output artifacts from a positioned graph in the
// requested formats.
func Render(g graph.Graph, opts Options) (map[string][]byte, error) {
	style, err := render.StyleByName(opts.Style)
	if err != nil {
		return nil, err
	}
	svgOpts := []render.SVGOption{render.WithStyle(style)}
	if opts.Background {
		svgOpts = append(svgOpts, render.WithBackground())
	}
	if len(opts.States) > 0 {
		svgOpts = append(svgOpts, render.WithStates(opts.States))
	}
	if opts.Toggled != "" {
		svgOpts = append(svgOpts, render.WithToggled(opts.Toggled))
	}

	var svg []byte
	svgOnce := func() []byte {
		if svg == nil {
			svg = render.RenderSVG(g, svgOpts...)
		}
		return svg
	}

	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatSVG:
			data = svgOnce()
		case FormatPNG:
			data, err = render.ToPNG(svgOnce(), PNGScale)
		case FormatPDF:
			data, err = render.ToPDF(svgOnce())
		case FormatJSON:
			data, err = graph.MarshalGraph(g)
		case FormatDOT:
			var dot string
			dot, _, err = layout.ToDOT(layout.Prepare(g), opts.EffectiveLayout())
			data = []byte(dot)
		default:
			return nil, errors.New(errors.ErrCodeUnsupported, "unsupported format: %s", format)
		}

		if err != nil {
			if errors.GetCode(err) != "" {
				return nil, err
			}
			return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "render %s", format)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

// RenderWithCacheInfo renders g with caching. The boolean is true when all
// formats came from cache. Runs with presentation state bypass the cache.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, g graph.Graph, opts Options) (map[string][]byte, bool, error) {
	hooks := observability.Pipeline()
	useCache := !opts.stateful()

	var layoutHash string
	if useCache {
		data, err := graph.MarshalGraph(g)
		if err != nil {
			return nil, false, fmt.Errorf("serialize layout for cache key: %w", err)
		}
		layoutHash = cache.Hash(data)
	}

	if useCache && !opts.Refresh {
		artifacts := make(map[string][]byte, len(opts.Formats))
		for _, format := range opts.Formats {
			data, hit, err := r.Cache.Get(ctx, r.Keyer.RenderKey(layoutHash, opts.RenderKeyOpts(format)))
			if err != nil || !hit {
				break
			}
			artifacts[format] = data
		}
		if len(artifacts) == len(opts.Formats) {
			observability.Cache().OnCacheHit(ctx, cache.KeyTypeRender)
			return artifacts, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, cache.KeyTypeRender)
	}

	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()
	artifacts, err := Render(g, opts)
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	if useCache {
		for format, data := range artifacts {
			key := r.Keyer.RenderKey(layoutHash, opts.RenderKeyOpts(format))
			if err := r.Cache.Set(ctx, key, data, cache.TTLRender); err == nil {
				observability.Cache().OnCacheSet(ctx, cache.KeyTypeRender, len(data))
			}
		}
	}
	return artifacts, false, nil
}

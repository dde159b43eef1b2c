package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/archdiagram/pkg/cache"
	"github.com/matzehuels/archdiagram/pkg/graph"
	"github.com/matzehuels/archdiagram/pkg/layout"
	"github.com/matzehuels/archdiagram/pkg/model"
)

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless apart from its cache, engine and logger. Multiple
// goroutines can use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Engine layout.Engine
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// uses [cache.DefaultKeyer] and a nil engine uses Graphviz.
func NewRunner(c cache.Cache, keyer cache.Keyer, engine layout.Engine, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if engine == nil {
		engine = layout.NewGraphviz(logger)
	}
	return &Runner{Cache: c, Keyer: keyer, Engine: engine, Logger: logger}
}

// Execute runs the complete pipeline on a YAML document.
func (r *Runner) Execute(ctx context.Context, data []byte, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	parseStart := time.Now()
	m, err := Parse(ctx, data, opts.Source)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	parseTime := time.Since(parseStart)
	r.Logger.Info("parsed document",
		"source", opts.Source,
		"resources", m.ResourceCount(),
		"perspectives", len(m.Perspectives),
		"duration", parseTime)

	result, err := r.ExecuteModel(ctx, m, opts)
	if err != nil {
		return nil, err
	}
	result.Stats.ParseTime = parseTime
	return result, nil
}

// ExecuteModel runs projection, layout and rendering on a parsed model.
func (r *Runner) ExecuteModel(ctx context.Context, m *model.ArchitectureModel, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{Model: m}
	result.Stats.Resources = m.ResourceCount()

	projectStart := time.Now()
	proj, err := Project(ctx, m, opts)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	result.Projection = proj
	result.Stats.ProjectTime = time.Since(projectStart)
	result.Stats.NodeCount = graph.NodeCount(proj.Graph)
	result.Stats.EdgeCount = len(proj.Graph.Edges)
	result.Stats.Dropped = len(proj.Dropped)

	r.Logger.Info("projected model",
		"perspective", proj.Perspective,
		"nodes", result.Stats.NodeCount,
		"edges", result.Stats.EdgeCount,
		"dropped", result.Stats.Dropped)

	layoutStart := time.Now()
	positioned, layoutHit, err := r.LayoutWithCacheInfo(ctx, proj.Graph, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Graph = positioned
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.LayoutHit = layoutHit
	if data, err := graph.MarshalGraph(positioned); err == nil {
		result.GraphHash = cache.Hash(data)
	}

	r.Logger.Info("computed layout",
		"width", positioned.Width,
		"height", positioned.Height,
		"cached", layoutHit,
		"duration", result.Stats.LayoutTime)

	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, positioned, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// Close releases the cache and, when it holds resources, the engine.
func (r *Runner) Close() error {
	var first error
	if c, ok := r.Engine.(io.Closer); ok {
		first = c.Close()
	}
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

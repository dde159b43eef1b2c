// Package pipeline runs the parse → project → layout → render pipeline.
//
// The CLI, the watch loop and the editor server all go through a [Runner]
// so they share defaults, validation, caching and observability hooks.
//
// # Stages
//
//  1. Parse: YAML document to [model.ArchitectureModel]
//  2. Project: model plus perspective to a generic [graph.Graph]
//  3. Layout: positions from the layout engine, cached by graph hash
//  4. Render: SVG, PNG, PDF, positioned JSON or DOT, cached by layout hash
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, nil, logger)
//	defer runner.Close()
//	result, err := runner.Execute(ctx, data, pipeline.Options{
//	    Perspective: "Data Flow",
//	    Formats:     []string{pipeline.FormatSVG},
//	})
//	svg := result.Artifacts[pipeline.FormatSVG]
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/archdiagram/pkg/cache"
	"github.com/matzehuels/archdiagram/pkg/errors"
	"github.com/matzehuels/archdiagram/pkg/graph"
	"github.com/matzehuels/archdiagram/pkg/layout"
	"github.com/matzehuels/archdiagram/pkg/model"
	"github.com/matzehuels/archdiagram/pkg/project"
	"github.com/matzehuels/archdiagram/pkg/render"
)

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatJSON = "json"
	FormatDOT  = "dot"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
	FormatJSON: true,
	FormatDOT:  true,
}

// Nesting, sizing and edge ID scheme names accepted in [Options].
const (
	NestingNested = "nested"
	NestingFlat   = "flat"

	SizingDefault = "default"
	SizingBlock   = "block"

	EdgeIDsEndpoints = "endpoints"
	EdgeIDsIndex     = "index"
)

// DefaultStyle is the default visual style.
const DefaultStyle = render.StyleLight

// PNGScale is the rasterization scale for PNG output.
const PNGScale = 2.0

// Options contains all configuration for a pipeline run. It supports JSON
// for API requests.
type Options struct {
	// Source names the document in logs and hooks, e.g. a file path.
	Source string `json:"source,omitempty"`

	// Project options
	Perspective string `json:"perspective,omitempty"`
	Strict      bool   `json:"strict,omitempty"`
	Nesting     string `json:"nesting,omitempty"`
	Sizing      string `json:"sizing,omitempty"`
	EdgeIDs     string `json:"edge_ids,omitempty"`

	// Layout options, merged over layout.DefaultOptions.
	Layout layout.Options `json:"layout,omitempty"`

	// Render options
	Formats    []string `json:"formats,omitempty"`
	Style      string   `json:"style,omitempty"`
	Background bool     `json:"background,omitempty"`

	// Refresh bypasses cache reads; results are still written.
	Refresh bool `json:"refresh,omitempty"`

	// Presentation state for the editor. Runs with state are never cached.
	States  render.States `json:"-"`
	Toggled string        `json:"-"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	Model      *model.ArchitectureModel
	Projection project.Result

	// Graph is the positioned graph.
	Graph     graph.Graph
	GraphHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Resources   int
	NodeCount   int
	EdgeCount   int
	Dropped     int
	ParseTime   time.Duration
	ProjectTime time.Duration
	LayoutTime  time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for each cached stage.
type CacheInfo struct {
	LayoutHit bool
	RenderHit bool // All artifacts came from cache
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: svg, png, pdf, json, dot)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateStyle checks that a style is valid.
func ValidateStyle(style string) error {
	_, err := render.StyleByName(style)
	return err
}

// ValidateAndSetDefaults checks all fields and applies defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Source == "" {
		o.Source = "-"
	}
	if o.Nesting == "" {
		o.Nesting = NestingNested
	}
	if o.Sizing == "" {
		o.Sizing = SizingDefault
	}
	if o.EdgeIDs == "" {
		o.EdgeIDs = EdgeIDsEndpoints
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Style == "" {
		o.Style = DefaultStyle
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	if _, err := o.ProjectOptions(); err != nil {
		return err
	}
	if err := errors.ValidatePerspectiveName(o.Perspective); err != nil {
		return err
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if err := ValidateStyle(o.Style); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ProjectOptions converts the project settings for [project.Project].
func (o *Options) ProjectOptions() (project.Options, error) {
	po := project.Options{Perspective: o.Perspective, Strict: o.Strict, Logger: o.Logger}

	switch o.Nesting {
	case "", NestingNested:
		po.Nesting = project.Nested
	case NestingFlat:
		po.Nesting = project.Flat
	default:
		return po, errors.New(errors.ErrCodeInvalidInput, "invalid nesting: %q (must be nested or flat)", o.Nesting)
	}
	switch o.Sizing {
	case "", SizingDefault:
		po.Sizing = project.SizingDefault
	case SizingBlock:
		po.Sizing = project.SizingBlock
	default:
		return po, errors.New(errors.ErrCodeInvalidInput, "invalid sizing: %q (must be default or block)", o.Sizing)
	}
	switch o.EdgeIDs {
	case "", EdgeIDsEndpoints:
		po.EdgeIDs = project.EdgeIDEndpoints
	case EdgeIDsIndex:
		po.EdgeIDs = project.EdgeIDIndex
	default:
		return po, errors.New(errors.ErrCodeInvalidInput, "invalid edge ids: %q (must be endpoints or index)", o.EdgeIDs)
	}
	return po, nil
}

// EffectiveLayout returns the layout options after merging over defaults.
func (o *Options) EffectiveLayout() layout.Options {
	return layout.Merge(layout.DefaultOptions(), o.Layout)
}

// LayoutKeyOpts returns cache key options for layout computation.
func (o *Options) LayoutKeyOpts() cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{Options: o.EffectiveLayout()}
}

// RenderKeyOpts returns cache key options for rendering one format.
func (o *Options) RenderKeyOpts(format string) cache.RenderKeyOpts {
	return cache.RenderKeyOpts{Format: format, Style: o.Style, Background: o.Background}
}

// stateful reports whether the run carries presentation state.
func (o *Options) stateful() bool {
	return len(o.States) > 0 || o.Toggled != ""
}

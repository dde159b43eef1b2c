package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/archdiagram/internal/config"
	"github.com/matzehuels/archdiagram/pkg/layout"
	"github.com/matzehuels/archdiagram/pkg/pipeline"
)

// diagramFlags are the flags shared by every command that runs the pipeline.
type diagramFlags struct {
	perspective string
	strict      bool
	nesting     string
	sizing      string
	edgeIDs     string
	direction   string
	layoutOpts  []string
	style       string
	background  bool
	noCache     bool
	refresh     bool
}

// register adds the projection and layout flags to cmd.
func (f *diagramFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.perspective, "perspective", "p", "", "perspective to render (default: first)")
	fs.BoolVar(&f.strict, "strict-perspective", false, "fail instead of falling back when the perspective is unknown")
	fs.StringVar(&f.nesting, "nesting", pipeline.NestingNested, "resource nesting: nested, flat")
	fs.StringVar(&f.sizing, "sizing", pipeline.SizingDefault, "node sizing: default, block")
	fs.StringVar(&f.edgeIDs, "edge-ids", pipeline.EdgeIDsEndpoints, "edge id scheme: endpoints, index")
	fs.StringVar(&f.direction, "direction", "", "layout direction: RIGHT, DOWN, LEFT, UP")
	fs.StringArrayVar(&f.layoutOpts, "layout-opt", nil, "layout option as key=value (repeatable)")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable caching")
	fs.BoolVar(&f.refresh, "refresh", false, "recompute instead of reading the cache")

	_ = cmd.RegisterFlagCompletionFunc("perspective", completePerspectives)
	_ = cmd.RegisterFlagCompletionFunc("direction", cobra.FixedCompletions(
		[]string{"RIGHT", "DOWN", "LEFT", "UP"}, cobra.ShellCompDirectiveNoFileComp))
}

// registerRender adds the render style flags to fs.
func (f *diagramFlags) registerRender(fs *pflag.FlagSet) {
	fs.StringVar(&f.style, "style", "", "visual style: light, dark (default from config)")
	fs.BoolVar(&f.background, "background", false, "paint the style background behind the diagram")
}

// options builds pipeline options from cfg with the flags laid over it.
func (f *diagramFlags) options(cmd *cobra.Command, cfg *config.Config, source string) (pipeline.Options, error) {
	opts := baseOptions(cfg)
	opts.Source = source
	opts.Perspective = f.perspective
	opts.Strict = f.strict
	opts.Nesting = f.nesting
	opts.Sizing = f.sizing
	opts.EdgeIDs = f.edgeIDs
	opts.Background = f.background
	opts.Refresh = f.refresh
	if f.style != "" {
		opts.Style = f.style
	}

	overrides, err := parseLayoutOpts(f.layoutOpts)
	if err != nil {
		return opts, err
	}
	if cmd.Flags().Changed("direction") {
		overrides[layout.KeyDirection] = f.direction
	}
	opts.Layout = layout.Merge(opts.Layout, overrides)
	return opts, nil
}

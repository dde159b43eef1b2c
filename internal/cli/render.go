package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/archdiagram/internal/config"
	"github.com/matzehuels/archdiagram/pkg/model"
	"github.com/matzehuels/archdiagram/pkg/pipeline"
	"github.com/matzehuels/archdiagram/pkg/render"
)

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		flags      diagramFlags
		formatsStr string
		output     string
		pick       bool
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "render [document.yaml]",
		Short: "Render a perspective of an architecture document",
		Long: `Render a perspective of an architecture document.

The document is projected through one perspective (the first unless -p or
--pick selects another), laid out with Graphviz and written in each requested
format. Use "-" to read the document from stdin; a single artifact is then
written to stdout unless -o is given.

Layouts and artifacts are cached, so re-rendering an unchanged document is
instant.`,
		Example: `  archdiagram render system.yaml
  archdiagram render system.yaml -p "Data Flow" -f svg,png -o flow
  archdiagram render system.yaml --all --direction DOWN
  archdiagram render system.yaml --layout-opt elk.spacing.nodeNode=80`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pick && all {
				return fmt.Errorf("--pick and --all cannot be combined")
			}
			formats := parseFormats(formatsStr)
			if output == "-" && (all || len(formats) > 1) {
				return fmt.Errorf("-o - writes a single artifact; drop --all or pass one format")
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, cfg, args[0])
			if err != nil {
				return err
			}
			opts.Formats = formats
			if err := pipeline.ValidateFormats(opts.Formats); err != nil {
				return err
			}
			if err := pipeline.ValidateStyle(opts.Style); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], renderRun{
				opts:    opts,
				output:  output,
				pick:    pick,
				all:     all,
				noCache: flags.noCache,
			}, cfg)
		},
	}

	flags.register(cmd)
	flags.registerRender(cmd.Flags())
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), png, pdf, json, dot (comma-separated)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().BoolVar(&pick, "pick", false, "choose the perspective interactively")
	cmd.Flags().BoolVar(&all, "all", false, "render every perspective to its own file")

	return cmd
}

// renderRun holds the resolved settings of one render invocation.
type renderRun struct {
	opts    pipeline.Options
	output  string
	pick    bool
	all     bool
	noCache bool
}

// runRender parses the document once and renders each selected perspective.
func (c *CLI) runRender(ctx context.Context, input string, run renderRun, cfg *config.Config) error {
	data, err := readInput(input)
	if err != nil {
		return err
	}
	m, err := pipeline.Parse(ctx, data, input)
	if err != nil {
		return err
	}

	perspectives := []string{run.opts.Perspective}
	switch {
	case run.all && len(m.Perspectives) > 0:
		perspectives = m.PerspectiveNames()
	case run.pick:
		name, err := pickPerspective(m)
		if err != nil {
			return err
		}
		perspectives = []string{name}
	}

	if needsConverter(run.opts.Formats) && !render.ConverterAvailable() {
		printWarning("rsvg-convert not found; PNG and PDF output will fail")
	}

	runner, err := c.newRunner(ctx, cfg, run.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	run.opts.Logger = c.Logger
	prog := newProgress(c.Logger)
	var written []string
	for _, name := range perspectives {
		opts := run.opts
		opts.Perspective = name

		spinner := newSpinner(ctx, "Rendering "+perspectiveLabel(name)+"...")
		spinner.Start()
		result, err := runner.ExecuteModel(ctx, m, opts)
		if err != nil {
			spinner.StopWithError("Render failed")
			return err
		}
		spinner.Stop()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		paths, err := writeArtifacts(result.Artifacts, artifactPaths{
			formats:     opts.Formats,
			input:       input,
			output:      run.output,
			perspective: result.Projection.Perspective,
			multi:       len(perspectives) > 1,
		})
		if err != nil {
			return err
		}
		written = append(written, paths...)

		for _, d := range result.Projection.Dropped {
			printWarning("relation %d of %q dropped: unknown %s", d.Index, result.Projection.Perspective, strings.Join(d.Missing, ", "))
		}
		printStats(diagramStats{
			perspective: result.Projection.Perspective,
			nodes:       result.Stats.NodeCount,
			edges:       result.Stats.EdgeCount,
			dropped:     result.Stats.Dropped,
			cached:      result.CacheInfo.LayoutHit,
		})
	}
	prog.done("render complete", "artifacts", len(written))

	for _, p := range written {
		printFile(p)
	}
	return nil
}

func perspectiveLabel(name string) string {
	if name == "" {
		return "diagram"
	}
	return name
}

func needsConverter(formats []string) bool {
	for _, f := range formats {
		if f == pipeline.FormatPNG || f == pipeline.FormatPDF {
			return true
		}
	}
	return false
}

// =============================================================================
// Output Paths
// =============================================================================

// artifactPaths describes where the artifacts of one perspective go.
type artifactPaths struct {
	formats     []string
	input       string
	output      string
	perspective string
	multi       bool // several perspectives share the output base
}

// toStdout reports whether a single artifact is streamed to stdout.
func (a artifactPaths) toStdout() bool {
	if a.output == "-" {
		return true
	}
	return a.output == "" && a.input == "-" && len(a.formats) == 1 && !a.multi
}

// path returns the file for one format.
func (a artifactPaths) path(format string) string {
	if len(a.formats) == 1 && !a.multi && a.output != "" {
		return a.output
	}
	base := basePath(a.output, a.input)
	if a.multi {
		base += "_" + strings.ToLower(model.NormalizeID(a.perspective))
	}
	return base + "." + format
}

// basePath derives the base output path from the output and input file
// paths. Known format extensions are stripped from output.
func basePath(output, input string) string {
	if output == "" {
		if input == "-" {
			return "diagram"
		}
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

// writeArtifacts writes each requested format and returns the paths written.
func writeArtifacts(artifacts map[string][]byte, a artifactPaths) ([]string, error) {
	var paths []string
	for _, format := range a.formats {
		data, ok := artifacts[format]
		if !ok {
			continue
		}
		path := a.path(format)
		if a.toStdout() {
			path = "-"
		}
		out, err := openOutput(path)
		if err != nil {
			return paths, fmt.Errorf("create %s: %w", path, err)
		}
		_, werr := out.Write(data)
		cerr := out.Close()
		if werr != nil {
			return paths, fmt.Errorf("write %s: %w", path, werr)
		}
		if cerr != nil {
			return paths, fmt.Errorf("close %s: %w", path, cerr)
		}
		if path != "-" {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

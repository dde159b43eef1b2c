package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/archdiagram/internal/config"
	"github.com/matzehuels/archdiagram/pkg/graph"
	"github.com/matzehuels/archdiagram/pkg/pipeline"
)

// layoutCommand creates the layout command, which writes the positioned graph.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		flags  diagramFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "layout [document.yaml]",
		Short: "Compute the positioned graph of a perspective",
		Long: `Compute the positioned graph of a perspective.

The output holds node positions and sizes relative to their parent, and edge
routes as sections of start, bend and end points. It is the same document
'render -f json' produces.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, cfg, args[0])
			if err != nil {
				return err
			}
			return c.runLayout(cmd.Context(), args[0], opts, output, flags.noCache, cfg)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")

	return cmd
}

// runLayout projects the document, computes the layout, and writes output.
func (c *CLI) runLayout(ctx context.Context, input string, opts pipeline.Options, output string, noCache bool, cfg *config.Config) error {
	opts.Logger = c.Logger
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	data, err := readInput(input)
	if err != nil {
		return err
	}
	m, err := pipeline.Parse(ctx, data, input)
	if err != nil {
		return err
	}
	res, err := pipeline.Project(ctx, m, opts)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinner(ctx, "Computing layout...")
	spinner.Start()
	positioned, cacheHit, err := runner.LayoutWithCacheInfo(ctx, res.Graph, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return err
	}
	spinner.Stop()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	outputPath := output
	if outputPath == "" {
		outputPath = layoutPath(input)
	}
	if outputPath == "-" {
		return graph.WriteGraph(positioned, os.Stdout)
	}
	if err := graph.WriteGraphFile(positioned, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	printStats(diagramStats{
		perspective: res.Perspective,
		nodes:       graph.NodeCount(positioned),
		edges:       len(positioned.Edges),
		dropped:     len(res.Dropped),
		cached:      cacheHit,
	})
	printNewline()
	next := appName + " render " + quoteArg(input)
	if res.Perspective != "" {
		next += " -p " + quoteArg(res.Perspective)
	}
	printNextStep("Render", next)
	return nil
}

// layoutPath derives the default layout file from the input path.
func layoutPath(input string) string {
	if input == "-" {
		return "-"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".layout.json"
}

func quoteArg(s string) string {
	if strings.ContainsAny(s, " \t'\"") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

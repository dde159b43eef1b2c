package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/archdiagram/pkg/graph"
	"github.com/matzehuels/archdiagram/pkg/pipeline"
	"github.com/matzehuels/archdiagram/pkg/project"
)

// projectOutput is the JSON written by the project command.
type projectOutput struct {
	Perspective string                     `json:"perspective"`
	Graph       graph.Graph                `json:"graph"`
	Dropped     []project.DanglingRelation `json:"dropped,omitempty"`
	Duplicates  []string                   `json:"duplicates,omitempty"`
}

// projectCommand creates the project command, which stops the pipeline
// before layout.
func (c *CLI) projectCommand() *cobra.Command {
	var (
		flags  diagramFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "project [document.yaml]",
		Short: "Print the graph a perspective projects to, before layout",
		Long: `Print the graph a perspective projects to, before layout.

The output is the generic graph handed to the layout engine: resources as
nested nodes and the perspective's relations as edges. Relations whose
endpoints are unknown are listed under "dropped".`,
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
			return c.runProject(cmd.Context(), args[0], opts, output)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func (c *CLI) runProject(ctx context.Context, input string, opts pipeline.Options, output string) error {
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

	out, err := openOutput(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(projectOutput{
		Perspective: res.Perspective,
		Graph:       res.Graph,
		Dropped:     res.Dropped,
		Duplicates:  res.Duplicates,
	}); err != nil {
		return fmt.Errorf("write projection: %w", err)
	}

	if output != "" && output != "-" {
		printSuccess("Projected %s", perspectiveLabel(res.Perspective))
		printFile(output)
		printStats(diagramStats{
			perspective: res.Perspective,
			nodes:       graph.NodeCount(res.Graph),
			edges:       len(res.Graph.Edges),
			dropped:     len(res.Dropped),
		})
	}
	return nil
}

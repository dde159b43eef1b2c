package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/archdiagram/pkg/model"
	"github.com/matzehuels/archdiagram/pkg/pipeline"
	"github.com/matzehuels/archdiagram/pkg/sample"
)

// perspectivesCommand lists the perspectives of a document.
func (c *CLI) perspectivesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "perspectives [document.yaml]",
		Aliases: []string{"ls"},
		Short:   "List the perspectives of a document",
		Long: `List the perspectives of a document in declaration order.

The first perspective is the one rendered when none is selected. Relations
that reference unknown resources are counted as dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			quiet := log.New(os.Stderr)
			quiet.SetLevel(log.ErrorLevel)
			rows := perspectiveRows(m, quiet)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			if len(rows) == 0 {
				printInfo("%s declares no perspectives", args[0])
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), perspectiveTable(rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// fmtCommand normalizes documents.
func (c *CLI) fmtCommand() *cobra.Command {
	var (
		write bool
		check bool
	)

	cmd := &cobra.Command{
		Use:   "fmt [document.yaml...]",
		Short: "Normalize the layout of architecture documents",
		Long: `Normalize the layout of architecture documents.

Documents are parsed and written back in canonical form, with two-space
indentation and sections in a fixed order. Comments are not preserved.
Without -w the result is printed to stdout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var unformatted []string
			for _, path := range args {
				data, err := readInput(path)
				if err != nil {
					return err
				}
				formatted, err := formatDocument(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				changed := !bytes.Equal(data, formatted)

				switch {
				case check:
					if changed {
						unformatted = append(unformatted, path)
					}
				case write && path != "-":
					if !changed {
						continue
					}
					if err := os.WriteFile(path, formatted, 0o644); err != nil {
						return fmt.Errorf("write %s: %w", path, err)
					}
					printFile(path)
				default:
					if _, err := cmd.OutOrStdout().Write(formatted); err != nil {
						return err
					}
				}
			}
			if len(unformatted) > 0 {
				for _, p := range unformatted {
					printWarning("%s is not formatted", p)
				}
				return fmt.Errorf("%d document(s) need formatting", len(unformatted))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "write result to the source file")
	cmd.Flags().BoolVar(&check, "check", false, "fail if any document is not formatted")
	return cmd
}

// formatDocument returns the canonical form of a document.
func formatDocument(data []byte) ([]byte, error) {
	m, err := model.Parse(data)
	if err != nil {
		return nil, err
	}
	return model.Marshal(m)
}

// sampleCommand prints the built-in sample document.
func (c *CLI) sampleCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print the sample architecture document",
		Long: `Print the sample architecture document.

The sample is the document the editor opens with. It is a good starting point
for a new model:

  archdiagram sample -o system.yaml
  archdiagram render system.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := sample.Load()
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(doc)
				return err
			}
			if err := os.WriteFile(output, doc, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			printSuccess("Wrote sample document")
			printFile(output)
			printNewline()
			printNextStep("Render", appName+" render "+quoteArg(output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

// loadModel reads and parses a document.
func loadModel(ctx context.Context, path string) (*model.ArchitectureModel, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	return pipeline.Parse(ctx, data, path)
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/archdiagram/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Archdiagram renders architecture models as diagrams",
		Long: `Archdiagram renders YAML architecture models as layered diagrams.

A model lists resources, optionally nested, and named perspectives that each
select a set of relations between them. Every perspective renders as its own
diagram: one document, many views.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/archdiagram/config.toml)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.projectCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.perspectivesCommand())
	root.AddCommand(c.fmtCommand())
	root.AddCommand(c.sampleCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

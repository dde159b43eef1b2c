package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/archdiagram/pkg/model"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for archdiagram.

To load completions:

Bash:
  $ source <(archdiagram completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ archdiagram completion bash > /etc/bash_completion.d/archdiagram
  # macOS:
  $ archdiagram completion bash > $(brew --prefix)/etc/bash_completion.d/archdiagram

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ archdiagram completion zsh > "${fpath[1]}/_archdiagram"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ archdiagram completion fish | source

  # To load completions for each session, execute once:
  $ archdiagram completion fish > ~/.config/fish/completions/archdiagram.fish

PowerShell:
  PS> archdiagram completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> archdiagram completion powershell > archdiagram.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(cmd.OutOrStdout(), true)
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
			return nil
		},
	}

	return cmd
}

// completePerspectives completes --perspective with the names declared in
// the document given as the first argument.
func completePerspectives(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 || args[0] == "-" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	m, err := model.Parse(data)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return m.PerspectiveNames(), cobra.ShellCompDirectiveNoFileComp
}

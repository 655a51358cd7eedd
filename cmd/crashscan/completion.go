package main

import (
	"github.com/spf13/cobra"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for crashscan.

To load completions:

Bash:
  $ source <(crashscan completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ crashscan completion bash > /etc/bash_completion.d/crashscan
  # macOS:
  $ crashscan completion bash > $(brew --prefix)/etc/bash_completion.d/crashscan

Zsh:
  $ crashscan completion zsh > "${fpath[1]}/_crashscan"

  # Start a new shell for this setup to take effect.

Fish:
  $ crashscan completion fish > ~/.config/fish/completions/crashscan.fish

PowerShell:
  PS> crashscan completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			out := cmd.OutOrStdout()

			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}

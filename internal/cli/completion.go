package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/mmdoc/pkg/config"
	"github.com/matzehuels/mmdoc/pkg/render"
)

// Values offered when completing flag arguments.
var (
	buildTargets  = []string{"html", "latex", "texinfo", "text", "man"}
	htmlFormats   = []string{config.FormatRaw, config.FormatPNG, config.FormatSVG}
	renderFormats = []string{render.FormatSVG, render.FormatPNG, render.FormatPDF}
)

// completionCommand prints a shell completion script for mmdoc.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Print a shell completion script",
		Long: `Print a completion script for mmdoc to stdout.

Besides subcommands and flags, the script completes build targets
(--target html, latex, texinfo, text, man), diagram formats for build
(--format raw, png, svg) and artifact formats for render (--format svg, png, pdf).

Load it for the current shell:

  $ source <(mmdoc completion bash)
  $ mmdoc completion zsh > "${fpath[1]}/_mmdoc"
  $ mmdoc completion fish | source
  PS> mmdoc completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(w, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}
			return nil
		},
	}

	return cmd
}

// completeValues registers a fixed value list for flag on cmd.
func completeValues(cmd *cobra.Command, flag string, values []string) {
	_ = cmd.RegisterFlagCompletionFunc(flag, cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp))
}

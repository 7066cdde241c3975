package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/knotview/pkg/config"
)

// completionCommand prints a shell completion script. Besides commands and
// flags, the scripts complete grammar arguments with stored grammar names.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for the given shell.

Grammar arguments complete to the names in the grammar store (the local store,
or MongoDB when mongo_uri is configured) as well as to file paths.

  $ source <(knotview completion bash)
  $ knotview completion zsh > "${fpath[1]}/_knotview"
  $ knotview completion fish > ~/.config/fish/completions/knotview.fish
  PS> knotview completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

// completeGrammarRef completes the grammar argument of the scene commands:
// stored grammar names first, then the shell's own file completion.
func (c *CLI) completeGrammarRef(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return c.storedGrammarNames(cmd, toComplete), cobra.ShellCompDirectiveDefault
}

// completeStoredGrammar completes names for commands that only take a
// stored grammar.
func (c *CLI) completeStoredGrammar(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return c.storedGrammarNames(cmd, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// storedGrammarNames lists stored grammars starting with prefix, described
// by their size. Completion runs without the root pre-run, so the config is
// loaded here; any failure yields no candidates.
func (c *CLI) storedGrammarNames(cmd *cobra.Command, prefix string) []cobra.Completion {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil
	}
	c.cfg = cfg

	st, err := c.newStore(cmd.Context())
	if err != nil {
		return nil
	}
	defer st.Close()

	list, err := st.List(cmd.Context())
	if err != nil {
		c.Logger.Debug("grammar completion unavailable", "err", err)
		return nil
	}
	var out []cobra.Completion
	for _, s := range list {
		if !strings.HasPrefix(s.Name, prefix) {
			continue
		}
		out = append(out, cobra.CompletionWithDesc(s.Name, plural(s.Knots, "knot")))
	}
	return out
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/store"
)

// grammarCommand creates the grammar management command.
func (c *CLI) grammarCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grammar",
		Short: "Validate and manage stored grammars",
		Long: `Validate grammar files and manage stored grammars.

Grammars are stored in the local config directory, or in MongoDB when
mongo_uri is configured. Other commands accept a stored grammar's name
wherever they accept a grammar file.`,
	}

	cmd.AddCommand(c.grammarValidateCommand())
	cmd.AddCommand(c.grammarPushCommand())
	cmd.AddCommand(c.grammarListCommand())
	cmd.AddCommand(c.grammarGetCommand())
	cmd.AddCommand(c.grammarDeleteCommand())

	return cmd
}

func (c *CLI) grammarValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a grammar file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := grammar.Load(args[0])
			if err != nil {
				printError("Invalid grammar")
				return err
			}
			printSuccess("Grammar is valid")
			printDetail("%d views · %d knots", len(g.Views), len(g.Knots))
			return nil
		},
	}
}

func (c *CLI) grammarPushCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "push [file]",
		Short: "Store a grammar file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				base := filepath.Base(args[0])
				name = strings.TrimSuffix(base, filepath.Ext(base))
			}
			return c.withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				g, err := grammar.Load(args[0])
				if err != nil {
					return err
				}
				doc, err := store.NewDocument(name, g)
				if err != nil {
					return err
				}
				if err := st.Put(ctx, doc); err != nil {
					return err
				}
				printSuccess("Stored grammar %s", StyleHighlight.Render(name))
				printDetail("%d views · %d knots", doc.Views, doc.Knots)
				printNewline()
				printNextStep("Render it", appName+" render "+name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "stored name (default: file name without extension)")
	return cmd
}

func (c *CLI) grammarListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored grammars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				list, err := st.List(ctx)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					printInfo("No stored grammars")
					return nil
				}
				for _, s := range list {
					printKeyValue(s.Name, fmt.Sprintf("%s views, %s knots  %s",
						StyleNumber.Render(fmt.Sprint(s.Views)),
						StyleNumber.Render(fmt.Sprint(s.Knots)),
						StyleDim.Render(formatRelativeTime(s.UpdatedAt))))
				}
				return nil
			})
		},
	}
}

func (c *CLI) grammarGetCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:               "get [name]",
		Short:             "Print a stored grammar as JSON",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeStoredGrammar,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				doc, err := st.Get(ctx, args[0])
				if err != nil {
					return err
				}
				data := append([]byte(doc.Data), '\n')
				if output == "" {
					_, err := os.Stdout.Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				printSuccess("Grammar written")
				printFile(output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func (c *CLI) grammarDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "delete [name]",
		Short:             "Remove a stored grammar",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeStoredGrammar,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				if err := st.Delete(ctx, args[0]); err != nil {
					return err
				}
				printSuccess("Deleted grammar %s", args[0])
				return nil
			})
		},
	}
}

// withStore opens the grammar store for the duration of fn.
func (c *CLI) withStore(ctx context.Context, fn func(context.Context, store.Store) error) error {
	st, err := c.newStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

// formatRelativeTime formats t relative to now for listings.
func formatRelativeTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

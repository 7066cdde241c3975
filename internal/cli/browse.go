package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// browseCommand creates the interactive knot browser command.
func (c *CLI) browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "browse [grammar]",
		Short:             "Browse the knots of a scene and toggle their visibility",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeGrammarRef,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBrowse(cmd.Context(), args[0])
		},
	}
}

func (c *CLI) runBrowse(ctx context.Context, ref string) error {
	s, err := c.openScene(ctx, ref, sceneOpts{})
	if err != nil {
		return err
	}
	defer s.Close()

	model := NewKnotListModel(s.controller)
	if model.Err != nil {
		return model.Err
	}
	if len(model.Knots) == 0 {
		printWarning("The scene has no knots")
		return nil
	}

	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("run browser: %w", err)
	}

	knots, err := s.controller.Knots()
	if err != nil {
		return err
	}
	visible := 0
	for _, k := range knots {
		if k.Visible {
			visible++
		}
	}
	printInfo("%d of %d knots visible", visible, len(knots))
	return nil
}

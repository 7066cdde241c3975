package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/knotview/pkg/grammar"
)

// plotsCommand creates the plots command.
func (c *CLI) plotsCommand() *cobra.Command {
	var (
		output  string
		selects []string
	)

	cmd := &cobra.Command{
		Use:   "plots [grammar]",
		Short: "Print the data the scene sends to its linked plots",
		Long: `Build the map view of a grammar and print the per-knot element data that
feeds the view's plots, as JSON.

Use --select knot:index to highlight elements from the plot side first; the
highlight is propagated to every knot sharing the element's layer and level.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeGrammarRef,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlots(cmd.Context(), args[0], selects, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringArrayVar(&selects, "select", nil, "highlight element knot:index before printing (repeatable)")

	return cmd
}

func (c *CLI) runPlots(ctx context.Context, ref string, selects []string, output string) error {
	type selection struct {
		knot  string
		index int
	}
	parsed := make([]selection, len(selects))
	for i, s := range selects {
		knotID, idx, ok := strings.Cut(s, ":")
		n, err := strconv.Atoi(idx)
		if !ok || err != nil || knotID == "" {
			return fmt.Errorf("invalid selection %q: want knot:index", s)
		}
		parsed[i] = selection{knot: knotID, index: n}
	}

	s, err := c.openScene(ctx, ref, sceneOpts{})
	if err != nil {
		return err
	}
	defer s.Close()

	for _, sel := range parsed {
		if err := s.controller.SelectFromPlot(sel.knot, sel.index, true); err != nil {
			return fmt.Errorf("select %s:%d: %w", sel.knot, sel.index, err)
		}
	}

	data, err := s.controller.PlotsData()
	if err != nil {
		return err
	}
	enc, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plots data: %w", err)
	}
	enc = append(enc, '\n')

	if output == "" {
		_, err := os.Stdout.Write(enc)
		return err
	}
	if err := os.WriteFile(output, enc, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("Plots data written")
	printFile(output)
	printDetail("%s", summarizePlots(data))
	return nil
}

// summarizePlots describes plots data as "N knots · M elements · K highlighted".
func summarizePlots(data []grammar.KnotData) string {
	var elements, highlighted int
	for _, d := range data {
		elements += len(d.Elements)
		highlighted += d.HighlightedCount()
	}
	return fmt.Sprintf("%d knots · %d elements · %d highlighted", len(data), elements, highlighted)
}

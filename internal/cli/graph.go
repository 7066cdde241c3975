package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/knotview/pkg/depgraph"
)

const (
	formatDOT = "dot"
	formatSVG = "svg"
)

// graphCommand creates the graph command for layer/knot dependency diagrams.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		output   string
		format   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "graph [grammar]",
		Short: "Draw the layer, knot and plot dependencies of a grammar",
		Long: `Draw the dependency graph of a grammar: which layers each knot reads, which
layers are joined into others, and which plots each knot feeds.

The format is taken from --format, else from the output extension, else DOT.
SVG output is rendered with Graphviz.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeGrammarRef,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd.Context(), args[0], output, format, detailed)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: dot, svg")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "add row and metadata lines to node labels")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, ref, output, format string, detailed bool) error {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(output), ".")
	}
	if format == "" {
		format = formatDOT
	}
	if format != formatDOT && format != formatSVG {
		return fmt.Errorf("unsupported format %q: want dot or svg", format)
	}

	g, err := c.loadGrammar(ctx, ref)
	if err != nil {
		return err
	}
	d, err := depgraph.Build(g)
	if err != nil {
		return err
	}

	data := []byte(depgraph.ToDOT(d, depgraph.Options{Detailed: detailed}))
	if format == formatSVG {
		if data, err = depgraph.RenderSVG(ctx, string(data)); err != nil {
			return err
		}
	}

	if output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	printSuccess("Dependency graph written")
	printFile(output)
	printDetail("%d nodes · %d edges", d.NodeCount(), d.EdgeCount())
	if joined := depgraph.JoinedLayers(d); len(joined) > 0 {
		printKeyValue("Joined", strings.Join(joined, ", "))
	}
	return nil
}

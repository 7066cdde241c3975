package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/knotview/pkg/scene"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	width  int      // canvas width in pixels
	height int      // canvas height in pixels
	toggle []string // knot ids whose visibility is flipped before the frame
	picks  []string // "x,y" clicks applied after the first frame
	trace  string   // file receiving the recorded draw calls as JSON
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{width: defaultWidth, height: defaultHeight}

	cmd := &cobra.Command{
		Use:   "render [grammar]",
		Short: "Build the map view of a grammar and draw a frame",
		Long: `Build the map view of a grammar on a headless canvas and draw a frame.

Layers are fetched from the data directory (or --data-url), knots are built
and thematic values computed, then one frame is drawn. Use --pick to click
the canvas and --trace to write the recorded draw calls.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeGrammarRef,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.width, "width", opts.width, "canvas width")
	cmd.Flags().IntVar(&opts.height, "height", opts.height, "canvas height")
	cmd.Flags().StringSliceVar(&opts.toggle, "toggle", nil, "flip the visibility of a knot (repeatable)")
	cmd.Flags().StringArrayVar(&opts.picks, "pick", nil, "click at x,y after the first frame (repeatable)")
	cmd.Flags().StringVar(&opts.trace, "trace", "", "write recorded draw calls to this JSON file")

	return cmd
}

// runRender builds the scene, applies toggles and picks, and reports.
func (c *CLI) runRender(ctx context.Context, ref string, opts renderOpts) error {
	clicks := make([][2]int, len(opts.picks))
	for i, p := range opts.picks {
		xy, err := parsePoint(p)
		if err != nil {
			return err
		}
		clicks[i] = xy
	}

	s, err := c.openScene(ctx, ref, sceneOpts{width: opts.width, height: opts.height})
	if err != nil {
		return err
	}
	defer s.Close()

	for _, id := range opts.toggle {
		if err := s.controller.ToggleKnot(id, nil); err != nil {
			return fmt.Errorf("toggle %s: %w", id, err)
		}
	}

	for _, xy := range clicks {
		res, err := s.surface.Click(xy[0], xy[1])
		if err != nil {
			return fmt.Errorf("pick %d,%d: %w", xy[0], xy[1], err)
		}
		printPick(xy, res)
	}

	knots, err := s.controller.Knots()
	if err != nil {
		return err
	}

	printSuccess("Rendered frame %s", StyleHighlight.Render(s.controller.FrameID()))
	printKnots(knots)
	printStats(len(s.controller.LayerManager().Layers()), len(knots), len(s.surface.Recorder().Draws()), s.elapsed)

	if opts.trace != "" {
		if err := writeTrace(opts.trace, s.surface); err != nil {
			return err
		}
		printFile(opts.trace)
	}
	printNewline()
	printNextStep("Inspect the plots", appName+" plots "+ref)
	return nil
}

// traceDraw is one draw call in a trace file.
type traceDraw struct {
	Program     string `json:"program"`
	Framebuffer string `json:"framebuffer,omitempty"`
	Mode        string `json:"mode"`
	Count       int    `json:"count"`
}

func writeTrace(path string, s *scene.HeadlessSurface) error {
	draws := s.Recorder().Draws()
	out := make([]traceDraw, len(draws))
	for i, d := range draws {
		out[i] = traceDraw{Program: d.Program, Framebuffer: d.Framebuffer, Mode: string(d.Mode), Count: d.Count}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write trace %s: %w", path, err)
	}
	return nil
}

// parsePoint parses "x,y" canvas coordinates.
func parsePoint(s string) ([2]int, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return [2]int{}, fmt.Errorf("invalid point %q: want x,y", s)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(xs))
	y, errY := strconv.Atoi(strings.TrimSpace(ys))
	if errX != nil || errY != nil {
		return [2]int{}, fmt.Errorf("invalid point %q: want integer x,y", s)
	}
	return [2]int{x, y}, nil
}

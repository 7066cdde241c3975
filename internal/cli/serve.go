package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/knotview/pkg/observability/prom"
	"github.com/matzehuels/knotview/pkg/server"
)

// serveCommand creates the serve command that exposes a scene over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		listen string
		width  int
		height int
	)

	cmd := &cobra.Command{
		Use:   "serve [grammar]",
		Short: "Serve a scene over HTTP with a live status stream",
		Long: `Build the map view of a grammar and serve it over HTTP.

The API lists knots and plot data, toggles knots, applies plot selections,
picks, moves the camera and sets the filter box. Status updates (plot data,
highlights, layer groups) stream to websocket clients at /api/status.
Prometheus metrics are exposed at /metrics.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeGrammarRef,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("listen") {
				listen = c.cfg.Listen
			}
			return c.runServe(cmd.Context(), args[0], listen, width, height)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: config listen)")
	cmd.Flags().IntVar(&width, "width", defaultWidth, "canvas width")
	cmd.Flags().IntVar(&height, "height", defaultHeight, "canvas height")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, ref, listen string, width, height int) error {
	prom.Register()
	hub := server.NewHub(c.Logger)

	s, err := c.openScene(ctx, ref, sceneOpts{width: width, height: height, status: hub.Publish})
	if err != nil {
		return err
	}
	defer s.Close()

	knots, err := s.controller.Knots()
	if err != nil {
		return err
	}
	printSuccess("Scene ready")
	printStats(len(s.controller.LayerManager().Layers()), len(knots), 0, s.elapsed)
	printKeyValue("API", StyleLink.Render("http://"+listen+"/api"))
	printKeyValue("Status", StyleLink.Render("ws://"+listen+"/api/status"))
	printKeyValue("Metrics", StyleLink.Render("http://"+listen+"/metrics"))
	printNewline()

	srv := server.New(s.controller, server.Options{Logger: c.Logger, Hub: hub})
	if err := srv.ListenAndServe(ctx, listen); err != nil {
		return fmt.Errorf("serve %s: %w", listen, err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		printInfo("Shut down")
	}
	return nil
}

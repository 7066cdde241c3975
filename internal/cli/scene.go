package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/observability"
	"github.com/matzehuels/knotview/pkg/scene"
)

// sceneOpts are the options shared by commands that build a scene.
type sceneOpts struct {
	width  int
	height int
	hooks  observability.SceneHooks
	status grammar.StatusFunc
}

// session is an initialized scene on a headless surface.
type session struct {
	grammar    *grammar.Grammar
	controller *scene.Controller
	surface    *scene.HeadlessSurface
	elapsed    time.Duration
	close      func()
}

// Close disposes the scene and releases the loader.
func (s *session) Close() {
	s.controller.Dispose()
	s.close()
}

// openScene loads the grammar ref, builds a controller over the configured
// loader and initializes it on a fresh headless surface. A spinner follows
// the init stages on stderr.
func (c *CLI) openScene(ctx context.Context, ref string, opts sceneOpts) (*session, error) {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)
	spin := newSpinner(ctx, os.Stderr, "Loading grammar...")
	spin.Start()

	s, err := c.buildScene(ctx, ref, opts, logger, prog, spin)
	if err != nil {
		spin.StopWithError("Scene failed")
		return nil, err
	}
	spin.Stop()
	prog.done(fmt.Sprintf("Loaded %d layers", len(s.controller.LayerManager().Layers())))
	return s, nil
}

func (c *CLI) buildScene(ctx context.Context, ref string, opts sceneOpts, logger *log.Logger, prog *progress, spin *Spinner) (*session, error) {
	start := time.Now()
	g, err := c.loadGrammar(ctx, ref)
	if err != nil {
		return nil, err
	}
	interp, err := grammar.NewInterpreter(g, grammar.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("interpret grammar: %w", err)
	}
	prog.stage("grammar")

	loader, closeLoader, err := c.newLoader(ctx)
	if err != nil {
		return nil, err
	}

	if opts.width <= 0 {
		opts.width = defaultWidth
	}
	if opts.height <= 0 {
		opts.height = defaultHeight
	}
	surface := scene.NewHeadlessSurface(defaultSurface, opts.width, opts.height)

	ctrl, err := scene.New(scene.Options{
		Interpreter:      interp,
		Loader:           loader,
		Surfaces:         scene.NewRegistry(surface),
		Logger:           logger,
		ViewID:           c.cfg.ViewID,
		Hooks:            opts.hooks,
		MonitorInterval:  c.cfg.MonitorInterval.Duration,
		FetchConcurrency: c.cfg.FetchConcurrency,
	})
	if err != nil {
		closeLoader()
		return nil, err
	}

	status := opts.status
	if status == nil {
		status = logStatus(logger)
	}

	spin.SetMessage(fmt.Sprintf("Fetching layers of %d knots...", len(g.Knots)))
	if err := ctrl.Init(ctx, defaultSurface, spin.track(status)); err != nil {
		ctrl.Dispose()
		closeLoader()
		return nil, fmt.Errorf("initialize scene: %w", err)
	}
	prog.stage("init")

	return &session{
		grammar:    g,
		controller: ctrl,
		surface:    surface,
		elapsed:    time.Since(start),
		close:      closeLoader,
	}, nil
}

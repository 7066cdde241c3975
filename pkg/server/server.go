package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/knotview/pkg/camera"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/scene"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 5 * time.Second

	maxBodySize = 1 << 20
)

// Scene is the part of a scene controller the API drives.
// [*scene.Controller] implements it.
type Scene interface {
	State() scene.State
	FrameID() string
	PlotsData() ([]grammar.KnotData, error)
	Knots() ([]scene.KnotStatus, error)
	Groups() ([][]string, error)
	ToggleKnot(id string, value *bool) error
	SelectFromPlot(knotID string, element int, value bool) error
	UpdateGrammarPlotsHighlight(layerID string, level grammar.Level, element int, clear bool) error
	Pick(x, y int) (scene.PickResult, error)
	Camera() (camera.State, error)
	SetCamera(p grammar.CameraParams) error
	SetFilterBbox(bbox []float64) error
}

var _ Scene = (*scene.Controller)(nil)

// Options configures a Server.
type Options struct {
	Logger  *log.Logger  // Nil discards output
	Hub     *Hub         // Nil creates one
	Metrics http.Handler // Nil serves the default prometheus registry
}

// Server routes HTTP requests to a scene.
type Server struct {
	scene  Scene
	hub    *Hub
	logger *log.Logger
	router chi.Router
}

// New creates a server for s.
func New(s Scene, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	srv := &Server{scene: s, hub: opts.Hub, logger: opts.Logger}
	srv.router = srv.routes(opts.Metrics)
	return srv
}

func (s *Server) routes(metrics http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/plots", s.handlePlots)
		r.Get("/knots", s.handleKnots)
		r.Post("/knots/{id}/toggle", s.handleToggle)
		r.Post("/highlight", s.handleHighlight)
		r.Post("/highlight/clear", s.handleClear)
		r.Post("/pick", s.handlePick)
		r.Get("/camera", s.handleGetCamera)
		r.Put("/camera", s.handleSetCamera)
		r.Put("/filter", s.handleFilter)
		r.Handle("/status", s.hub)
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the status hub.
func (s *Server) Hub() *Hub { return s.hub }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()
	s.logger.Info("serving scene", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	s.hub.Close()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

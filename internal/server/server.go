// Package server serves the diagram editor and a small render API over HTTP.
//
// Routes:
//
//	GET    /                                    editor page
//	GET    /api/sample                          sample document (text/yaml)
//	POST   /api/render?perspective=&format=     one-shot render of the request body
//	POST   /api/project?perspective=            projected graph JSON, before layout
//	POST   /api/layout?perspective=             positioned graph JSON
//	POST   /api/sessions                        open an editor session
//	GET    /api/sessions/{id}                   latest diagram event
//	DELETE /api/sessions/{id}                   close a session
//	PUT    /api/sessions/{id}/source            debounced document edit
//	PUT    /api/sessions/{id}/perspective       select a perspective
//	PUT    /api/sessions/{id}/split             store the pane split
//	POST   /api/sessions/{id}/nodes/{node}/toggle
//	GET    /api/sessions/{id}/events            server-sent diagram events
//	GET    /healthz
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/archdiagram/internal/editor"
	"github.com/matzehuels/archdiagram/pkg/pipeline"
	"github.com/matzehuels/archdiagram/pkg/sample"
)

// Defaults for [Config].
const (
	DefaultAddr        = "localhost:8080"
	DefaultRenderRate  = 5
	DefaultRenderBurst = 10
	maxBodyBytes       = 1 << 20
	shutdownTimeout    = 5 * time.Second
)

// Config configures a [Server].
type Config struct {
	Addr string

	// RenderRate and RenderBurst bound the one-shot render endpoints per
	// client address.
	RenderRate  float64
	RenderBurst int

	// Options are the base pipeline options for one-shot renders.
	Options pipeline.Options

	Logger *log.Logger
}

// Server is the editor HTTP server.
type Server struct {
	cfg     Config
	runner  *pipeline.Runner
	editors *editor.Manager
	limits  *limiter
	logger  *log.Logger

	// loadSample returns the document served by /api/sample.
	loadSample func() ([]byte, error)

	handler http.Handler
}

// New creates a server rendering through runner and hosting sessions from
// editors.
func New(runner *pipeline.Runner, editors *editor.Manager, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.RenderRate <= 0 {
		cfg.RenderRate = DefaultRenderRate
	}
	if cfg.RenderBurst <= 0 {
		cfg.RenderBurst = DefaultRenderBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	s := &Server{
		cfg:        cfg,
		runner:     runner,
		editors:    editors,
		limits:     newLimiter(cfg.RenderRate, cfg.RenderBurst),
		logger:     cfg.Logger,
		loadSample: sample.Load,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleEditor)
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.RequestSize(maxBodyBytes))

		api.Get("/sample", s.handleSample)

		api.Group(func(limited chi.Router) {
			limited.Use(s.rateLimit)
			limited.Post("/render", s.handleRender)
			limited.Post("/project", s.handleProject)
			limited.Post("/layout", s.handleLayout)
		})

		api.Post("/sessions", s.handleCreateSession)
		api.Route("/sessions/{id}", func(sr chi.Router) {
			sr.Get("/", s.handleGetSession)
			sr.Delete("/", s.handleDeleteSession)
			sr.Put("/source", s.handleSource)
			sr.Put("/perspective", s.handlePerspective)
			sr.Put("/split", s.handleSplit)
			sr.Post("/nodes/{node}/toggle", s.handleToggle)
			sr.Get("/events", s.handleEvents)
		})
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully. Idle editor
// sessions are evicted while the server runs.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with the server so event streams terminate.
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		s.logger.Info("serving editor", "addr", "http://"+s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return s.editors.Run(gctx)
	})
	return g.Wait()
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/churn-radar/internal/config"
	"github.com/ignite/churn-radar/internal/metrics"
	"github.com/ignite/churn-radar/internal/pipeline"
	"github.com/ignite/churn-radar/internal/service/rules"
	"github.com/ignite/churn-radar/internal/source"
	"github.com/ignite/churn-radar/internal/suggest"
)

// Deps are the services the API is built on. Pipeline and Rules are
// required; the rest may be nil and the routes that need them answer 503.
type Deps struct {
	Pipeline  *pipeline.Service
	Rules     *rules.Service
	Sources   *source.Set
	Suggester suggest.Suggester
	Metrics   *metrics.Registry
	Health    *HealthChecker
}

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	h := NewHandlers(deps, cfg.MaxUploadBytes())
	router := SetupRoutes(h, deps, cfg.CORSOrigins)
	return &Server{
		config:  cfg,
		handler: router,
		router:  router,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.handler,
		ReadTimeout:       s.config.ReadTimeout(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      s.config.WriteTimeout(),
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}

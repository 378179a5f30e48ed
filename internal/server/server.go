// Package server exposes the automation pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dativo-io/claimpilot/internal/automation"
	"github.com/dativo-io/claimpilot/internal/cache"
	"github.com/dativo-io/claimpilot/internal/invoke"
	cpotel "github.com/dativo-io/claimpilot/internal/otel"
	"github.com/dativo-io/claimpilot/internal/tenant"
)

const defaultTimeout = 60 * time.Second

// AutomationRunner is the engine surface the server drives.
type AutomationRunner interface {
	Run(ctx context.Context, claimID, orgID string) *automation.RunResult
	RunBatch(ctx context.Context, orgID string) (map[string]*automation.RunResult, error)
}

// Server holds the HTTP API's dependencies.
type Server struct {
	router    *chi.Mux
	engine    AutomationRunner
	invokes   *invoke.Store
	registry  *tenant.Registry
	cache     cache.Store
	startTime time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithRegistry sets the org registry for rate limiting.
func WithRegistry(r *tenant.Registry) Option {
	return func(s *Server) { s.registry = r }
}

// WithCache sets the AI cache for stats reporting and invalidation.
func WithCache(c cache.Store) Option {
	return func(s *Server) { s.cache = c }
}

// NewServer builds a Server with the required dependencies and optional Option(s).
func NewServer(engine AutomationRunner, invokes *invoke.Store, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		engine:    engine,
		invokes:   invokes,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler. Run and scan are long-running
// and registered without the default request timeout so their handler-level
// deadlines take effect.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cpotel.Middleware())

	r.Get("/healthz", s.handleHealth)

	// Long-running: handler deadlines apply (middleware.Timeout would override)
	r.Post("/v1/claims/{claimID}/automation", s.handleRun)
	r.Post("/v1/orgs/{orgID}/scan", s.handleScan)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(defaultTimeout))
		r.Get("/v1/orgs/{orgID}/costs", s.handleCosts)
		r.Get("/v1/cache/stats", s.handleCacheStats)
		r.Delete("/v1/cache/routes/{route}", s.handleCacheInvalidate)
	})

	return r
}

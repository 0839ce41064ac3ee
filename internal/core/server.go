// Package core is the HTTP chassis of the walkability API: a chi router with
// the cross-cutting middleware, response helpers, request validation and the
// health endpoint. Domain handlers plug in through V1RouteRegistrars.
package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"walkability/internal/config"
)

// MetricsCollector receives one call per served request. endpoint is the
// matched route pattern.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server holds the collaborators the middleware and handlers share. Optional
// fields (Metrics, RateLimitStore, HealthProbes) may be left nil; the
// corresponding middleware then passes requests through.
type Server struct {
	Config         *config.Config
	Logger         *slog.Logger
	Validator      *Validator
	Metrics        MetricsCollector
	RateLimitStore RateLimitStore
	HealthProbes   []HealthProbe

	// V1RouteRegistrars are mounted under /v1 by MountRoutes. The entry
	// point fills them so core never imports handler packages.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer returns a Server with an empty router. Set the optional
// collaborators, then call MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("config must not be nil")
	case logger == nil:
		return nil, errors.New("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

func (s *Server) Handler() http.Handler { return s.router }

// Shutdown stops background work owned by the server. In-flight analyses
// are bounded by the request timeout and are not tracked here.
func (s *Server) Shutdown(ctx context.Context) error {
	if c, ok := s.RateLimitStore.(interface{ Close() }); ok {
		c.Close()
	}
	s.Logger.InfoContext(ctx, "server resources released")
	return nil
}

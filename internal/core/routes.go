package core

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"walkability/internal/types"
)

// defaultRequestTimeout bounds a request when ServerConfig.RequestTimeout is
// unset. It matches the REQUEST_TIMEOUT default.
const defaultRequestTimeout = 150 * time.Second

// Headers masked in request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Goog-Api-Key",
}

// MountRoutes installs the middleware chain, the /v1 group and /health.
// Call it once, after the registrars and collaborators are set.
func (s *Server) MountRoutes() {
	s.router.Use(s.middleware()...)
	s.router.Route("/v1", func(r chi.Router) {
		for _, register := range s.V1RouteRegistrars {
			register(r)
		}
	})
	s.router.Get("/health", s.HandleHealth)
}

// middleware returns the global chain, outermost first. Recoverer must stay
// first so it sees panics from every other layer; RequestID precedes
// everything that logs.
func (s *Server) middleware() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		s.Recoverer,
		ContextTimeoutMiddleware(s.requestTimeout()),
		RequestIDMiddleware,
		s.SecurityHeadersMiddleware,
		RequestLogger(s.Logger, defaultRedactedHeaders),
		NewCORSMiddleware(s.corsAllowedOrigins()),
		s.MetricsMiddleware,
		CompressionMiddleware,
		s.RateLimit,
	}
}

func (s *Server) requestTimeout() time.Duration {
	if d := s.Config.Server.RequestTimeout; d > 0 {
		return d
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if origins := s.Config.Server.CorsAllowedOrigins; len(origins) > 0 {
		return origins
	}
	return []string{"*"}
}

// rateLimitPerMinute is the per-client budget; zero disables limiting.
func (s *Server) rateLimitPerMinute() int {
	return s.Config.Server.RateLimitPerMinute
}

// ContextTimeoutMiddleware puts a deadline of d on the request context.
// Handlers decide what to write once it expires.
func ContextTimeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses an incoming X-Request-Id or mints a UUID, then
// echoes it on the response and stores it in the context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), id)))
	})
}

// CompressionMiddleware gzips responses for clients that accept it. Bodies
// under gzhttp's minimum size pass through.
func CompressionMiddleware(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

package core

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"walkability/internal/types"
)

// defaultRateLimitWindow is the fixed window used by the middleware. The
// per-client budget comes from ServerConfig.RateLimitPerMinute.
const defaultRateLimitWindow = time.Minute

// RateLimit enforces a per-client-IP request budget.
//
// If no RateLimitStore is configured or the budget is zero, the middleware
// passes through without rate limiting. Health checks are never limited.
//
// On every limited request (allowed or not), the middleware sets standard rate
// limit response headers:
//   - X-RateLimit-Limit: The maximum number of requests in the window.
//   - X-RateLimit-Remaining: The number of requests remaining.
//   - X-RateLimit-Reset: Unix timestamp when the window resets.
//
// When rate limited, the middleware also sets:
//   - Retry-After: Seconds until the rate limit window resets.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := s.rateLimitPerMinute()
		if s.RateLimitStore == nil || limit <= 0 || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := extractClientIP(r)

		result, err := s.RateLimitStore.IncrementAndCheck(
			r.Context(),
			clientIP,
			limit,
			defaultRateLimitWindow,
		)
		if err != nil {
			// On store errors, fail open: allow the request through but log
			// the error.
			s.Logger.Error("rate limit store error",
				slog.String("client_ip", clientIP),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, limit, result)

		if !result.Allowed {
			s.Logger.Warn("rate limit exceeded",
				slog.String("client_ip", clientIP),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			writeErrorEnvelope(w, r, http.StatusTooManyRequests, types.ErrCodeRateLimitExceeded,
				"Rate limit exceeded. Please retry after the reset time.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setRateLimitHeaders writes the standard X-RateLimit-* headers to the response.
func setRateLimitHeaders(w http.ResponseWriter, limit int, result RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// RateLimitStore counts requests per key. MemoryRateLimitStore is the only
// implementation; a shared store is needed once more than one instance runs.
type RateLimitStore interface {
	// IncrementAndCheck records one request for key and reports whether it
	// fits within limit for the current window.
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)
}

// RateLimitResult is the outcome of one IncrementAndCheck call.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// MemoryRateLimitStore is a fixed-window RateLimitStore held in process
// memory. Counters are per instance.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// NewMemoryRateLimitStore creates a store that sweeps expired windows every
// sweepInterval. A zero interval disables sweeping.
func NewMemoryRateLimitStore(sweepInterval time.Duration) *MemoryRateLimitStore {
	m := &MemoryRateLimitStore{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go m.sweepLoop(sweepInterval)
	}
	return m
}

// IncrementAndCheck implements RateLimitStore.
func (m *MemoryRateLimitStore) IncrementAndCheck(_ context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(window)}
		m.windows[key] = w
	}
	w.count++

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:   w.count <= limit,
		Remaining: remaining,
		ResetAt:   w.resetAt,
	}, nil
}

// Close stops the sweep goroutine. Safe to call more than once.
func (m *MemoryRateLimitStore) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *MemoryRateLimitStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *MemoryRateLimitStore) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
		}
	}
}

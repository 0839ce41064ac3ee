package core

import (
	"net"
	"net/http"
	"strings"
)

// securityHeaders are set on every response. Results are computed per
// request, so nothing may be cached.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "1; mode=block"},
	{"Cache-Control", "no-store"},
}

// SecurityHeadersMiddleware sets securityHeaders before the handler runs, so
// error and panic responses carry them too.
func (s *Server) SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientIP returns the first X-Forwarded-For entry when present,
// otherwise the host part of RemoteAddr.
func extractClientIP(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	if ip := strings.TrimSpace(first); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

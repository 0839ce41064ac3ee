package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the whole health check. Probes still running at
// the deadline are reported as timed out.
const healthCheckTimeout = 2 * time.Second

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthProbe is a dependency reported by GET /health. The entry point
// registers the vendor clients' circuit breakers (streetview, gemini).
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every probe concurrently and answers 200 when all of them
// pass, 503 otherwise.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: statusHealthy}
	if s.Config != nil {
		resp.Version = s.Config.Build.Version
	}

	code := http.StatusOK
	if len(s.HealthProbes) > 0 {
		resp.Components = checkProbes(ctx, s.HealthProbes)
		for _, c := range resp.Components {
			if c.Status != statusHealthy {
				resp.Status = statusUnhealthy
				code = http.StatusServiceUnavailable
				break
			}
		}
	}

	JSON(w, r, code, resp)
}

type probeOutcome struct {
	index int
	err   error
}

// checkProbes returns one status per probe name.
func checkProbes(ctx context.Context, probes []HealthProbe) map[string]componentStatus {
	// Buffered so probes finishing after the deadline never block.
	outcomes := make(chan probeOutcome, len(probes))
	for i, p := range probes {
		go func() {
			outcomes <- probeOutcome{index: i, err: safeCheck(ctx, p)}
		}()
	}

	out := make(map[string]componentStatus, len(probes))
	for pending := len(probes); pending > 0; pending-- {
		select {
		case o := <-outcomes:
			out[probes[o.index].Name()] = statusOf(o.err)
		case <-ctx.Done():
			for _, p := range probes {
				if _, done := out[p.Name()]; !done {
					out[p.Name()] = componentStatus{Status: statusUnhealthy, Message: "health check timed out"}
				}
			}
			return out
		}
	}
	return out
}

func safeCheck(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return p.Check(ctx)
}

func statusOf(err error) componentStatus {
	if err != nil {
		return componentStatus{Status: statusUnhealthy, Message: err.Error()}
	}
	return componentStatus{Status: statusHealthy}
}

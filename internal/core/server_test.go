package core

import (
	"context"
	"net/http"
	"testing"
	"time"

	"walkability/internal/config"
)

func TestNewServer_Success(t *testing.T) {
	cfg := &config.Config{Environment: "local"}
	logger := discardLogger()

	srv, err := NewServer(cfg, logger)
	if err != nil {
		t.Fatalf("NewServer returned unexpected error: %v", err)
	}
	if srv.Config != cfg {
		t.Error("Config field not set correctly")
	}
	if srv.Logger != logger {
		t.Error("Logger field not set correctly")
	}
	if srv.Validator == nil {
		t.Error("Validator should be initialized by constructor")
	}
	if srv.router == nil {
		t.Error("internal router should be initialized by constructor")
	}
	if srv.Handler() != http.Handler(srv.router) {
		t.Error("Handler should expose the internal router")
	}
}

func TestNewServer_NilArguments(t *testing.T) {
	if srv, err := NewServer(nil, discardLogger()); err == nil || srv != nil {
		t.Error("NewServer should reject a nil config")
	}
	if srv, err := NewServer(&config.Config{}, nil); err == nil || srv != nil {
		t.Error("NewServer should reject a nil logger")
	}
}

func TestServer_ShutdownClosesRateLimitStore(t *testing.T) {
	srv, _ := NewServer(&config.Config{}, discardLogger())
	store := NewMemoryRateLimitStore(time.Hour)
	srv.RateLimitStore = store

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	select {
	case <-store.stop:
	default:
		t.Error("rate limit store should be closed on shutdown")
	}

	// A second Close must not panic.
	store.Close()
}

func TestServer_ShutdownWithoutStore(t *testing.T) {
	srv, _ := NewServer(&config.Config{}, discardLogger())
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}

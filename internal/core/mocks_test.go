package core

import (
	"context"
	"sync"
	"time"
)

// MockRateLimitStore returns a fixed Result and Err and records its calls.
type MockRateLimitStore struct {
	Result RateLimitResult
	Err    error

	mu    sync.Mutex
	Calls []RateLimitCall
}

type RateLimitCall struct {
	Key    string
	Limit  int
	Window time.Duration
}

func (m *MockRateLimitStore) IncrementAndCheck(_ context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, RateLimitCall{Key: key, Limit: limit, Window: window})
	return m.Result, m.Err
}

// MockMetricsCollector records every RecordRequest call.
type MockMetricsCollector struct {
	mu    sync.Mutex
	calls []RecordedRequest
}

type RecordedRequest struct {
	Method   string
	Endpoint string
	Status   string
	Duration time.Duration
}

func (m *MockMetricsCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, RecordedRequest{Method: method, Endpoint: endpoint, Status: status, Duration: duration})
}

func (m *MockMetricsCollector) Recorded() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.calls...)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"walkability/internal/config"
	"walkability/internal/core"
	"walkability/internal/types"
)

var segmentRef = regexp.MustCompile(`seg_\d{3}`)

// newFakeVendors serves the Street View metadata and image endpoints and the
// Gemini generateContent endpoint. Gemini scores every segment it is shown.
func newFakeVendors(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/maps/api/streetview/metadata", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "sv-test-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		loc := r.URL.Query().Get("location")
		var lat, lng float64
		_, _ = fmt.Sscanf(loc, "%f,%f", &lat, &lng)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"OK","pano_id":%q,"date":"2023-05","location":{"lat":%f,"lng":%f}}`, "pano@"+loc, lat, lng)
	})

	mux.HandleFunc("/maps/api/streetview", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("\xff\xd8\xff\xe0fake-jpeg"))
	})

	mux.HandleFunc("/v1beta/models/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "gm-test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		raw, _ := io.ReadAll(r.Body)

		var scores []string
		seen := map[string]bool{}
		for _, id := range segmentRef.FindAllString(string(raw), -1) {
			// The prompt's reply template names seg_001 even when it was not sent.
			if seen[id] || !strings.Contains(string(raw), "- "+id+" (") {
				continue
			}
			seen[id] = true
			scores = append(scores, fmt.Sprintf(`{"segmentId":%q,"accessibility":62,"sidewalk":35,"lighting":55,"crossing":88,"obstruction":30,"traffic":70,"wayfinding":80}`, id))
		}
		text, _ := json.Marshal("[" + strings.Join(scores, ",") + "]")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":%s}]},"finishReason":"STOP"}]}`, text)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// setTestEnv sets the environment variables required by config.LoadConfig
// and points both vendors at baseURL.
func setTestEnv(t *testing.T, baseURL string) {
	t.Helper()

	t.Setenv("APP_ENV", "local")
	t.Setenv("PORT", "8080")
	t.Setenv("STREETVIEW_API_KEY", "sv-test-key")
	t.Setenv("STREETVIEW_BASE_URL", baseURL)
	t.Setenv("GEMINI_API_KEY", "gm-test-key")
	t.Setenv("GEMINI_BASE_URL", baseURL)
	t.Setenv("GEMINI_MODEL", "gemini-1.5-flash")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("EVENTS_QUEUE_URL", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "2")
}

func buildTestServer(t *testing.T) *core.Server {
	t.Helper()
	vendors := newFakeVendors(t)
	setTestEnv(t, vendors.URL)

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := buildServer(t.Context(), cfg, logger)
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(t.Context()) })
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	srv := buildTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health: got status %d; body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status     string                       `json:"status"`
		Components map[string]map[string]string `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	for _, name := range []string{"streetview", "gemini"} {
		if resp.Components[name]["status"] != "healthy" {
			t.Errorf("component %s = %v", name, resp.Components[name])
		}
	}
}

const analyzeBody = `{
  "origin": {"lat": -6.1950, "lng": 106.8230, "label": "Bundaran HI"},
  "destination": {"lat": -6.1754, "lng": 106.8272, "label": "Monas"},
  "route": {
    "coordinates": [{"lat": -6.1950, "lng": 106.8230}, {"lat": -6.1754, "lng": 106.8272}],
    "distanceMeters": 2400,
    "durationSeconds": 1800
  }
}`

func TestAnalyzeEndToEnd(t *testing.T) {
	srv := buildTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/routes/analyze", strings.NewReader(analyzeBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /v1/routes/analyze: got status %d; body: %s", rec.Code, rec.Body.String())
	}

	var res types.AnalyzeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if res.Status != types.ResultOK || res.Summary == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Summary.CoveragePercent != 100 {
		t.Errorf("coveragePercent = %d, want 100", res.Summary.CoveragePercent)
	}
	if len(res.Cards) == 0 {
		t.Error("expected at least one card")
	}
	if res.Meta.Model != "gemini-1.5-flash" || res.Meta.Fingerprint == "" {
		t.Errorf("meta = %+v", res.Meta)
	}
	if rec.Header().Get("X-Run-Id") != res.Meta.RunID {
		t.Error("X-Run-Id header should carry the run id")
	}
}

func TestAnalyzeRejectsInvalidRoute(t *testing.T) {
	srv := buildTestServer(t)

	body := strings.Replace(analyzeBody, `, {"lat": -6.1754, "lng": 106.8272}]`, `]`, 1)
	req := httptest.NewRequest(http.MethodPost, "/v1/routes/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400; body: %s", rec.Code, rec.Body.String())
	}
	var res types.AnalyzeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if res.Code != types.ErrCodeBadRequest || res.Meta.RunID == "" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRateLimitApplied(t *testing.T) {
	srv := buildTestServer(t)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/routes/analyze", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request: got status %d, want 429", last)
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "unknown"} {
		t.Run(level, func(t *testing.T) {
			if newLogger(level) == nil {
				t.Fatalf("newLogger(%q) returned nil", level)
			}
		})
	}
}

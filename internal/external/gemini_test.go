package external

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"walkability/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGeminiClient(t *testing.T, serverURL string) *GeminiClient {
	t.Helper()
	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-gemini",
		"Walkability-Test/1.0",
	)
	return NewGeminiClientWithBase(base, GeminiConfig{
		APIKey:  "test_gemini_key",
		BaseURL: serverURL,
		Model:   "gemini-test",
	})
}

func TestGeminiGenerate_RequestShape(t *testing.T) {
	var (
		gotPath string
		gotKey  string
		gotBody map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"[{\"segmentId\":"},{"text":"\"seg_001\"}]"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	client := newTestGeminiClient(t, server.URL)
	text, err := client.Generate(context.Background(), Prompt{
		Parts: []Part{
			TextPart("score these"),
			InlinePart("image/jpeg", "AAEC"),
		},
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, `[{"segmentId":"seg_001"}]`, text)
	assert.Equal(t, "gemini-test", client.Name())
	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", gotPath)
	assert.Equal(t, "test_gemini_key", gotKey)

	cfg := gotBody["generationConfig"].(map[string]any)
	assert.InDelta(t, 0.2, cfg["temperature"], 1e-9)

	contents := gotBody["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "score these", parts[0].(map[string]any)["text"])

	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	assert.Equal(t, "image/jpeg", inline["mime_type"])
	assert.Equal(t, "AAEC", inline["data"])
}

func TestGeminiGenerate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode types.ErrorCode
	}{
		{"no candidates", http.StatusOK, `{"candidates":[]}`, types.ErrCodeUpstreamBadResponse},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, types.ErrCodeUpstreamBadResponse},
		{"empty text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"  "}]},"finishReason":"MAX_TOKENS"}]}`, types.ErrCodeUpstreamBadResponse},
		{"malformed", http.StatusOK, `{`, types.ErrCodeUpstreamBadResponse},
		{"bad request", http.StatusBadRequest, `{"error":{}}`, types.ErrCodeUpstreamBadResponse},
		{"forbidden", http.StatusForbidden, `{"error":{}}`, types.ErrCodeUpstreamUnavailable},
		{"rate limited", http.StatusTooManyRequests, ``, types.ErrCodeUpstreamRateLimited},
		{"server error", http.StatusInternalServerError, ``, types.ErrCodeUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestGeminiClient(t, server.URL).Generate(context.Background(), Prompt{Parts: []Part{TextPart("x")}})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, types.CodeOf(err))
		})
	}
}

func TestGeminiGenerate_DefaultsModel(t *testing.T) {
	c := NewGeminiClient(http.DefaultClient, GeminiConfig{})
	assert.Equal(t, defaultGeminiModel, c.Name())
}

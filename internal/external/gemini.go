package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"walkability/internal/types"
)

const (
	geminiAPIBase      = "https://generativelanguage.googleapis.com"
	defaultGeminiModel = "gemini-1.5-flash"
)

// GeminiConfig holds the configuration for a GeminiClient.
type GeminiConfig struct {
	APIKey  types.SecretString
	BaseURL string // Override for testing; defaults to geminiAPIBase
	Model   string
	Logger  *slog.Logger
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GeminiClient implements GenerativeModel over the Gemini generateContent
// REST endpoint.
type GeminiClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	model   string
	baseURL string
	logger  *slog.Logger
}

// NewGeminiClient creates a GeminiClient. The overall deadline is taken from
// the caller's context.
func NewGeminiClient(httpClient *http.Client, cfg GeminiConfig) *GeminiClient {
	base := NewBaseClient(httpClient, "gemini", "Walkability/1.0")
	return NewGeminiClientWithBase(base, cfg)
}

// NewGeminiClientWithBase creates a GeminiClient around a pre-configured
// BaseClient.
func NewGeminiClientWithBase(base *BaseClient, cfg GeminiConfig) *GeminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiAPIBase
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GeminiClient{
		base:    base,
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Transport returns the underlying BaseClient, used as a health probe.
func (c *GeminiClient) Transport() *BaseClient {
	return c.base
}

// Name returns the configured model identifier.
func (c *GeminiClient) Name() string {
	return c.model
}

// Generate sends prompt as a single user turn and returns the text of the
// first candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt Prompt) (string, error) {
	parts := make([]geminiPart, 0, len(prompt.Parts))
	images := 0
	for _, p := range prompt.Parts {
		if p.Data != "" {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: p.MimeType, Data: p.Data}})
			images++
			continue
		}
		parts = append(parts, geminiPart{Text: p.Text})
	}

	bodyBytes, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{Temperature: prompt.Temperature},
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to serialize Gemini request", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create Gemini request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey.Unmask())

	c.logger.InfoContext(ctx, "calling Gemini",
		"model", c.model,
		"parts", len(parts),
		"images", images,
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", wrapError("Gemini", "Generate", err, types.ErrCodeUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", c.handleErrorResponse(ctx, resp)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamBadResponse, "failed to decode Gemini response", err)
	}

	if out.PromptFeedback.BlockReason != "" {
		return "", types.NewAppError(
			types.ErrCodeUpstreamBadResponse,
			"Gemini blocked the prompt",
			fmt.Errorf("block reason %s", out.PromptFeedback.BlockReason),
		)
	}
	if len(out.Candidates) == 0 {
		return "", types.NewAppError(types.ErrCodeUpstreamBadResponse, "Gemini returned no candidates", nil)
	}

	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", types.NewAppError(
			types.ErrCodeUpstreamBadResponse,
			"Gemini returned empty output",
			fmt.Errorf("finish reason %s", out.Candidates[0].FinishReason),
		)
	}

	return text, nil
}

func (c *GeminiClient) handleErrorResponse(ctx context.Context, resp *http.Response) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	bodyStr := string(bodyBytes)

	c.logger.ErrorContext(ctx, "Gemini API error",
		"status_code", resp.StatusCode,
		"response_body", bodyStr,
	)

	cause := fmt.Errorf("Gemini generateContent returned %d: %s", resp.StatusCode, bodyStr)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "Gemini authentication failed", cause)
	case http.StatusNotFound:
		return types.NewAppError(types.ErrCodeUpstreamNotFound, "Gemini model not found", cause)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamBadResponse,
			fmt.Sprintf("Gemini client error (%d)", resp.StatusCode),
			cause,
		)
	}
}

var _ GenerativeModel = (*GeminiClient)(nil)

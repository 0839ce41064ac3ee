// Package handlers contains the HTTP handler implementations for the
// walkability API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"walkability/internal/analysis"
	"walkability/internal/core"
	"walkability/internal/types"
)

// defaultMaxBodyBytes caps request bodies when no limit is configured.
const defaultMaxBodyBytes = 1 << 20

// Analyzer runs the walkability pipeline. Defined locally so tests can inject
// a fake without wiring vendor clients.
type Analyzer interface {
	Analyze(ctx context.Context, req types.AnalyzeRequest) types.AnalyzeResult
}

// AnalyzeHandler maps POST /v1/routes/analyze onto the pipeline. Every
// response body is a types.AnalyzeResult, including rejected requests.
type AnalyzeHandler struct {
	analyzer     Analyzer
	validator    *core.Validator
	logger       *slog.Logger
	maxBodyBytes int64
	now          func() time.Time
}

// NewAnalyzeHandler creates an AnalyzeHandler. A non-positive maxBodyBytes
// falls back to 1 MB.
func NewAnalyzeHandler(a Analyzer, val *core.Validator, maxBodyBytes int64, logger *slog.Logger) *AnalyzeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &AnalyzeHandler{
		analyzer:     a,
		validator:    val,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
		now:          time.Now,
	}
}

// RegisterRoutes mounts the analysis endpoints onto the /v1 router.
func (h *AnalyzeHandler) RegisterRoutes(r chi.Router) {
	r.Post("/routes/analyze", h.HandleAnalyze)
}

// HandleAnalyze handles POST /v1/routes/analyze.
//  1. Decode the body strictly (unknown fields rejected).
//  2. Validate; failures become a BAD_REQUEST result with a fresh run id.
//  3. Default the copy language from Accept-Language.
//  4. Run the pipeline and map the result code to the HTTP status.
func (h *AnalyzeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req types.AnalyzeRequest
	if err := core.DecodeJSONWithLimit(w, r, &req, h.maxBodyBytes); err != nil {
		h.reject(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		if types.CodeOf(err) == types.ErrCodeInternal {
			core.Error(w, r, err)
			return
		}
		h.reject(w, r, err)
		return
	}

	if req.Language == "" {
		req.Language = r.Header.Get("Accept-Language")
	}

	result := h.analyzer.Analyze(r.Context(), req)

	w.Header().Set("X-Run-Id", result.Meta.RunID)
	core.JSON(w, r, result.HTTPStatus(), result)
}

func (h *AnalyzeHandler) reject(w http.ResponseWriter, r *http.Request, err error) {
	result := analysis.Rejected(err, h.now())
	h.logger.WarnContext(r.Context(), "analyze request rejected",
		"run_id", result.Meta.RunID,
		"request_id", types.GetRequestID(r.Context()),
		"error", err.Error(),
	)
	w.Header().Set("X-Run-Id", result.Meta.RunID)
	core.JSON(w, r, result.HTTPStatus(), result)
}

package types

import "time"

// AnalysisCard is one user-facing insight derived from a category's average
// score. Cards are never persisted.
type AnalysisCard struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tone        Tone     `json:"tone"`
	Score       int      `json:"score"`
	Confidence  float64  `json:"confidence"`
}

// Summary is the overall route grade.
type Summary struct {
	Label           SummaryLabel  `json:"label"`
	Score           int           `json:"score"`
	Confidence      float64       `json:"confidence"`
	CoveragePercent int           `json:"coveragePercent"`
	RecencyBucket   RecencyBucket `json:"recencyBucket"`
}

// Notice is a soft data-quality warning attached to a successful result.
type Notice struct {
	Code     NoticeCode `json:"code"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
}

// ResultMeta is carried by every result. Model, ElapsedMs and Fingerprint are
// only populated on success; ElapsedMs is a pointer so a 0 ms run still
// reports it.
type ResultMeta struct {
	RunID       string `json:"runId"`
	Version     string `json:"version"`
	Model       string `json:"model,omitempty"`
	ElapsedMs   *int64 `json:"elapsedMs,omitempty"`
	Fingerprint string `json:"inputFingerprint,omitempty"`
}

// AnalyzeResult is the tagged result of one pipeline run. When Status is
// ResultOK, Summary and Cards are set; when it is ResultError, Code and
// Message are set.
type AnalyzeResult struct {
	Status  ResultStatus   `json:"status"`
	Summary *Summary       `json:"summary,omitempty"`
	Cards   []AnalysisCard `json:"cards,omitempty"`
	Notices []Notice       `json:"notices,omitempty"`
	Code    ErrorCode      `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Meta    ResultMeta     `json:"meta"`
}

// OKResult builds a successful result.
func OKResult(summary Summary, cards []AnalysisCard, notices []Notice, meta ResultMeta) AnalyzeResult {
	return AnalyzeResult{
		Status:  ResultOK,
		Summary: &summary,
		Cards:   cards,
		Notices: notices,
		Meta:    meta,
	}
}

// ErrorResult builds a failed result. Non-public codes collapse to INTERNAL so
// vendor detail never leaks to callers.
func ErrorResult(code ErrorCode, message string, meta ResultMeta) AnalyzeResult {
	if !code.IsPublic() {
		code = ErrCodeInternal
	}
	return AnalyzeResult{
		Status:  ResultError,
		Code:    code,
		Message: message,
		Meta:    meta,
	}
}

// IsOK reports whether the result is the success variant.
func (r AnalyzeResult) IsOK() bool {
	return r.Status == ResultOK
}

// HTTPStatus maps the result to the status an HTTP collaborator should use.
func (r AnalyzeResult) HTTPStatus() int {
	if r.IsOK() {
		return 200
	}
	return r.Code.HTTPStatus()
}

// RunReport summarizes a finished run for observers (metrics, events). It is
// never returned to callers.
type RunReport struct {
	Result          AnalyzeResult
	Fingerprint     string
	Waypoints       int
	CoveragePercent int // -1 when the run ended before probing finished
	Elapsed         time.Duration
}

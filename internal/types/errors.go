package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Public result codes. These are the only codes that ever appear in an
// AnalyzeResult; the taxonomy is exhaustive.
const (
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeNoImagery         ErrorCode = "NO_IMAGERY"
	ErrCodeProviderRateLimit ErrorCode = "PROVIDER_RATE_LIMIT"
	ErrCodeModelFailure      ErrorCode = "MODEL_FAILURE"
	ErrCodeInternal          ErrorCode = "INTERNAL"
)

// Vendor-layer codes. Produced by internal/external and translated into one of
// the public codes by the pipeline before they reach a caller.
const (
	ErrCodeValidationInvalidJSON ErrorCode = "validation_invalid_json"
	ErrCodeValidationRequest     ErrorCode = "validation_invalid_request"

	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamBadResponse ErrorCode = "upstream_bad_response"
	ErrCodeUpstreamNotFound    ErrorCode = "upstream_not_found"
)

// ErrCodeRateLimitExceeded is returned by the HTTP layer when a client exceeds
// its request budget. It never appears in an AnalyzeResult.
const ErrCodeRateLimitExceeded ErrorCode = "rate_limit_exceeded"

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case c == ErrCodeBadRequest, strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case c == ErrCodeNoImagery, c == ErrCodeUpstreamNotFound:
		return http.StatusNotFound // 404
	case c == ErrCodeProviderRateLimit, c == ErrCodeUpstreamRateLimited, c == ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests // 429
	case c == ErrCodeModelFailure:
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// IsPublic reports whether the code belongs to the result taxonomy exposed to
// callers.
func (c ErrorCode) IsPublic() bool {
	switch c {
	case ErrCodeBadRequest, ErrCodeNoImagery, ErrCodeProviderRateLimit, ErrCodeModelFailure, ErrCodeInternal:
		return true
	}
	return false
}

// AppError is the standard application error type used throughout the service.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf extracts the ErrorCode from the first AppError in err's chain.
// Returns the empty code when err carries no AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsRateLimited reports whether err signals an upstream rate limit.
func IsRateLimited(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeUpstreamRateLimited || code == ErrCodeProviderRateLimit
}

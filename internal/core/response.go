package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"walkability/internal/types"
)

// maxRequestBodySize is the default maximum size of a request body (1 MB).
const maxRequestBodySize = 1 << 20

// APIErrorResponse is the envelope for chassis-level errors (rate limiting,
// panics, unknown routes). Pipeline results use types.AnalyzeResult instead.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned to clients.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes data with the given status. A value that cannot be marshalled
// becomes a 500 INTERNAL envelope instead.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		writeErrorEnvelope(w, r, http.StatusInternalServerError, types.ErrCodeInternal, "failed to marshal response")
		return
	}
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeErrorEnvelope writes a chassis-level error. The envelope holds only
// strings, so marshalling cannot fail and it is safe to call while recovering
// from a panic.
func writeErrorEnvelope(w http.ResponseWriter, r *http.Request, status int, code types.ErrorCode, message string) {
	body, _ := json.Marshal(APIErrorResponse{Error: ErrorDetail{
		Code:      string(code),
		Message:   message,
		RequestID: types.GetRequestID(r.Context()),
	}})
	writeBody(w, status, body)
}

// Error writes err as an APIErrorResponse. An *types.AppError anywhere in the
// chain supplies the code, message and details; anything else is masked as
// INTERNAL so wrapped causes never reach the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		writeErrorEnvelope(w, r, http.StatusInternalServerError, types.ErrCodeInternal, "an unexpected error occurred")
		return
	}

	JSON(w, r, appErr.HTTPStatus(), APIErrorResponse{Error: ErrorDetail{
		Code:      string(appErr.Code),
		Message:   appErr.Message,
		Details:   appErr.Details,
		RequestID: types.GetRequestID(r.Context()),
	}})
}

// DecodeJSON reads the request body into dst with the default 1 MB limit.
// See DecodeJSONWithLimit.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return DecodeJSONWithLimit(w, r, dst, maxRequestBodySize)
}

// DecodeJSONWithLimit reads the request body into dst, enforcing:
//   - A maximum body size of limit bytes.
//   - DisallowUnknownFields to enforce strict JSON contracts.
//
// It returns a *types.AppError with code "validation_invalid_json" (400) on
// syntax errors, unknown fields, type mismatches, an oversized or empty body,
// and bodies holding more than one JSON value.
func DecodeJSONWithLimit(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}

	if dec.More() {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"request body must contain a single JSON object",
			nil,
		)
	}

	return nil
}

// mapDecodeError translates a json.Decoder error into a structured AppError.
func mapDecodeError(err error) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			fmt.Sprintf("request body must not exceed %d bytes", maxBytesErr.Limit),
			err,
		)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"malformed JSON in request body",
			err,
		)
	}

	var unmarshalTypeErr *json.UnmarshalTypeError
	if errors.As(err, &unmarshalTypeErr) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidJSON,
			"invalid value for field",
			err,
			map[string]any{
				"field":    unmarshalTypeErr.Field,
				"expected": unmarshalTypeErr.Type.String(),
			},
		)
	}

	if strings.HasPrefix(err.Error(), "json: unknown field") {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "),
			err,
		)
	}

	if errors.Is(err, io.EOF) {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"request body must not be empty",
			err,
		)
	}

	return types.NewAppError(
		types.ErrCodeValidationInvalidJSON,
		"invalid JSON in request body",
		err,
	)
}

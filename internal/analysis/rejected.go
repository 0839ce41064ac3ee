package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"walkability/internal/types"
)

// Rejected builds the BAD_REQUEST result for a request that failed decoding
// or validation before the pipeline ran. Field reasons from the validator
// are folded into the message in path order.
func Rejected(err error, now time.Time) types.AnalyzeResult {
	meta := types.ResultMeta{RunID: NewRunID(now), Version: Version}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return types.ErrorResult(types.ErrCodeBadRequest, "invalid request", meta)
	}

	fields, _ := appErr.Details["fields"].(map[string]any)
	if len(fields) == 0 {
		return types.ErrorResult(types.ErrCodeBadRequest, appErr.Message, meta)
	}

	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = fmt.Sprintf("%s %v", p, fields[p])
	}
	return types.ErrorResult(types.ErrCodeBadRequest, "invalid request: "+strings.Join(parts, "; "), meta)
}

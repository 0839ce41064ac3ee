// Package main is the AWS Lambda entry point for the walkability analyzer.
//
// The function receives an AnalyzeRequest event and returns the
// AnalyzeResult. Pipeline failures are part of the result, so the handler only
// returns an error when the result cannot be produced at all.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"walkability/internal/analysis"
	"walkability/internal/app"
	"walkability/internal/config"
	"walkability/internal/core"
	"walkability/internal/types"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Analyzer Lambda initializing (cold start)")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	validator := core.NewValidator(logger)
	components, err := app.Build(context.Background(), cfg, validator.Engine(), logger)
	if err != nil {
		logger.Error("Failed to assemble pipeline", "error", err)
		os.Exit(1)
	}

	handler := newHandler(components.Analyzer, validator, logger)

	// Local mode: read one JSON event from stdin instead of starting the
	// Lambda runtime.
	// Usage: go run ./cmd/analyzer < route.json
	if cfg.Environment == "local" {
		if err := runLocal(context.Background(), handler, os.Stdin, os.Stdout); err != nil {
			logger.Error("Local invocation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler)
}

// eventHandler is the Lambda handler signature.
type eventHandler func(ctx context.Context, req types.AnalyzeRequest) (types.AnalyzeResult, error)

// analyzer is the subset of *analysis.Analyzer the handler needs.
type analyzer interface {
	Analyze(ctx context.Context, req types.AnalyzeRequest) types.AnalyzeResult
}

// newHandler validates the event and runs the pipeline. Invalid events get a
// BAD_REQUEST result rather than an invocation error, so callers see the same
// contract as the HTTP API.
func newHandler(a analyzer, v *core.Validator, logger *slog.Logger) eventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req types.AnalyzeRequest) (types.AnalyzeResult, error) {
		if err := v.ValidateStruct(req); err != nil {
			if types.CodeOf(err) == types.ErrCodeInternal {
				return types.AnalyzeResult{}, fmt.Errorf("validating event: %w", err)
			}
			result := analysis.Rejected(err, time.Now())
			logger.WarnContext(ctx, "analyze event rejected",
				"run_id", result.Meta.RunID,
				"error", err.Error(),
			)
			return result, nil
		}

		return a.Analyze(ctx, req), nil
	}
}

// runLocal decodes one event from r, invokes h and writes the result to w.
func runLocal(ctx context.Context, h eventHandler, r io.Reader, w io.Writer) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading event: %w", err)
	}
	if len(payload) == 0 {
		return fmt.Errorf("no input received on stdin")
	}

	var req types.AnalyzeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decoding event: %w", err)
	}

	result, err := h(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

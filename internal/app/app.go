// Package app assembles the walkability pipeline and its observers from
// configuration. Both the HTTP server and the Lambda entry point build their
// dependencies here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-playground/validator/v10"

	"walkability/internal/analysis"
	"walkability/internal/config"
	"walkability/internal/external"
	"walkability/internal/queue"
	"walkability/internal/telemetry"
)

// vendorHTTPTimeout bounds a single vendor round trip. Stage deadlines from
// the pipeline are usually shorter.
const vendorHTTPTimeout = 90 * time.Second

// RequestMetrics records API request telemetry.
type RequestMetrics interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Components is the assembled dependency graph.
type Components struct {
	Analyzer *analysis.Analyzer
	Metrics  RequestMetrics

	// Transports are the vendor clients' breakers, exposed for health checks.
	Transports []*external.BaseClient
}

// Build wires the vendor clients, the analyzer and the configured observers.
// AWS clients are only created when metrics or events are enabled. validate
// may be nil.
func Build(ctx context.Context, cfg *config.Config, validate *validator.Validate, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{Timeout: vendorHTTPTimeout}
	streetView := external.NewStreetViewClient(httpClient, cfg.Imagery.StreetView(logger))
	gemini := external.NewGeminiClient(httpClient, cfg.Model.Gemini(logger))

	opts := []analysis.Option{analysis.WithLogger(logger)}
	if validate != nil {
		opts = append(opts, analysis.WithValidator(validate))
	}

	var metrics RequestMetrics = telemetry.Noop{}
	if cfg.Observability.NeedsAWS() {
		awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		endpoint := cfg.AWS.EndpointURL

		if cfg.Observability.MetricsEnabled {
			cw := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
				if endpoint != "" {
					o.BaseEndpoint = aws.String(endpoint)
				}
			})
			recorder := telemetry.NewRecorder(cw, cfg.Observability.MetricNamespace, logger)
			metrics = recorder
			opts = append(opts, analysis.WithObserver(recorder))
		}

		if cfg.Observability.EventsQueueURL != "" {
			sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
				if endpoint != "" {
					o.BaseEndpoint = aws.String(endpoint)
				}
			})
			opts = append(opts, analysis.WithObserver(queue.NewPublisher(sqsClient, cfg.Observability.EventsQueueURL, logger)))
		}
	}

	analyzer := analysis.NewAnalyzer(streetView, gemini, cfg.Pipeline.Settings(), opts...)

	logger.Info("analysis pipeline assembled",
		"model", gemini.Name(),
		"metrics_enabled", cfg.Observability.MetricsEnabled,
		"events_enabled", cfg.Observability.EventsQueueURL != "",
	)

	return &Components{
		Analyzer:   analyzer,
		Metrics:    metrics,
		Transports: []*external.BaseClient{streetView.Transport(), gemini.Transport()},
	}, nil
}

func loadAWSConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	return awsCfg, nil
}

// Package telemetry publishes analysis and API metrics to CloudWatch.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"walkability/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// OutcomeOK is the Outcome dimension value for successful runs. Failed runs
// use their public error code.
const OutcomeOK = "ok"

const defaultPutTimeout = 2 * time.Second

// Recorder emits metrics to CloudWatch. It observes pipeline runs and
// records API request metrics for the HTTP middleware.
//
// Metrics emitted:
//   - AnalysisOutcome: Dims {Outcome} -- one per run
//   - AnalysisLatency: Dims {Outcome} -- run duration in milliseconds
//   - RouteCoverage: No dims -- only when probing finished
//   - APIRequestCount / APILatency: Dims {Method, Endpoint, Status}
//
// Publish failures are logged and swallowed.
type Recorder struct {
	client     CloudWatchClient
	namespace  string
	putTimeout time.Duration
	logger     *slog.Logger
}

// NewRecorder creates a Recorder. An empty namespace falls back to
// types.MetricNamespace.
func NewRecorder(client CloudWatchClient, namespace string, logger *slog.Logger) *Recorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		client:     client,
		namespace:  namespace,
		putTimeout: defaultPutTimeout,
		logger:     logger,
	}
}

// Outcome returns the Outcome dimension value for a result.
func Outcome(r types.AnalyzeResult) string {
	if r.IsOK() {
		return OutcomeOK
	}
	return string(r.Code)
}

// ObserveRun records the outcome, latency and coverage of one run.
func (r *Recorder) ObserveRun(ctx context.Context, report types.RunReport) {
	outcome := Outcome(report.Result)
	outcomeDim := []cwtypes.Dimension{
		{Name: aws.String(types.DimOutcome), Value: aws.String(outcome)},
	}

	data := []cwtypes.MetricDatum{
		{
			MetricName: aws.String(types.MetricAnalysisOutcome),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: outcomeDim,
		},
		{
			MetricName: aws.String(types.MetricAnalysisLatency),
			Value:      aws.Float64(float64(report.Elapsed.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: outcomeDim,
		},
	}
	if report.CoveragePercent >= 0 {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricRouteCoverage),
			Value:      aws.Float64(float64(report.CoveragePercent)),
			Unit:       cwtypes.StandardUnitPercent,
		})
	}

	r.put(ctx, data, "outcome", outcome)
}

// RecordRequest records API request count and latency.
func (r *Recorder) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(types.DimMethod), Value: aws.String(method)},
		{Name: aws.String(types.DimEndpoint), Value: aws.String(endpoint)},
		{Name: aws.String(types.DimStatus), Value: aws.String(status)},
	}
	data := []cwtypes.MetricDatum{
		{
			MetricName: aws.String(types.MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	}

	r.put(context.Background(), data, "endpoint", endpoint, "status", status)
}

func (r *Recorder) put(ctx context.Context, data []cwtypes.MetricDatum, logAttrs ...any) {
	ctx, cancel := context.WithTimeout(ctx, r.putTimeout)
	defer cancel()

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(r.namespace),
		MetricData: data,
	}
	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.ErrorContext(ctx, "failed to put metric data",
			append([]any{"error", err.Error(), "metrics", len(data)}, logAttrs...)...,
		)
	}
}

// Noop discards every metric. Used when metrics are disabled.
type Noop struct{}

func (Noop) ObserveRun(context.Context, types.RunReport) {}
func (Noop) RecordRequest(_, _, _ string, _ time.Duration) {}

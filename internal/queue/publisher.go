// Package queue publishes analysis lifecycle events to SQS for downstream
// consumers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"walkability/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// EventAnalysisCompleted is the event type attribute of AnalysisCompletedEvent.
const EventAnalysisCompleted = "analysis.completed"

// AnalysisCompletedEvent is a compact record of one finished run. It carries
// no coordinates or labels.
type AnalysisCompletedEvent struct {
	EventID         string             `json:"eventId"`
	OccurredAt      time.Time          `json:"occurredAt"`
	RunID           string             `json:"runId"`
	Fingerprint     string             `json:"fingerprint"`
	Status          types.ResultStatus `json:"status"`
	Code            types.ErrorCode    `json:"code,omitempty"`
	Score           *int               `json:"score,omitempty"`
	Label           types.SummaryLabel `json:"label,omitempty"`
	CoveragePercent *int               `json:"coveragePercent,omitempty"`
	Waypoints       int                `json:"waypoints"`
	ElapsedMs       int64              `json:"elapsedMs"`
}

// NewAnalysisCompletedEvent builds the event for a run report.
func NewAnalysisCompletedEvent(report types.RunReport, now time.Time) AnalysisCompletedEvent {
	res := report.Result
	evt := AnalysisCompletedEvent{
		EventID:     uuid.New().String(),
		OccurredAt:  now.UTC(),
		RunID:       res.Meta.RunID,
		Fingerprint: report.Fingerprint,
		Status:      res.Status,
		Code:        res.Code,
		Waypoints:   report.Waypoints,
		ElapsedMs:   report.Elapsed.Milliseconds(),
	}
	if res.Summary != nil {
		score := res.Summary.Score
		evt.Score = &score
		evt.Label = res.Summary.Label
	}
	if report.CoveragePercent >= 0 {
		coverage := report.CoveragePercent
		evt.CoveragePercent = &coverage
	}
	return evt
}

// publishTimeout bounds one SendMessage call made from ObserveRun.
const publishTimeout = 2 * time.Second

// Publisher sends an AnalysisCompletedEvent to SQS after every run.
type Publisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
	now      func() time.Time
	timeout  time.Duration
}

// NewPublisher creates a Publisher for the given queue.
func NewPublisher(client SQSSender, queueURL string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      time.Now,
		timeout:  publishTimeout,
	}
}

// ObserveRun publishes the completed event. Failures are logged and never
// reach the analysis result.
func (p *Publisher) ObserveRun(ctx context.Context, report types.RunReport) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	evt := NewAnalysisCompletedEvent(report, p.now())
	if err := p.Publish(ctx, evt); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish analysis event",
			"error", err.Error(),
			"run_id", evt.RunID,
			"event_id", evt.EventID,
		)
	}
}

// Publish serializes the event and sends it to the configured queue.
func (p *Publisher) Publish(ctx context.Context, evt AnalysisCompletedEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal AnalysisCompletedEvent: %w", err)
	}

	attrs := map[string]sqsTypes.MessageAttributeValue{
		"eventType": {
			DataType:    aws.String("String"),
			StringValue: aws.String(EventAnalysisCompleted),
		},
		"status": {
			DataType:    aws.String("String"),
			StringValue: aws.String(string(evt.Status)),
		},
	}
	if evt.Code != "" {
		attrs["code"] = sqsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(string(evt.Code)),
		}
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send AnalysisCompletedEvent to %s: %w", p.queueURL, err)
	}

	p.logger.DebugContext(ctx, "analysis event sent",
		"queue_url", p.queueURL,
		"event_id", evt.EventID,
		"run_id", evt.RunID,
		"status", string(evt.Status),
	)
	return nil
}

// Package external is the anti-corruption layer between the analysis pipeline
// and third-party vendor APIs (Street View imagery, Gemini). All outbound HTTP
// calls go through BaseClient, which adds circuit breaking, trace propagation
// and error mapping to types.AppError.
package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"walkability/internal/types"

	"github.com/sony/gobreaker/v2"
)

// BaseClient sends vendor requests through a named circuit breaker. Each
// request is attempted once: the pipeline degrades on a failed probe, image
// or model call instead of retrying it.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// BaseClientOption customizes a BaseClient.
type BaseClientOption func(*BaseClient)

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) BaseClientOption {
	return func(c *BaseClient) {
		c.breaker = cb
	}
}

// NewBreaker trips after more than five consecutive failures and probes again
// after 30s. A caller cancelling its context is not a vendor failure.
func NewBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

func NewBaseClient(httpClient *http.Client, breakerName, userAgent string, opts ...BaseClientOption) *BaseClient {
	bc := &BaseClient{
		client:    httpClient,
		breaker:   NewBreaker(breakerName),
		userAgent: userAgent,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// Name returns the breaker name; with Check it makes a BaseClient a health
// probe.
func (c *BaseClient) Name() string {
	return c.breaker.Name()
}

// Check fails while the breaker is open.
func (c *BaseClient) Check(_ context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("%s circuit breaker is open", c.breaker.Name())
	}
	return nil
}

// Do sends req once. 429 and 5xx responses count against the breaker and
// come back as a *types.AppError with an upstream code, as do transport
// failures and an open breaker. Any other response is returned as-is and the
// caller closes its body.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if id := types.GetRequestID(req.Context()); id != "" {
		req.Header.Set("X-B3-TraceId", id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err == nil {
		return resp, nil
	}

	if resp != nil {
		resp.Body.Close()
	}
	return nil, c.mapError(req.Context(), resp, err)
}

// mapError translates transport and HTTP failures into AppErrors.
func (c *BaseClient) mapError(ctx context.Context, resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; upstream service unavailable",
			err,
		)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(
				types.ErrCodeUpstreamRateLimited,
				"upstream rate limit exceeded",
				err,
			)
		case resp.StatusCode >= 500:
			return types.NewAppError(
				types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("upstream returned %d", resp.StatusCode),
				err,
			)
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"upstream request aborted",
			errors.Join(ctxErr, err),
		)
	}

	return types.NewAppError(
		types.ErrCodeInternalUnexpected,
		"upstream request failed",
		err,
	)
}

// wrapError prefixes an AppError message with the vendor operation while
// preserving its code. Other errors become fallbackCode.
func wrapError(vendor, operation string, err error, fallbackCode types.ErrorCode) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("%s %s: %s", vendor, operation, appErr.Message),
			appErr.Err,
		)
	}
	return types.NewAppError(fallbackCode, fmt.Sprintf("%s %s failed", vendor, operation), err)
}

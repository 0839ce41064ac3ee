package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/go-playground/validator/v10"

	"walkability/internal/external"
	"walkability/internal/geo"
	"walkability/internal/types"
)

// Observer is notified after every run. Observers run concurrently, must
// absorb their own errors and should return once ctx is done.
type Observer interface {
	ObserveRun(ctx context.Context, report types.RunReport)
}

// Analyzer runs the walkability pipeline. It holds no per-request state and
// is safe for concurrent use.
type Analyzer struct {
	settings  Settings
	prober    *Prober
	fetcher   *ImageryFetcher
	scorer    *Scorer
	observers []Observer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithObserver registers a run observer.
func WithObserver(o Observer) Option {
	return func(a *Analyzer) {
		if o != nil {
			a.observers = append(a.observers, o)
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// WithClock overrides the wall clock used for run IDs, image ages and
// elapsed time.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		a.now = now
	}
}

// WithValidator shares a validator instance with the scorer.
func WithValidator(v *validator.Validate) Option {
	return func(a *Analyzer) {
		a.scorer.validate = v
	}
}

// NewAnalyzer wires the pipeline stages around the imagery provider and the
// generative model.
func NewAnalyzer(imagery external.ImageryProvider, model external.GenerativeModel, settings Settings, opts ...Option) *Analyzer {
	a := &Analyzer{
		settings: settings,
		logger:   slog.Default(),
		now:      time.Now,
	}
	a.scorer = NewScorer(model, settings.Temperature, settings.ModelTimeout, nil, nil)

	for _, opt := range opts {
		opt(a)
	}

	a.prober = NewProber(imagery, settings.ProbeBatchSize, settings.ProbeTimeout, a.logger)
	a.prober.now = a.now
	a.fetcher = NewImageryFetcher(imagery, settings.MaxSamples, settings.Headings, settings.ImageTimeout, a.logger)
	a.scorer.logger = a.logger

	return a
}

// runState carries what observers need beyond the result itself.
type runState struct {
	waypoints int
	coverage  int
}

// Analyze runs the pipeline for one request and always returns a result.
// Panics are recovered and reported as INTERNAL.
func (a *Analyzer) Analyze(ctx context.Context, req types.AnalyzeRequest) (result types.AnalyzeResult) {
	start := a.now()
	runID := NewRunID(start)
	ctx = types.WithRunID(types.WithLogger(ctx, a.logger), runID)
	logger := types.LoggerFromContext(ctx)

	meta := types.ResultMeta{RunID: runID, Version: Version}
	fingerprint := Fingerprint(req)
	state := runState{coverage: -1}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "analysis panicked",
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			result = types.ErrorResult(types.ErrCodeInternal, "internal error during analysis", meta)
		}

		elapsed := a.now().Sub(start)
		a.notify(ctx, types.RunReport{
			Result:          result,
			Fingerprint:     fingerprint,
			Waypoints:       state.waypoints,
			CoveragePercent: state.coverage,
			Elapsed:         elapsed,
		})

		attrs := []any{"status", result.Status, "elapsed_ms", elapsed.Milliseconds()}
		if !result.IsOK() {
			attrs = append(attrs, "code", result.Code)
		}
		logger.InfoContext(ctx, "analysis finished", attrs...)
	}()

	return a.run(ctx, req, meta, fingerprint, start, &state)
}

func (a *Analyzer) run(ctx context.Context, req types.AnalyzeRequest, meta types.ResultMeta, fingerprint string, start time.Time, state *runState) types.AnalyzeResult {
	logger := types.LoggerFromContext(ctx)
	s := a.settings

	simplified := geo.Simplify(geo.LineString(req.Route.Coordinates), s.SimplifyTolerance)
	interval := s.Sampling.Interval(req.Route.DistanceMeters)
	waypoints := geo.Sample(simplified, interval)
	state.waypoints = len(waypoints)

	logger.DebugContext(ctx, "route sampled",
		"input_points", len(req.Route.Coordinates),
		"reported_m", req.Route.DistanceMeters,
		"polyline_m", geo.Length(simplified),
		"simplified_points", len(simplified),
		"interval_m", interval,
		"waypoints", len(waypoints),
	)

	if ctx.Err() != nil {
		return cancelled(meta)
	}

	probe, err := a.prober.Probe(ctx, waypoints)
	if err != nil {
		return cancelled(meta)
	}
	stats := ComputeCoverageStats(probe.Waypoints, s.StaleAgeYears)
	state.coverage = stats.CoveragePercent

	logger.InfoContext(ctx, "coverage probed",
		"coverage_percent", stats.CoveragePercent,
		"stale_percent", stats.StalePercent,
		"recency", stats.RecencyBucket,
		"rate_limited", probe.RateLimited,
		"failed", probe.Failed,
	)

	if stats.CoveragePercent == 0 {
		if probe.RateLimited > 0 {
			return types.ErrorResult(types.ErrCodeProviderRateLimit,
				"imagery provider rate limit reached; try again later", meta)
		}
		return types.ErrorResult(types.ErrCodeNoImagery,
			"no street-level imagery is available along this route", meta)
	}

	withImages, err := a.fetcher.Fetch(ctx, probe.Waypoints)
	if err != nil {
		return cancelled(meta)
	}

	scores, err := a.scorer.Score(ctx, withImages)
	if ctx.Err() != nil {
		return cancelled(meta)
	}
	if err != nil {
		logger.WarnContext(ctx, "segment scoring failed", "error", err.Error())
		return types.ErrorResult(types.ErrCodeModelFailure, "the analysis model could not score this route", meta)
	}

	lang := ResolveLanguage(req.Language, req.Origin.Label)
	cards := GenerateCards(scores, lang, s.MaxCards, s.CardConfidence)
	if len(cards) == 0 {
		return types.ErrorResult(types.ErrCodeModelFailure, "the analysis model returned no usable scores", meta)
	}

	summary := Summarize(cards, stats, s)
	notices := GenerateNotices(stats, probe, lang, s)

	meta.Model = a.scorer.ModelName()
	meta.Fingerprint = fingerprint
	elapsedMs := a.now().Sub(start).Milliseconds()
	meta.ElapsedMs = &elapsedMs

	return types.OKResult(summary, cards, notices, meta)
}

func cancelled(meta types.ResultMeta) types.AnalyzeResult {
	return types.ErrorResult(types.ErrCodeInternal, "analysis cancelled", meta)
}

// notify hands the report to every observer concurrently and waits at most
// ObserverTimeout. The observer context is detached from the caller so a
// finished request does not cancel publishing, but it carries its own
// deadline. Observers still running at the deadline are abandoned.
func (a *Analyzer) notify(ctx context.Context, report types.RunReport) {
	if len(a.observers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.observerTimeout())
	defer cancel()

	done := make(chan struct{}, len(a.observers))
	for _, o := range a.observers {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					a.logger.ErrorContext(ctx, "run observer panicked", "panic", fmt.Sprintf("%v", r))
				}
				done <- struct{}{}
			}()
			o.ObserveRun(ctx, report)
		}()
	}

	for pending := len(a.observers); pending > 0; pending-- {
		select {
		case <-done:
		case <-ctx.Done():
			a.logger.WarnContext(ctx, "run observers timed out",
				"pending", pending,
				"timeout", a.observerTimeout(),
			)
			return
		}
	}
}

func (a *Analyzer) observerTimeout() time.Duration {
	if a.settings.ObserverTimeout > 0 {
		return a.settings.ObserverTimeout
	}
	return DefaultSettings().ObserverTimeout
}

package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkability/internal/external"
	"walkability/internal/geo"
	"walkability/internal/types"
)

// zigzagRequest builds a five-vertex route roughly 5 km long whose vertices
// all survive simplification.
func zigzagRequest() types.AnalyzeRequest {
	coords := make([]types.Coordinate, 5)
	for i := range coords {
		coords[i] = types.Coordinate{
			Lat: -6.2 + float64(i)*0.011,
			Lng: 106.8 + float64(i%2)*0.002,
		}
	}
	return types.AnalyzeRequest{
		Origin:      types.Place{Lat: coords[0].Lat, Lng: coords[0].Lng, Label: "Bundaran HI"},
		Destination: types.Place{Lat: coords[4].Lat, Lng: coords[4].Lng, Label: "Monas"},
		Route:       types.Route{Coordinates: coords, DistanceMeters: 5000, DurationSeconds: 3600},
	}
}

func fullScores(n int) string {
	var b strings.Builder
	b.WriteString("Here are the scores:\n```json\n[")
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"segmentId":%q,"accessibility":62,"sidewalk":35,"lighting":55,"crossing":88,"obstruction":30,"traffic":70,"wayfinding":80}`, types.SegmentID(i))
	}
	b.WriteString("]\n```")
	return b.String()
}

func newTestAnalyzer(imagery external.ImageryProvider, model external.GenerativeModel, opts ...Option) *Analyzer {
	opts = append([]Option{WithLogger(discardLogger()), WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewAnalyzer(imagery, model, DefaultSettings(), opts...)
}

func requireError(t *testing.T, res types.AnalyzeResult, code types.ErrorCode) {
	t.Helper()
	require.Equal(t, types.ResultError, res.Status, "result: %+v", res)
	assert.Equal(t, code, res.Code)
	assert.NotEmpty(t, res.Message)
	assert.Regexp(t, runIDPattern, res.Meta.RunID)
	assert.Equal(t, Version, res.Meta.Version)
	assert.Nil(t, res.Summary)
	assert.Empty(t, res.Cards)
}

func TestAnalyze_FullCoverage(t *testing.T) {
	imagery := &fakeImagery{}
	model := &fakeModel{output: fullScores(5)}
	req := zigzagRequest()

	res := newTestAnalyzer(imagery, model).Analyze(context.Background(), req)

	require.True(t, res.IsOK(), "result: %+v", res)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 100, res.Summary.CoveragePercent)
	assert.Equal(t, types.RecencyOneToThree, res.Summary.RecencyBucket)
	assert.Equal(t, LabelFor(res.Summary.Score), res.Summary.Label)
	assert.Equal(t, 0.75, res.Summary.Confidence)
	assert.Empty(t, res.Notices)

	assert.GreaterOrEqual(t, len(res.Cards), 3)
	assert.LessOrEqual(t, len(res.Cards), 6)
	for _, c := range res.Cards {
		assert.LessOrEqual(t, len([]rune(c.Description)), 140)
		assert.NotEmpty(t, c.Title)
	}
	// Positive tones sort first.
	assert.Equal(t, types.CategoryCrossing, res.Cards[0].Category)
	assert.Equal(t, types.TonePositive, res.Cards[0].Tone)

	assert.Equal(t, "fake-model", res.Meta.Model)
	assert.Equal(t, Fingerprint(req), res.Meta.Fingerprint)
	assert.Equal(t, Version, res.Meta.Version)
	// The fixed clock makes the run take 0 ms; it is still reported.
	require.NotNil(t, res.Meta.ElapsedMs)
	assert.Equal(t, int64(0), *res.Meta.ElapsedMs)
	assert.Equal(t, int32(1), model.calls.Load())
	assert.Equal(t, int32(5), imagery.metadataCalls.Load())

	// One image per heading for each selected sample.
	assert.Len(t, imagery.requests(), 10)
	assert.Len(t, model.lastPrompt.Parts, 1+2*10)
}

func TestAnalyze_NoImagery(t *testing.T) {
	imagery := &fakeImagery{
		metadataFn: func(context.Context, types.Coordinate) (*external.ImageryMetadata, error) {
			return nil, nil
		},
	}
	model := &fakeModel{output: fullScores(5)}

	res := newTestAnalyzer(imagery, model).Analyze(context.Background(), zigzagRequest())

	requireError(t, res, types.ErrCodeNoImagery)
	assert.Zero(t, model.calls.Load())
	assert.Empty(t, imagery.requests())
}

func TestAnalyze_RateLimitedWithoutCoverage(t *testing.T) {
	imagery := &fakeImagery{
		metadataFn: func(context.Context, types.Coordinate) (*external.ImageryMetadata, error) {
			return nil, types.NewAppError(types.ErrCodeUpstreamRateLimited, "429", nil)
		},
	}
	model := &fakeModel{}

	res := newTestAnalyzer(imagery, model).Analyze(context.Background(), zigzagRequest())

	requireError(t, res, types.ErrCodeProviderRateLimit)
	assert.Zero(t, model.calls.Load())
}

func TestAnalyze_PartialFailureNotice(t *testing.T) {
	imagery := &fakeImagery{
		metadataFn: func(_ context.Context, loc types.Coordinate) (*external.ImageryMetadata, error) {
			if loc.Lat > -6.17 {
				return nil, errors.New("connection reset")
			}
			return coveredAt(loc, "2024-10"), nil
		},
	}
	model := &fakeModel{output: fullScores(5)}

	res := newTestAnalyzer(imagery, model).Analyze(context.Background(), zigzagRequest())

	require.True(t, res.IsOK(), "result: %+v", res)
	assert.Equal(t, 60, res.Summary.CoveragePercent)

	codes := make([]types.NoticeCode, 0, len(res.Notices))
	for _, n := range res.Notices {
		codes = append(codes, n.Code)
	}
	assert.Equal(t, []types.NoticeCode{types.NoticePartialFailure}, codes)
	assert.Contains(t, res.Notices[0].Message, "2 dari 5")
}

func TestAnalyze_ModelFailure(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"call error", &fakeModel{err: errors.New("503 from upstream")}},
		{"no array", &fakeModel{output: "I cannot help with that."}},
		{"empty array", &fakeModel{output: "[]"}},
		{"unknown segment", &fakeModel{output: `[{"segmentId":"seg_099","sidewalk":50}]`}},
		{"no category scores", &fakeModel{output: `[{"segmentId":"seg_001"}]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestAnalyzer(&fakeImagery{}, tt.model).Analyze(context.Background(), zigzagRequest())
			requireError(t, res, types.ErrCodeModelFailure)
		})
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	imagery := &fakeImagery{}
	res := newTestAnalyzer(imagery, &fakeModel{output: fullScores(5)}).Analyze(ctx, zigzagRequest())

	requireError(t, res, types.ErrCodeInternal)
	assert.Equal(t, "analysis cancelled", res.Message)
	assert.Zero(t, imagery.metadataCalls.Load())
}

func TestAnalyze_CancelledDuringModelCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &fakeModel{
		generate: func(ctx context.Context, _ external.Prompt) (string, error) {
			cancel()
			<-ctx.Done()
			return "", ctx.Err()
		},
	}

	res := newTestAnalyzer(&fakeImagery{}, model).Analyze(ctx, zigzagRequest())

	requireError(t, res, types.ErrCodeInternal)
}

func TestAnalyze_PanicBecomesInternal(t *testing.T) {
	model := &fakeModel{
		generate: func(context.Context, external.Prompt) (string, error) {
			panic("boom")
		},
	}
	var reports []types.RunReport
	obs := observerFunc(func(_ context.Context, r types.RunReport) { reports = append(reports, r) })

	res := newTestAnalyzer(&fakeImagery{}, model, WithObserver(obs)).Analyze(context.Background(), zigzagRequest())

	requireError(t, res, types.ErrCodeInternal)
	require.Len(t, reports, 1)
	assert.Equal(t, types.ErrCodeInternal, reports[0].Result.Code)
}

func TestAnalyze_ObserverReport(t *testing.T) {
	var (
		mu      sync.Mutex
		reports []types.RunReport
		ctxErrs []error
	)
	obs := observerFunc(func(ctx context.Context, r types.RunReport) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, r)
		ctxErrs = append(ctxErrs, ctx.Err())
	})
	req := zigzagRequest()
	an := newTestAnalyzer(&fakeImagery{}, &fakeModel{output: fullScores(5)}, WithObserver(obs), WithObserver(nil))

	res := an.Analyze(context.Background(), req)
	require.True(t, res.IsOK())

	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, res, r.Result)
	assert.Equal(t, Fingerprint(req), r.Fingerprint)
	assert.Equal(t, 5, r.Waypoints)
	assert.Equal(t, 100, r.CoveragePercent)
	assert.NoError(t, ctxErrs[0])

	// A run cancelled before probing reports unknown coverage, and the
	// observer context is detached from the cancelled caller.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	an.Analyze(ctx, req)

	require.Len(t, reports, 2)
	assert.Equal(t, -1, reports[1].CoveragePercent)
	assert.NoError(t, ctxErrs[1])
}

func TestAnalyze_EnglishOverride(t *testing.T) {
	req := zigzagRequest()
	req.Language = "en-GB,en;q=0.9"

	res := newTestAnalyzer(&fakeImagery{}, &fakeModel{output: fullScores(5)}).Analyze(context.Background(), req)

	require.True(t, res.IsOK())
	assert.Equal(t, cardCopyEN[types.CategoryCrossing][types.TonePositive].title, res.Cards[0].Title)
}

func TestAnalyze_SlowObserverIsBounded(t *testing.T) {
	settings := DefaultSettings()
	settings.ObserverTimeout = 50 * time.Millisecond

	release := make(chan struct{})
	defer close(release)

	var (
		mu        sync.Mutex
		deadlines []bool
	)
	stuck := observerFunc(func(ctx context.Context, _ types.RunReport) {
		_, ok := ctx.Deadline()
		mu.Lock()
		deadlines = append(deadlines, ok)
		mu.Unlock()
		<-release
	})
	polite := observerFunc(func(ctx context.Context, _ types.RunReport) {
		<-ctx.Done()
	})

	an := NewAnalyzer(&fakeImagery{}, &fakeModel{output: fullScores(5)}, settings,
		WithLogger(discardLogger()),
		WithClock(func() time.Time { return fixedNow }),
		WithObserver(stuck),
		WithObserver(polite),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := an.Analyze(ctx, zigzagRequest())
	elapsed := time.Since(start)

	require.True(t, res.IsOK(), "result: %+v", res)
	assert.Less(t, elapsed, time.Second, "observers held the result for %v", elapsed)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, deadlines, 1)
	assert.True(t, deadlines[0], "observer context should carry a deadline")
}

func TestAnalyze_ObserverPanicIsContained(t *testing.T) {
	boom := observerFunc(func(context.Context, types.RunReport) { panic("observer failed") })
	var seen atomic.Int32
	counter := observerFunc(func(context.Context, types.RunReport) { seen.Add(1) })

	res := newTestAnalyzer(&fakeImagery{}, &fakeModel{output: fullScores(5)},
		WithObserver(boom), WithObserver(counter)).Analyze(context.Background(), zigzagRequest())

	require.True(t, res.IsOK())
	assert.Equal(t, int32(1), seen.Load())
}

func TestSettings_StageBudget(t *testing.T) {
	s := DefaultSettings()
	// 5 samples x (2 headings + fallback) x 4s + 60s model + 2.5s probe batch.
	assert.Equal(t, 122500*time.Millisecond, s.StageBudget())

	s.Headings = []int{0}
	s.MaxSamples = 1
	assert.Equal(t, 8*time.Second+s.ModelTimeout+s.ProbeTimeout, s.StageBudget())
}

func TestAnalyze_LogsPolylineLength(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	req := zigzagRequest()

	newTestAnalyzer(&fakeImagery{}, &fakeModel{output: fullScores(5)}, WithLogger(logger)).Analyze(context.Background(), req)

	var sampled map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "route sampled" {
			sampled = entry
		}
	}
	require.NotNil(t, sampled, "no route sampled entry in:\n%s", buf.String())
	assert.Equal(t, req.Route.DistanceMeters, sampled["reported_m"])
	want := geo.Length(geo.Simplify(geo.LineString(req.Route.Coordinates), DefaultSettings().SimplifyTolerance))
	assert.InDelta(t, want, sampled["polyline_m"], 1e-6)
}

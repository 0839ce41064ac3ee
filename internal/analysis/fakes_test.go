package analysis

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"walkability/internal/external"
	"walkability/internal/types"
)

// fakeImagery is an in-memory ImageryProvider.
type fakeImagery struct {
	metadataFn func(ctx context.Context, loc types.Coordinate) (*external.ImageryMetadata, error)
	imageFn    func(ctx context.Context, req external.ImageRequest) ([]byte, error)

	mu            sync.Mutex
	imageRequests []external.ImageRequest

	metadataCalls atomic.Int32
	inFlight      atomic.Int32
	maxInFlight   atomic.Int32
	delay         time.Duration
}

func (f *fakeImagery) Metadata(ctx context.Context, loc types.Coordinate) (*external.ImageryMetadata, error) {
	f.metadataCalls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.metadataFn != nil {
		return f.metadataFn(ctx, loc)
	}
	return coveredAt(loc, "2023-06"), nil
}

func (f *fakeImagery) Image(ctx context.Context, req external.ImageRequest) ([]byte, error) {
	f.mu.Lock()
	f.imageRequests = append(f.imageRequests, req)
	f.mu.Unlock()
	if f.imageFn != nil {
		return f.imageFn(ctx, req)
	}
	return []byte{0xff, 0xd8, 0xff}, nil
}

func (f *fakeImagery) requests() []external.ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]external.ImageRequest(nil), f.imageRequests...)
}

func coveredAt(loc types.Coordinate, date string) *external.ImageryMetadata {
	return &external.ImageryMetadata{
		PanoID:      "pano",
		Location:    loc,
		CaptureDate: date,
	}
}

// fakeModel is a scripted GenerativeModel.
type fakeModel struct {
	output   string
	err      error
	generate func(ctx context.Context, p external.Prompt) (string, error)

	calls      atomic.Int32
	lastPrompt external.Prompt
}

func (m *fakeModel) Name() string { return "fake-model" }

func (m *fakeModel) Generate(ctx context.Context, p external.Prompt) (string, error) {
	m.calls.Add(1)
	m.lastPrompt = p
	if m.generate != nil {
		return m.generate(ctx, p)
	}
	return m.output, m.err
}

// observerFunc adapts a function to Observer.
type observerFunc func(ctx context.Context, r types.RunReport)

func (f observerFunc) ObserveRun(ctx context.Context, r types.RunReport) { f(ctx, r) }

func ptr[T any](v T) *T { return &v }

var fixedNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func waypoints(n int) []types.Waypoint {
	wps := make([]types.Waypoint, n)
	for i := range wps {
		wps[i] = types.Waypoint{
			SegmentID: types.SegmentID(i + 1),
			Lat:       -6.2 + float64(i)*0.001,
			Lng:       106.8,
		}
	}
	return wps
}

package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkability/internal/external"
	"walkability/internal/types"
)

func coveredWaypoints(n int, covered ...int) []types.Waypoint {
	wps := waypoints(n)
	for _, i := range covered {
		wps[i].HasCoverage = true
		wps[i].Metadata = &types.WaypointMetadata{PanoID: "pano-" + wps[i].SegmentID}
	}
	return wps
}

func TestSelectSamples(t *testing.T) {
	tests := []struct {
		name string
		wps  []types.Waypoint
		max  int
		want []int
	}{
		{"none covered", waypoints(4), 5, nil},
		{"fewer than max", coveredWaypoints(4, 0, 2, 3), 5, []int{0, 2, 3}},
		{"stride misses last", coveredWaypoints(10, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9), 5, []int{0, 2, 4, 6, 9}},
		{"single covered", coveredWaypoints(3, 1), 5, []int{1}},
		{"zero cap", coveredWaypoints(3, 1), 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectSamples(tt.wps, tt.max)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectSamples_Stride(t *testing.T) {
	all := make([]int, 12)
	for i := range all {
		all[i] = i
	}
	wps := coveredWaypoints(12, all...)

	// step = 12/5 = 2 -> 0,2,4,6,8; last covered (11) replaces the final pick.
	assert.Equal(t, []int{0, 2, 4, 6, 11}, SelectSamples(wps, 5))

	// step = 1 when fewer covered than the cap.
	assert.Equal(t, []int{0, 1, 2}, SelectSamples(coveredWaypoints(3, 0, 1, 2), 5))
}

func TestFetch_PrefersPanoAndFetchesEachHeading(t *testing.T) {
	provider := &fakeImagery{}
	wps := coveredWaypoints(3, 0, 2)

	f := NewImageryFetcher(provider, 5, []int{0, 180}, time.Second, discardLogger())
	out, err := f.Fetch(context.Background(), wps)
	require.NoError(t, err)

	reqs := provider.requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, "pano-seg_001", reqs[0].PanoID)
	assert.Equal(t, 0, *reqs[0].Heading)
	assert.Equal(t, 180, *reqs[1].Heading)

	require.Len(t, out[0].Images, 2)
	assert.Equal(t, "image/jpeg", out[0].Images[0].MimeType)
	assert.Equal(t, "/9j/", out[0].Images[0].Data)
	assert.Equal(t, 180, *out[0].Images[1].Heading)
	assert.Nil(t, out[1].Images)
	assert.Len(t, out[2].Images, 2)

	// Input is untouched.
	assert.Nil(t, wps[0].Images)
}

func TestFetch_FallsBackWithoutHeading(t *testing.T) {
	provider := &fakeImagery{
		imageFn: func(ctx context.Context, req external.ImageRequest) ([]byte, error) {
			if req.Heading != nil {
				return nil, errors.New("no image at heading")
			}
			return []byte("jpeg"), nil
		},
	}

	f := NewImageryFetcher(provider, 5, []int{0, 180}, time.Second, discardLogger())
	out, err := f.Fetch(context.Background(), coveredWaypoints(1, 0))
	require.NoError(t, err)

	assert.Len(t, provider.requests(), 3)
	require.Len(t, out[0].Images, 1)
	assert.Nil(t, out[0].Images[0].Heading)
}

func TestFetch_AllFailuresLeaveNoImages(t *testing.T) {
	provider := &fakeImagery{
		imageFn: func(ctx context.Context, req external.ImageRequest) ([]byte, error) {
			return nil, errors.New("unavailable")
		},
	}

	f := NewImageryFetcher(provider, 5, []int{0, 180}, time.Second, discardLogger())
	out, err := f.Fetch(context.Background(), coveredWaypoints(2, 0, 1))
	require.NoError(t, err)

	for _, wp := range out {
		assert.Nil(t, wp.Images)
		assert.True(t, wp.HasCoverage)
	}
}

func TestFetch_UsesLocationWithoutPano(t *testing.T) {
	provider := &fakeImagery{}
	wps := waypoints(1)
	wps[0].HasCoverage = true

	f := NewImageryFetcher(provider, 5, []int{90}, time.Second, discardLogger())
	_, err := f.Fetch(context.Background(), wps)
	require.NoError(t, err)

	reqs := provider.requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].PanoID)
	assert.Equal(t, wps[0].Coordinate(), reqs[0].Location)
}

func TestFetch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeImagery{}
	f := NewImageryFetcher(provider, 5, []int{0, 180}, time.Second, discardLogger())
	_, err := f.Fetch(ctx, coveredWaypoints(2, 0, 1))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, provider.requests())
}

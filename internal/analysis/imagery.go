package analysis

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"walkability/internal/external"
	"walkability/internal/types"
)

const imageMimeType = "image/jpeg"

// SelectSamples returns the indices into wps of an evenly spaced subset of
// covered waypoints, at most maxSamples long. The last covered waypoint is
// always included; when the stride misses it and the subset is full, it
// replaces the final pick.
func SelectSamples(wps []types.Waypoint, maxSamples int) []int {
	var covered []int
	for i, wp := range wps {
		if wp.HasCoverage {
			covered = append(covered, i)
		}
	}
	if len(covered) == 0 || maxSamples < 1 {
		return nil
	}

	step := max(1, len(covered)/maxSamples)
	selected := make([]int, 0, maxSamples)
	for i := 0; i < len(covered) && len(selected) < maxSamples; i += step {
		selected = append(selected, covered[i])
	}

	last := covered[len(covered)-1]
	if selected[len(selected)-1] != last {
		if len(selected) < maxSamples {
			selected = append(selected, last)
		} else {
			selected[len(selected)-1] = last
		}
	}
	return selected
}

// ImageryFetcher downloads sample images for a subset of covered waypoints.
type ImageryFetcher struct {
	provider   external.ImageryProvider
	maxSamples int
	headings   []int
	timeout    time.Duration
	logger     *slog.Logger
}

// NewImageryFetcher creates an ImageryFetcher.
func NewImageryFetcher(provider external.ImageryProvider, maxSamples int, headings []int, timeout time.Duration, logger *slog.Logger) *ImageryFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageryFetcher{
		provider:   provider,
		maxSamples: maxSamples,
		headings:   headings,
		timeout:    timeout,
		logger:     logger,
	}
}

// Fetch returns a copy of wps where the selected waypoints carry their
// images. Fetches are sequential. Individual failures leave a waypoint
// without images; only ctx cancellation is returned as an error.
func (f *ImageryFetcher) Fetch(ctx context.Context, wps []types.Waypoint) ([]types.Waypoint, error) {
	out := make([]types.Waypoint, len(wps))
	copy(out, wps)

	for _, idx := range SelectSamples(wps, f.maxSamples) {
		images, err := f.fetchWaypoint(ctx, wps[idx])
		if err != nil {
			return nil, err
		}
		if len(images) > 0 {
			out[idx].Images = images
		}
	}
	return out, nil
}

func (f *ImageryFetcher) fetchWaypoint(ctx context.Context, wp types.Waypoint) ([]types.WaypointImage, error) {
	req := external.ImageRequest{Location: wp.Coordinate()}
	if wp.Metadata != nil && wp.Metadata.PanoID != "" {
		req.PanoID = wp.Metadata.PanoID
	}

	var images []types.WaypointImage
	for _, h := range f.headings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		heading := h
		req.Heading = &heading
		if img, ok := f.fetchOne(ctx, wp.SegmentID, req); ok {
			images = append(images, img)
		}
	}

	if len(images) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req.Heading = nil
		if img, ok := f.fetchOne(ctx, wp.SegmentID, req); ok {
			images = append(images, img)
		}
	}
	return images, nil
}

func (f *ImageryFetcher) fetchOne(ctx context.Context, segmentID string, req external.ImageRequest) (types.WaypointImage, bool) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	data, err := f.provider.Image(ctx, req)
	if err != nil {
		attrs := []any{"segment_id", segmentID, "error", err.Error()}
		if req.Heading != nil {
			attrs = append(attrs, "heading", *req.Heading)
		}
		f.logger.DebugContext(ctx, "image fetch failed", attrs...)
		return types.WaypointImage{}, false
	}

	return types.WaypointImage{
		Heading:  req.Heading,
		MimeType: imageMimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}, true
}

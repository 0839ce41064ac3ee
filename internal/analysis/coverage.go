package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"walkability/internal/external"
	"walkability/internal/geo"
	"walkability/internal/types"
)

// probeOutcome classifies a single coverage lookup.
type probeOutcome int

const (
	probeCovered probeOutcome = iota
	probeNoCoverage
	probeRateLimited
	probeFailed
)

// ProbeReport is the output of the coverage stage.
type ProbeReport struct {
	Waypoints   []types.Waypoint
	RateLimited int
	Failed      int
}

// Degraded reports how many probes failed for reasons other than genuine
// absence of imagery.
func (r ProbeReport) Degraded() int {
	return r.RateLimited + r.Failed
}

// Prober checks imagery coverage for every waypoint in bounded batches.
type Prober struct {
	provider  external.ImageryProvider
	batchSize int
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewProber creates a Prober. Batches of batchSize run concurrently and are
// awaited in sequence.
func NewProber(provider external.ImageryProvider, batchSize int, timeout time.Duration, logger *slog.Logger) *Prober {
	if batchSize < 1 {
		batchSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		provider:  provider,
		batchSize: batchSize,
		timeout:   timeout,
		now:       time.Now,
		logger:    logger,
	}
}

// Probe returns updated copies of wps in the same order. Lookup failures are
// absorbed into hasCoverage=false; the only error is ctx cancellation, checked
// before each batch.
func (p *Prober) Probe(ctx context.Context, wps []types.Waypoint) (ProbeReport, error) {
	out := make([]types.Waypoint, len(wps))
	outcomes := make([]probeOutcome, len(wps))
	now := p.now()

	for start := 0; start < len(wps); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return ProbeReport{}, err
		}

		end := min(start+p.batchSize, len(wps))

		// Each goroutine writes only its own index.
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				defer func() {
					// A panic here would bypass the orchestrator's recover.
					if r := recover(); r != nil {
						p.logger.ErrorContext(ctx, "coverage probe panicked",
							"segment_id", wps[i].SegmentID,
							"panic", fmt.Sprintf("%v", r),
						)
						out[i], outcomes[i] = uncovered(wps[i]), probeFailed
					}
				}()
				out[i], outcomes[i] = p.probeOne(ctx, wps[i], now)
				return nil
			})
		}
		_ = g.Wait()
	}

	if err := ctx.Err(); err != nil {
		return ProbeReport{}, err
	}

	report := ProbeReport{Waypoints: out}
	for _, o := range outcomes {
		switch o {
		case probeRateLimited:
			report.RateLimited++
		case probeFailed:
			report.Failed++
		}
	}
	return report, nil
}

func uncovered(wp types.Waypoint) types.Waypoint {
	wp.HasCoverage = false
	wp.Metadata = nil
	wp.AgeYears = nil
	return wp
}

func (p *Prober) probeOne(ctx context.Context, wp types.Waypoint, now time.Time) (types.Waypoint, probeOutcome) {
	wp = uncovered(wp)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	meta, err := p.provider.Metadata(ctx, wp.Coordinate())
	if err != nil {
		outcome := probeFailed
		if types.IsRateLimited(err) {
			outcome = probeRateLimited
		}
		p.logger.DebugContext(ctx, "coverage probe failed",
			"segment_id", wp.SegmentID,
			"error", err.Error(),
		)
		return wp, outcome
	}
	if meta == nil {
		return wp, probeNoCoverage
	}

	wp.HasCoverage = true
	wp.Metadata = &types.WaypointMetadata{
		PanoID:            meta.PanoID,
		Lat:               meta.Location.Lat,
		Lng:               meta.Location.Lng,
		CaptureDate:       meta.CaptureDate,
		DistanceFromQuery: geo.Haversine(geo.Point(wp.Coordinate()), geo.Point(meta.Location)),
	}
	if captured, ok := parseCaptureDate(meta.CaptureDate); ok {
		age := ageInYears(captured, now)
		wp.AgeYears = &age
	}
	return wp, probeCovered
}

var captureDateLayouts = []string{"2006-01", "2006-01-02", "2006"}

// parseCaptureDate accepts the provider's "YYYY-MM" date and its looser
// variants.
func parseCaptureDate(s string) (time.Time, bool) {
	for _, layout := range captureDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

const daysPerYear = 365.25

func ageInYears(captured, now time.Time) float64 {
	years := now.Sub(captured).Hours() / 24 / daysPerYear
	return math.Max(0, years)
}

// CoverageStats aggregates probe results.
type CoverageStats struct {
	Total           int
	Covered         int
	CoveragePercent int
	RecencyBucket   types.RecencyBucket
	StalePercent    int
}

// ComputeCoverageStats derives coverage, recency and staleness. Uncovered
// waypoints count toward Total but not toward the age statistics.
func ComputeCoverageStats(wps []types.Waypoint, staleAgeYears float64) CoverageStats {
	stats := CoverageStats{Total: len(wps), RecencyBucket: types.RecencyUnknown}
	if len(wps) == 0 {
		return stats
	}

	var (
		ageSum   float64
		ageCount int
		stale    int
	)
	for _, wp := range wps {
		if wp.HasCoverage {
			stats.Covered++
		}
		if wp.AgeYears == nil {
			continue
		}
		ageSum += *wp.AgeYears
		ageCount++
		if *wp.AgeYears > staleAgeYears {
			stale++
		}
	}

	total := float64(len(wps))
	stats.CoveragePercent = int(math.Round(100 * float64(stats.Covered) / total))
	stats.StalePercent = int(math.Round(100 * float64(stale) / total))
	if ageCount > 0 {
		stats.RecencyBucket = recencyBucket(ageSum / float64(ageCount))
	}
	return stats
}

func recencyBucket(meanAge float64) types.RecencyBucket {
	switch {
	case meanAge <= 1:
		return types.RecencyWithinYear
	case meanAge <= 3:
		return types.RecencyOneToThree
	default:
		return types.RecencyOlderThree
	}
}

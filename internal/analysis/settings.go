// Package analysis implements the route-walkability pipeline: simplify and
// sample the route, probe imagery coverage, fetch sample images, score
// segments with a multimodal model, and aggregate the scores into cards, a
// summary and notices.
package analysis

import (
	"time"

	"walkability/internal/geo"
	"walkability/internal/types"
)

// Settings holds every tunable constant of the pipeline.
type Settings struct {
	SimplifyTolerance float64 // degrees, planar
	Sampling          geo.SamplingPolicy

	ProbeBatchSize int
	ProbeTimeout   time.Duration

	ImageTimeout time.Duration
	MaxSamples   int
	Headings     []int

	ModelTimeout time.Duration
	Temperature  float64

	LowCoveragePercent int     // LOW_COVERAGE fires below this
	StalePercent       int     // STALE_IMAGERY fires above this
	StaleAgeYears      float64 // imagery older than this counts as stale

	MaxCards       int
	CardConfidence float64

	// ObserverTimeout bounds how long Analyze waits for run observers.
	ObserverTimeout time.Duration

	Weights       map[types.Category]float64
	DefaultWeight float64
}

// DefaultSettings returns the reference tuning.
func DefaultSettings() Settings {
	return Settings{
		SimplifyTolerance: 0.0001,
		Sampling: geo.SamplingPolicy{
			ShortRouteThresholdMeters: 2000,
			ShortRouteInterval:        100,
			LongRouteInterval:         175,
		},
		ProbeBatchSize:     8,
		ProbeTimeout:       2500 * time.Millisecond,
		ImageTimeout:       4 * time.Second,
		MaxSamples:         5,
		Headings:           []int{0, 180},
		ModelTimeout:       60 * time.Second,
		Temperature:        0.2,
		LowCoveragePercent: 60,
		StalePercent:       30,
		StaleAgeYears:      3,
		MaxCards:           6,
		CardConfidence:     0.75,
		ObserverTimeout:    2 * time.Second,
		Weights:            DefaultWeights(),
		DefaultWeight:      0.05,
	}
}

// DefaultWeights returns the per-category summary weights.
func DefaultWeights() map[types.Category]float64 {
	return map[types.Category]float64{
		types.CategorySidewalk:      0.25,
		types.CategoryCrossing:      0.20,
		types.CategoryAccessibility: 0.15,
		types.CategoryLighting:      0.15,
		types.CategoryTraffic:       0.15,
		types.CategoryWayfinding:    0.05,
		types.CategoryObstruction:   0.05,
	}
}

// StageBudget is the longest a run can spend outside probing beyond its
// first batch: every image fetch timing out (each heading plus the
// headingless fallback, for every sample), the model call, and one probe
// batch. Each further batch of ProbeBatchSize waypoints adds ProbeTimeout.
// A caller deadline shorter than this can cancel a run that would have
// finished.
func (s Settings) StageBudget() time.Duration {
	fetches := s.MaxSamples * (len(s.Headings) + 1)
	return time.Duration(fetches)*s.ImageTimeout + s.ModelTimeout + s.ProbeTimeout
}

func (s Settings) weight(c types.Category) float64 {
	if w, ok := s.Weights[c]; ok {
		return w
	}
	return s.DefaultWeight
}

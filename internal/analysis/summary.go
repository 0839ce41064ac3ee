package analysis

import (
	"math"

	"walkability/internal/types"
)

// LabelFor grades a rounded route score.
func LabelFor(score int) types.SummaryLabel {
	switch {
	case score >= 85:
		return types.LabelExcellent
	case score >= 70:
		return types.LabelGood
	case score >= 55:
		return types.LabelFair
	case score >= 40:
		return types.LabelPoor
	default:
		return types.LabelVeryPoor
	}
}

// Summarize computes the weighted overall score. With no cards (or zero
// total weight) the summary degrades to Very Poor with zero score and
// confidence; coverage and recency are always reported.
func Summarize(cards []types.AnalysisCard, stats CoverageStats, s Settings) types.Summary {
	summary := types.Summary{
		Label:           types.LabelVeryPoor,
		CoveragePercent: stats.CoveragePercent,
		RecencyBucket:   stats.RecencyBucket,
	}

	var weighted, totalWeight, confSum float64
	for _, c := range cards {
		w := s.weight(c.Category)
		weighted += w * float64(c.Score)
		totalWeight += w
		confSum += c.Confidence
	}
	if len(cards) == 0 || totalWeight == 0 {
		return summary
	}

	summary.Score = int(math.Round(weighted / totalWeight))
	summary.Label = LabelFor(summary.Score)

	meanConf := confSum / float64(len(cards))
	conf := meanConf * (float64(stats.CoveragePercent) / 100) * (1 - 0.5*float64(stats.StalePercent)/100)
	summary.Confidence = math.Round(conf*100) / 100

	return summary
}

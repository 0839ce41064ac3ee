package analysis

import (
	"golang.org/x/text/language"

	"walkability/internal/types"
)

// GenerateNotices derives the advisory warnings for a run. It returns nil,
// not an empty slice, when nothing fires.
func GenerateNotices(stats CoverageStats, probe ProbeReport, lang language.Tag, s Settings) []types.Notice {
	var notices []types.Notice

	if stats.CoveragePercent < s.LowCoveragePercent {
		notices = append(notices, types.Notice{
			Code:     types.NoticeLowCoverage,
			Severity: types.SeverityWarning,
			Message:  lowCoverageMessage(lang, stats.CoveragePercent),
		})
	}
	if stats.StalePercent > s.StalePercent {
		notices = append(notices, types.Notice{
			Code:     types.NoticeStaleImagery,
			Severity: types.SeverityWarning,
			Message:  staleImageryMessage(lang, stats.StalePercent, s.StaleAgeYears),
		})
	}
	if n := probe.Degraded(); n > 0 {
		notices = append(notices, types.Notice{
			Code:     types.NoticePartialFailure,
			Severity: types.SeverityInfo,
			Message:  partialFailureMessage(lang, n, stats.Total),
		})
	}

	return notices
}

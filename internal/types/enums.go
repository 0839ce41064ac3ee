package types

// Category is one of the seven walkability dimensions the model scores.
type Category string

const (
	CategoryAccessibility Category = "accessibility"
	CategorySidewalk      Category = "sidewalk"
	CategoryLighting      Category = "lighting"
	CategoryCrossing      Category = "crossing"
	CategoryObstruction   Category = "obstruction"
	CategoryTraffic       Category = "traffic"
	CategoryWayfinding    Category = "wayfinding"
)

// Categories lists every scored category in canonical order. Card generation
// iterates in this order, which makes ties in tone priority deterministic.
var Categories = []Category{
	CategoryAccessibility,
	CategorySidewalk,
	CategoryLighting,
	CategoryCrossing,
	CategoryObstruction,
	CategoryTraffic,
	CategoryWayfinding,
}

// Tone is the qualitative severity of a scored category.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNeutral  Tone = "neutral"
	ToneWarning  Tone = "warning"
	ToneDanger   Tone = "danger"
)

// RecencyBucket is a coarse classification of imagery age.
type RecencyBucket string

const (
	RecencyWithinYear RecencyBucket = "<=1y"
	RecencyOneToThree RecencyBucket = "1-3y"
	RecencyOlderThree RecencyBucket = ">3y"
	RecencyUnknown    RecencyBucket = "unknown"
)

// SummaryLabel is the user-facing grade of the overall route score.
type SummaryLabel string

const (
	LabelExcellent SummaryLabel = "Excellent"
	LabelGood      SummaryLabel = "Good"
	LabelFair      SummaryLabel = "Fair"
	LabelPoor      SummaryLabel = "Poor"
	LabelVeryPoor  SummaryLabel = "Very Poor"
)

// NoticeCode identifies an advisory data-quality warning.
type NoticeCode string

const (
	NoticeLowCoverage    NoticeCode = "LOW_COVERAGE"
	NoticeStaleImagery   NoticeCode = "STALE_IMAGERY"
	NoticePartialFailure NoticeCode = "PARTIAL_FAILURE"
)

// Severity is the importance of a Notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// ResultStatus discriminates the AnalyzeResult union.
type ResultStatus string

const (
	ResultOK    ResultStatus = "ok"
	ResultError ResultStatus = "error"
)

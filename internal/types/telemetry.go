package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricAnalysisOutcome = "AnalysisOutcome"
	MetricAnalysisLatency = "AnalysisLatency"
	MetricRouteCoverage   = "RouteCoverage"
	MetricAPILatency      = "APILatency"
	MetricAPIRequestCount = "APIRequestCount"

	// Dimension Keys
	DimOutcome  = "Outcome"
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"

	// Metric Namespace
	MetricNamespace = "Walkability"
)

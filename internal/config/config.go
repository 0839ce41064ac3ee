// Package config defines the configuration structure for the walkability
// service. Configuration is loaded once at process initialization (server start
// or Lambda cold start) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults (Lowest)
//
// Any missing required value or invalid format causes the process to exit on
// startup (fail fast).
package config

import (
	"log/slog"
	"time"

	"walkability/internal/analysis"
	"walkability/internal/external"
	"walkability/internal/geo"
	"walkability/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"walkability"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Domain Configurations
	Server        ServerConfig
	Imagery       ImageryConfig
	Model         ModelConfig
	Pipeline      PipelineConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"150s" validate:"gt=0"`
	MaxBodyBytes       int64         `envconfig:"MAX_BODY_BYTES" default:"1048576" validate:"gt=0"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// RateLimitPerMinute caps requests per client IP; 0 disables limiting.
	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30" validate:"gte=0"`
}

// ImageryConfig holds the Street View imagery provider settings.
type ImageryConfig struct {
	APIKey       SecretString `envconfig:"STREETVIEW_API_KEY" validate:"required"`
	BaseURL      string       `envconfig:"STREETVIEW_BASE_URL" validate:"omitempty,url"`
	RadiusMeters int          `envconfig:"STREETVIEW_RADIUS_METERS" default:"30" validate:"gt=0"`
	ImageSize    string       `envconfig:"STREETVIEW_IMAGE_SIZE" default:"640x400"`
	FOV          int          `envconfig:"STREETVIEW_FOV" default:"90" validate:"gt=0,lte=120"`
	Pitch        int          `envconfig:"STREETVIEW_PITCH" default:"0" validate:"gte=-90,lte=90"`
}

// StreetView converts the section into the vendor client configuration.
func (c ImageryConfig) StreetView(logger *slog.Logger) external.StreetViewConfig {
	return external.StreetViewConfig{
		APIKey:       c.APIKey,
		BaseURL:      c.BaseURL,
		RadiusMeters: c.RadiusMeters,
		ImageSize:    c.ImageSize,
		FOV:          c.FOV,
		Pitch:        c.Pitch,
		Logger:       logger,
	}
}

// ModelConfig holds the generative model settings.
type ModelConfig struct {
	APIKey  SecretString `envconfig:"GEMINI_API_KEY" validate:"required"`
	BaseURL string       `envconfig:"GEMINI_BASE_URL" validate:"omitempty,url"`
	Name    string       `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
}

// Gemini converts the section into the vendor client configuration.
func (c ModelConfig) Gemini(logger *slog.Logger) external.GeminiConfig {
	return external.GeminiConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Name,
		Logger:  logger,
	}
}

// PipelineConfig holds the analysis tuning constants. Defaults match
// analysis.DefaultSettings.
type PipelineConfig struct {
	SimplifyTolerance         float64       `envconfig:"SIMPLIFY_TOLERANCE" default:"0.0001" validate:"gte=0"`
	ShortRouteThresholdMeters float64       `envconfig:"SHORT_ROUTE_THRESHOLD_METERS" default:"2000" validate:"gt=0"`
	ShortRouteInterval        float64       `envconfig:"SHORT_ROUTE_INTERVAL_METERS" default:"100" validate:"gt=0"`
	LongRouteInterval         float64       `envconfig:"LONG_ROUTE_INTERVAL_METERS" default:"175" validate:"gt=0"`
	ProbeBatchSize            int           `envconfig:"PROBE_BATCH_SIZE" default:"8" validate:"gte=1,lte=64"`
	ProbeTimeout              time.Duration `envconfig:"PROBE_TIMEOUT" default:"2500ms" validate:"gt=0"`
	ImageTimeout              time.Duration `envconfig:"IMAGE_TIMEOUT" default:"4s" validate:"gt=0"`
	MaxSamples                int           `envconfig:"MAX_SAMPLES" default:"5" validate:"gte=1"`
	Headings                  []int         `envconfig:"IMAGE_HEADINGS" default:"0,180" validate:"min=1,dive,gte=0,lt=360"`
	ModelTimeout              time.Duration `envconfig:"MODEL_TIMEOUT" default:"60s" validate:"gt=0"`
	Temperature               float64       `envconfig:"MODEL_TEMPERATURE" default:"0.2" validate:"gte=0,lte=2"`
	LowCoveragePercent        int           `envconfig:"LOW_COVERAGE_PERCENT" default:"60" validate:"gte=0,lte=100"`
	StalePercent              int           `envconfig:"STALE_PERCENT" default:"30" validate:"gte=0,lte=100"`
	StaleAgeYears             float64       `envconfig:"STALE_AGE_YEARS" default:"3" validate:"gt=0"`
	MaxCards                  int           `envconfig:"MAX_CARDS" default:"6" validate:"gte=1,lte=7"`
	CardConfidence            float64       `envconfig:"CARD_CONFIDENCE" default:"0.75" validate:"gte=0,lte=1"`
	ObserverTimeout           time.Duration `envconfig:"OBSERVER_TIMEOUT" default:"2s" validate:"gt=0"`
}

// Settings converts the section into pipeline settings. Category weights are
// not configurable.
func (c PipelineConfig) Settings() analysis.Settings {
	s := analysis.DefaultSettings()
	s.SimplifyTolerance = c.SimplifyTolerance
	s.Sampling = geo.SamplingPolicy{
		ShortRouteThresholdMeters: c.ShortRouteThresholdMeters,
		ShortRouteInterval:        c.ShortRouteInterval,
		LongRouteInterval:         c.LongRouteInterval,
	}
	s.ProbeBatchSize = c.ProbeBatchSize
	s.ProbeTimeout = c.ProbeTimeout
	s.ImageTimeout = c.ImageTimeout
	s.MaxSamples = c.MaxSamples
	s.Headings = append([]int(nil), c.Headings...)
	s.ModelTimeout = c.ModelTimeout
	s.Temperature = c.Temperature
	s.LowCoveragePercent = c.LowCoveragePercent
	s.StalePercent = c.StalePercent
	s.StaleAgeYears = c.StaleAgeYears
	s.MaxCards = c.MaxCards
	s.CardConfidence = c.CardConfidence
	s.ObserverTimeout = c.ObserverTimeout
	return s
}

// AWSConfig holds AWS regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"ap-southeast-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// ObservabilityConfig holds telemetry and event publishing settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Walkability"`
	// EventsQueueURL enables analysis.completed events when set.
	EventsQueueURL string `envconfig:"EVENTS_QUEUE_URL" validate:"omitempty,url"`
}

// NeedsAWS reports whether any AWS client must be constructed.
func (c ObservabilityConfig) NeedsAWS() bool {
	return c.MetricsEnabled || c.EventsQueueURL != ""
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

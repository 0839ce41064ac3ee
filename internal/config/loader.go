// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
//  6. Check that REQUEST_TIMEOUT covers the pipeline stage budget.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
// It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without touching the working directory.
type loaderDeps struct {
	loadDotenv func() error
}

// defaultDeps returns the standard dependencies.
func defaultDeps() loaderDeps {
	return loaderDeps{
		// godotenv.Load does NOT override existing environment variables.
		loadDotenv: func() error { return godotenv.Load() },
	}
}

// LoadConfig loads and validates the configuration from the environment.
func LoadConfig() (*Config, error) {
	return loadConfigWithDeps(defaultDeps())
}

func loadConfigWithDeps(deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// A missing .env file is the normal case outside local development.
	_ = deps.loadDotenv()

	// The empty prefix "" means envconfig uses the exact tag values.
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, classifyValidationError(err)
	}

	if budget := cfg.Pipeline.Settings().StageBudget(); cfg.Server.RequestTimeout < budget {
		return nil, &ConfigError{
			Type: ErrValidation,
			Message: fmt.Sprintf("REQUEST_TIMEOUT %s is shorter than the pipeline stage budget %s",
				cfg.Server.RequestTimeout, budget),
		}
	}

	return &cfg, nil
}

// classifyValidationError reports missing required values as ErrMissingEnv
// and everything else as ErrValidation.
func classifyValidationError(err error) *ConfigError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}

	var missing []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, envNameFor(fe.StructNamespace()))
		}
	}
	if len(missing) == len(verrs) {
		sort.Strings(missing)
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: "missing required environment variables: " + strings.Join(missing, ", "),
			Err:     err,
		}
	}

	return &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
}

// requiredEnv maps struct namespaces of required fields to their variables.
var requiredEnv = map[string]string{
	"Config.Environment":    "APP_ENV",
	"Config.Imagery.APIKey": "STREETVIEW_API_KEY",
	"Config.Model.APIKey":   "GEMINI_API_KEY",
}

func envNameFor(namespace string) string {
	if name, ok := requiredEnv[namespace]; ok {
		return name
	}
	return namespace
}

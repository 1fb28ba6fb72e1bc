package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "registry.base_url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. All field errors are collected and reported together.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. It returns a
// ValidationError listing every failed rule, or nil when valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateRegistry(&cfg.Registry)...)
	errs = append(errs, validateGeo(&cfg.Geo)...)
	errs = append(errs, validateSession(&cfg.Session)...)
	errs = append(errs, validateForward(&cfg.Forward)...)
	errs = append(errs, validateAnalytics(&cfg.Analytics)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: fmt.Sprintf("invalid host:port: %v", err),
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.shutdown_timeout",
			Message: "must not be negative",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.max_header_bytes",
			Message: "must not be negative",
		})
	}
	return errs
}

func validateRegistry(cfg *RegistryConfig) []FieldError {
	var errs []FieldError

	if cfg.BaseURL == "" {
		errs = append(errs, FieldError{
			Field:   "registry.base_url",
			Message: "base URL is required",
		})
	} else if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "registry.base_url",
			Message: "must be an absolute URL",
		})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "registry.timeout",
			Message: "must be positive",
		})
	}
	return errs
}

func validateGeo(cfg *GeoConfig) []FieldError {
	var errs []FieldError

	if cfg.CachePath == "" {
		errs = append(errs, FieldError{
			Field:   "geo.cache_path",
			Message: "cache path is required",
		})
	}
	if cfg.CacheTTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "geo.cache_ttl",
			Message: "must be positive",
		})
	}
	if cfg.ProviderTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "geo.provider_timeout",
			Message: "must be positive",
		})
	}
	return errs
}

func validateSession(cfg *SessionConfig) []FieldError {
	var errs []FieldError

	if cfg.IdleTTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "session.idle_ttl",
			Message: "must be positive",
		})
	}
	if cfg.SweepInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "session.sweep_interval",
			Message: "must be positive",
		})
	}
	return errs
}

func validateForward(cfg *ForwardConfig) []FieldError {
	var errs []FieldError

	if cfg.OriginTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "forward.origin_timeout",
			Message: "must be positive",
		})
	}
	if cfg.RetryAttempts < 0 {
		errs = append(errs, FieldError{
			Field:   "forward.retry_attempts",
			Message: "must not be negative",
		})
	}
	if cfg.RetryDelay < 0 {
		errs = append(errs, FieldError{
			Field:   "forward.retry_delay",
			Message: "must not be negative",
		})
	}
	return errs
}

func validateAnalytics(cfg *AnalyticsConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return nil
	}
	if cfg.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "analytics.endpoint",
			Message: "endpoint is required when analytics is enabled",
		})
	} else if u, err := url.Parse(cfg.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "analytics.endpoint",
			Message: "must be an absolute URL",
		})
	}
	if cfg.Buffer <= 0 {
		errs = append(errs, FieldError{
			Field:   "analytics.buffer",
			Message: "must be positive",
		})
	}
	if cfg.DeliveryTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "analytics.delivery_timeout",
			Message: "must be positive",
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "must start with /",
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "must be between 0 and 1",
		})
	}
	return errs
}

package config

import "time"

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress     = "0.0.0.0:8080"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxHeaderBytes    = 1048576 // 1MB

	// Registry defaults
	DefaultRegistryTimeout = 5 * time.Second

	// Geo defaults
	DefaultGeoCachePath       = "data/geo.db"
	DefaultGeoCacheTTL        = 24 * time.Hour
	DefaultGeoProviderTimeout = 5 * time.Second
	DefaultGeoSweepSchedule   = "@hourly"
	DefaultGeoMaxOpenConns    = 4

	// Session defaults
	DefaultSessionIdleTTL       = 2 * time.Hour
	DefaultSessionSweepInterval = time.Minute

	// Forward defaults
	DefaultOriginTimeout = 30 * time.Second
	DefaultRetryAttempts = 2
	DefaultRetryDelay    = time.Second

	// Analytics defaults
	DefaultAnalyticsBuffer          = 1000
	DefaultAnalyticsDeliveryTimeout = 10 * time.Second

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultTracingServiceName = "streamcdn-edge"
	DefaultTracingSampleRatio = 1.0
)

// DefaultTrustedIPHeaders is the built-in real-IP header priority list.
// Cloudflare's header comes first since the edge commonly sits behind
// it; the standard forwarded-for variants follow.
func DefaultTrustedIPHeaders() []string {
	return []string{
		"cf-connecting-ip",
		"x-forwarded-for",
		"x-real-ip",
		"x-client-ip",
		"true-client-ip",
		"x-forwarded",
		"forwarded-for",
	}
}

// ApplyDefaults fills in default values for any unset configuration
// fields. Explicitly set values are never overwritten.
func ApplyDefaults(cfg *Config) {
	// Proxy
	if cfg.Proxy.ListenAddress == "" {
		cfg.Proxy.ListenAddress = DefaultListenAddress
	}
	if cfg.Proxy.ReadHeaderTimeout == 0 {
		cfg.Proxy.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.Proxy.IdleTimeout == 0 {
		cfg.Proxy.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Proxy.ShutdownTimeout == 0 {
		cfg.Proxy.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Proxy.MaxHeaderBytes == 0 {
		cfg.Proxy.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if len(cfg.Proxy.TrustedIPHeaders) == 0 {
		cfg.Proxy.TrustedIPHeaders = DefaultTrustedIPHeaders()
	}

	// Registry
	if cfg.Registry.Timeout == 0 {
		cfg.Registry.Timeout = DefaultRegistryTimeout
	}

	// Geo
	if cfg.Geo.CachePath == "" {
		cfg.Geo.CachePath = DefaultGeoCachePath
	}
	if cfg.Geo.CacheTTL == 0 {
		cfg.Geo.CacheTTL = DefaultGeoCacheTTL
	}
	if cfg.Geo.ProviderTimeout == 0 {
		cfg.Geo.ProviderTimeout = DefaultGeoProviderTimeout
	}
	if cfg.Geo.SweepSchedule == "" {
		cfg.Geo.SweepSchedule = DefaultGeoSweepSchedule
	}
	if cfg.Geo.MaxOpenConns == 0 {
		cfg.Geo.MaxOpenConns = DefaultGeoMaxOpenConns
	}

	// Session
	if cfg.Session.IdleTTL == 0 {
		cfg.Session.IdleTTL = DefaultSessionIdleTTL
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = DefaultSessionSweepInterval
	}

	// Forward
	if cfg.Forward.OriginTimeout == 0 {
		cfg.Forward.OriginTimeout = DefaultOriginTimeout
	}
	if cfg.Forward.RetryAttempts == 0 {
		cfg.Forward.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.Forward.RetryDelay == 0 {
		cfg.Forward.RetryDelay = DefaultRetryDelay
	}

	// Analytics
	if cfg.Analytics.Buffer == 0 {
		cfg.Analytics.Buffer = DefaultAnalyticsBuffer
	}
	if cfg.Analytics.DeliveryTimeout == 0 {
		cfg.Analytics.DeliveryTimeout = DefaultAnalyticsDeliveryTimeout
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
}

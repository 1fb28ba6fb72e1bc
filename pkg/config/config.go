package config

import "time"

// Config is the root configuration structure for the StreamCDN edge.
// It contains all configuration sections: the proxy server, the domain
// registry client, geolocation, session tracking, client classification,
// origin forwarding, analytics and telemetry.
type Config struct {
	// Proxy contains HTTP server configuration including listen address,
	// timeouts and the trusted real-IP header list.
	Proxy ProxyConfig `yaml:"proxy"`

	// Registry contains the domain registry client configuration.
	Registry RegistryConfig `yaml:"registry"`

	// Geo contains geolocation resolver and cache configuration.
	Geo GeoConfig `yaml:"geo"`

	// Session contains in-memory session tracker configuration.
	Session SessionConfig `yaml:"session"`

	// Classifier contains User-Agent classification tuning.
	Classifier ClassifierConfig `yaml:"classifier"`

	// Forward contains origin forwarding policy: timeout and retry.
	Forward ForwardConfig `yaml:"forward"`

	// Analytics contains the best-effort analytics emitter configuration.
	Analytics AnalyticsConfig `yaml:"analytics"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProxyConfig contains configuration for the inbound HTTP server.
type ProxyConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "0.0.0.0:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadHeaderTimeout bounds reading a request's headers.
	// Default: 10s
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// IdleTimeout is the keep-alive idle timeout. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown; in-flight streams past
	// this are cut. Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size. Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// TrustedIPHeaders is the priority-ordered list of headers consulted
	// for the real client IP. The first header yielding a well-formed
	// public IP wins; the transport peer address is the fallback.
	TrustedIPHeaders []string `yaml:"trusted_ip_headers"`
}

// RegistryConfig contains configuration for the domain registry client.
type RegistryConfig struct {
	// BaseURL is the registry service base URL. Required.
	BaseURL string `yaml:"base_url"`

	// APIToken authenticates lookups, sent as a bearer token.
	APIToken string `yaml:"api_token"`

	// Timeout bounds each lookup. Default: 5s
	Timeout time.Duration `yaml:"timeout"`
}

// GeoConfig contains configuration for the geolocation resolver.
type GeoConfig struct {
	// CachePath is the SQLite cache file path. Default: "data/geo.db"
	CachePath string `yaml:"cache_path"`

	// CacheTTL is how long a cached entry stays fresh. Default: 24h
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// ProviderTimeout bounds each upstream provider call. Default: 5s
	ProviderTimeout time.Duration `yaml:"provider_timeout"`

	// SweepSchedule is the cron spec for purging expired cache rows.
	// Default: "@hourly"
	SweepSchedule string `yaml:"sweep_schedule"`

	// MaxOpenConns limits SQLite connections. Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`
}

// SessionConfig contains configuration for the session tracker.
type SessionConfig struct {
	// IdleTTL is how long a session survives without a request.
	// Default: 2h
	IdleTTL time.Duration `yaml:"idle_ttl"`

	// SweepInterval is the minimum spacing between idle sweeps.
	// Default: 1m
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ClassifierConfig contains User-Agent classification tuning.
type ClassifierConfig struct {
	// OkHTTPStrictBrowserCheck keeps okhttp 3.x UAs classified as
	// mobile apps even when they carry browser-engine tokens.
	// Default: false
	OkHTTPStrictBrowserCheck bool `yaml:"okhttp_strict_browser_check"`

	// ExtraBotSignatures extends the built-in bot signature list.
	ExtraBotSignatures []string `yaml:"extra_bot_signatures"`

	// ExtraSmartTVSignatures extends the built-in TV signature list.
	ExtraSmartTVSignatures []string `yaml:"extra_smart_tv_signatures"`
}

// ForwardConfig contains origin forwarding policy.
type ForwardConfig struct {
	// OriginTimeout bounds each origin attempt, response headers
	// included. Default: 30s
	OriginTimeout time.Duration `yaml:"origin_timeout"`

	// RetryAttempts is the number of retries after the first attempt,
	// taken only on connection errors and timeouts. Default: 2
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryDelay is the fixed delay between attempts. Default: 1s
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// AnalyticsConfig contains configuration for the analytics emitter.
type AnalyticsConfig struct {
	// Enabled turns event emission on. Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the ingestion URL events are POSTed to. Required
	// when enabled.
	Endpoint string `yaml:"endpoint"`

	// APIToken authenticates event delivery.
	APIToken string `yaml:"api_token"`

	// Buffer is the async event channel size. Default: 1000
	Buffer int `yaml:"buffer"`

	// DeliveryTimeout bounds the single delivery attempt per event.
	// Default: 10s
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level. Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled turns metric recording and the scrape endpoint on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is where the scrape handler is mounted. Default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled turns span export on. Default: false
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this process in traces.
	// Default: "streamcdn-edge"
	ServiceName string `yaml:"service_name"`

	// Endpoint is the OTLP gRPC collector endpoint. Required when
	// enabled.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS on the collector connection.
	Insecure bool `yaml:"insecure"`

	// SampleRatio is the fraction of root traces sampled, 0..1.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`
}

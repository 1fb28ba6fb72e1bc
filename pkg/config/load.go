package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NewDefault returns a configuration with every boolean feature at its
// documented default. YAML unmarshalling leaves absent keys untouched,
// so loading starts from this value rather than the zero Config.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a YAML file at the specified
// path, applies defaults and validates the result. Environment
// variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := NewDefault()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention STREAMCDN_SECTION_FIELD (e.g. STREAMCDN_PROXY_LISTEN_ADDRESS)
// and always take precedence over file values.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate the final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies STREAMCDN_SECTION_FIELD environment
// variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Proxy
	setString("STREAMCDN_PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	setDuration("STREAMCDN_PROXY_READ_HEADER_TIMEOUT", &cfg.Proxy.ReadHeaderTimeout)
	setDuration("STREAMCDN_PROXY_IDLE_TIMEOUT", &cfg.Proxy.IdleTimeout)
	setDuration("STREAMCDN_PROXY_SHUTDOWN_TIMEOUT", &cfg.Proxy.ShutdownTimeout)
	setInt("STREAMCDN_PROXY_MAX_HEADER_BYTES", &cfg.Proxy.MaxHeaderBytes)
	if val := os.Getenv("STREAMCDN_PROXY_TRUSTED_IP_HEADERS"); val != "" {
		var headers []string
		for _, h := range strings.Split(val, ",") {
			if h = strings.TrimSpace(h); h != "" {
				headers = append(headers, h)
			}
		}
		if len(headers) > 0 {
			cfg.Proxy.TrustedIPHeaders = headers
		}
	}

	// Registry
	setString("STREAMCDN_REGISTRY_BASE_URL", &cfg.Registry.BaseURL)
	setString("STREAMCDN_REGISTRY_API_TOKEN", &cfg.Registry.APIToken)
	setDuration("STREAMCDN_REGISTRY_TIMEOUT", &cfg.Registry.Timeout)

	// Geo
	setString("STREAMCDN_GEO_CACHE_PATH", &cfg.Geo.CachePath)
	setDuration("STREAMCDN_GEO_CACHE_TTL", &cfg.Geo.CacheTTL)
	setDuration("STREAMCDN_GEO_PROVIDER_TIMEOUT", &cfg.Geo.ProviderTimeout)
	setString("STREAMCDN_GEO_SWEEP_SCHEDULE", &cfg.Geo.SweepSchedule)
	setInt("STREAMCDN_GEO_MAX_OPEN_CONNS", &cfg.Geo.MaxOpenConns)

	// Session
	setDuration("STREAMCDN_SESSION_IDLE_TTL", &cfg.Session.IdleTTL)
	setDuration("STREAMCDN_SESSION_SWEEP_INTERVAL", &cfg.Session.SweepInterval)

	// Classifier
	setBool("STREAMCDN_CLASSIFIER_OKHTTP_STRICT_BROWSER_CHECK", &cfg.Classifier.OkHTTPStrictBrowserCheck)

	// Forward
	setDuration("STREAMCDN_FORWARD_ORIGIN_TIMEOUT", &cfg.Forward.OriginTimeout)
	setInt("STREAMCDN_FORWARD_RETRY_ATTEMPTS", &cfg.Forward.RetryAttempts)
	setDuration("STREAMCDN_FORWARD_RETRY_DELAY", &cfg.Forward.RetryDelay)

	// Analytics
	setBool("STREAMCDN_ANALYTICS_ENABLED", &cfg.Analytics.Enabled)
	setString("STREAMCDN_ANALYTICS_ENDPOINT", &cfg.Analytics.Endpoint)
	setString("STREAMCDN_ANALYTICS_API_TOKEN", &cfg.Analytics.APIToken)
	setInt("STREAMCDN_ANALYTICS_BUFFER", &cfg.Analytics.Buffer)
	setDuration("STREAMCDN_ANALYTICS_DELIVERY_TIMEOUT", &cfg.Analytics.DeliveryTimeout)

	// Telemetry
	setString("STREAMCDN_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("STREAMCDN_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	setBool("STREAMCDN_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	setString("STREAMCDN_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	setBool("STREAMCDN_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	setString("STREAMCDN_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	setBool("STREAMCDN_TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
	setFloat("STREAMCDN_TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

func setString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setFloat(key string, dst *float64) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

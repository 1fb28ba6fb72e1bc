// Package metrics exposes the edge's Prometheus metrics. A single
// Collector owns the registry and implements the small Metrics
// interfaces the domain packages accept, so leaf packages never import
// Prometheus directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config contains configuration for the metrics collector.
type Config struct {
	// Enabled turns metric recording on. When false every Record*
	// method is a no-op.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix. Default: "streamcdn".
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric name subsystem. Default: "edge".
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets are histogram buckets for request
	// latency. Defaults cover 10ms to 60s; streaming requests sit at
	// the top end since duration spans the full body relay.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// Collector owns all Prometheus metrics for the edge.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	request   *requestMetrics
	geo       *geoMetrics
	session   *sessionMetrics
	analytics *analyticsMetrics
}

// NewCollector creates a metrics collector registered against registry.
// A nil registry gets a fresh private one.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "streamcdn"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "edge"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	}

	return &Collector{
		config:    cfg,
		registry:  registry,
		request:   newRequestMetrics(cfg, registry),
		geo:       newGeoMetrics(cfg, registry),
		session:   newSessionMetrics(cfg, registry),
		analytics: newAnalyticsMetrics(cfg, registry),
	}
}

// RecordRequest records one completed inbound request.
// branch is the routing outcome ("proxy", "status_page", "redirect",
// "health"); device is the classified category; status is the HTTP
// status code sent to the client.
func (c *Collector) RecordRequest(branch, device string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.request.record(branch, device, status, duration)
}

// AddBytesTransferred accounts bytes relayed from an origin to clients.
func (c *Collector) AddBytesTransferred(n int64) {
	if !c.config.Enabled || n <= 0 {
		return
	}
	c.request.bytesTotal.Add(float64(n))
}

// RecordForwardRetry counts one retry of an origin request.
func (c *Collector) RecordForwardRetry() {
	if !c.config.Enabled {
		return
	}
	c.request.retriesTotal.Inc()
}

// RecordOriginError counts a forwarding failure after all attempts.
// kind is "connection" or "timeout".
func (c *Collector) RecordOriginError(kind string) {
	if !c.config.Enabled {
		return
	}
	c.request.originErrors.WithLabelValues(kind).Inc()
}

// GeoCacheHit counts a geolocation cache hit.
func (c *Collector) GeoCacheHit() {
	if !c.config.Enabled {
		return
	}
	c.geo.cacheHits.Inc()
}

// GeoCacheMiss counts a geolocation cache miss.
func (c *Collector) GeoCacheMiss() {
	if !c.config.Enabled {
		return
	}
	c.geo.cacheMisses.Inc()
}

// GeoProviderCall counts one upstream geolocation provider call.
func (c *Collector) GeoProviderCall(provider string, success bool) {
	if !c.config.Enabled {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.geo.providerCalls.WithLabelValues(provider, outcome).Inc()
}

// SetGeoCacheSize reports the current geolocation cache entry count.
func (c *Collector) SetGeoCacheSize(n int64) {
	if !c.config.Enabled {
		return
	}
	c.geo.cacheSize.Set(float64(n))
}

// SetActiveSessions reports the current in-memory session count.
func (c *Collector) SetActiveSessions(n int) {
	if !c.config.Enabled {
		return
	}
	c.session.active.Set(float64(n))
}

// RecordSessionChange counts one session update by change type.
func (c *Collector) RecordSessionChange(changeType string) {
	if !c.config.Enabled {
		return
	}
	c.session.changes.WithLabelValues(changeType).Inc()
}

// AnalyticsEmitted counts a successfully delivered analytics event.
func (c *Collector) AnalyticsEmitted() {
	if !c.config.Enabled {
		return
	}
	c.analytics.emitted.Inc()
}

// AnalyticsDropped counts a dropped analytics event by reason
// ("buffer_full", "delivery_failed").
func (c *Collector) AnalyticsDropped(reason string) {
	if !c.config.Enabled {
		return
	}
	c.analytics.dropped.WithLabelValues(reason).Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

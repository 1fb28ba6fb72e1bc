package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// requestMetrics tracks the inbound request pipeline.
//
// Metrics:
//   - streamcdn_edge_requests_total{branch,device,status}
//   - streamcdn_edge_request_duration_seconds{branch}
//   - streamcdn_edge_bytes_transferred_total
//   - streamcdn_edge_forward_retries_total
//   - streamcdn_edge_origin_errors_total{kind}
type requestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesTotal      prometheus.Counter
	retriesTotal    prometheus.Counter
	originErrors    *prometheus.CounterVec
}

func newRequestMetrics(cfg Config, registry *prometheus.Registry) *requestMetrics {
	rm := &requestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total inbound requests by routing branch, device category and status code",
			},
			[]string{"branch", "device", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Request duration including full body relay",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"branch"},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "bytes_transferred_total",
				Help:      "Bytes relayed from origins to clients",
			},
		),
		retriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "forward_retries_total",
				Help:      "Origin request retries after connection errors or timeouts",
			},
		),
		originErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "origin_errors_total",
				Help:      "Forwarding failures after all attempts, by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.bytesTotal,
		rm.retriesTotal,
		rm.originErrors,
	)
	return rm
}

func (rm *requestMetrics) record(branch, device string, status int, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(branch, device, strconv.Itoa(status)).Inc()
	rm.requestDuration.WithLabelValues(branch).Observe(duration.Seconds())
}

// geoMetrics tracks the geolocation resolver and its cache.
type geoMetrics struct {
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	cacheSize     prometheus.Gauge
	providerCalls *prometheus.CounterVec
}

func newGeoMetrics(cfg Config, registry *prometheus.Registry) *geoMetrics {
	gm := &geoMetrics{
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "geo_cache_hits_total",
				Help:      "Geolocation cache hits",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "geo_cache_misses_total",
				Help:      "Geolocation cache misses",
			},
		),
		cacheSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "geo_cache_entries",
				Help:      "Current geolocation cache entry count",
			},
		),
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "geo_provider_calls_total",
				Help:      "Upstream geolocation provider calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
	}

	registry.MustRegister(gm.cacheHits, gm.cacheMisses, gm.cacheSize, gm.providerCalls)
	return gm
}

// sessionMetrics tracks the in-memory session map.
type sessionMetrics struct {
	active  prometheus.Gauge
	changes *prometheus.CounterVec
}

func newSessionMetrics(cfg Config, registry *prometheus.Registry) *sessionMetrics {
	sm := &sessionMetrics{
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_active",
				Help:      "Current in-memory streaming session count",
			},
		),
		changes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "session_changes_total",
				Help:      "Session updates by change type",
			},
			[]string{"change_type"},
		),
	}

	registry.MustRegister(sm.active, sm.changes)
	return sm
}

// analyticsMetrics tracks the best-effort analytics pipeline.
type analyticsMetrics struct {
	emitted prometheus.Counter
	dropped *prometheus.CounterVec
}

func newAnalyticsMetrics(cfg Config, registry *prometheus.Registry) *analyticsMetrics {
	am := &analyticsMetrics{
		emitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "analytics_events_emitted_total",
				Help:      "Analytics events delivered to the ingestion endpoint",
			},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "analytics_events_dropped_total",
				Help:      "Analytics events dropped, by reason",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(am.emitted, am.dropped)
	return am
}

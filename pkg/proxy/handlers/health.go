// Package handlers contains the edge's own HTTP endpoints, served next
// to proxied traffic: the health report and related diagnostics.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"streamcdn/edge/pkg/proxy"
)

// GeoStats exposes geolocation cache state for the health report.
type GeoStats interface {
	CacheSize(ctx context.Context) int64
}

// SessionStats exposes session tracker state for the health report.
type SessionStats interface {
	Len() int
}

// HealthConfig describes the running service.
type HealthConfig struct {
	ServiceName string
	Version     string

	// TrustedIPHeaders feeds the real-IP echo block.
	TrustedIPHeaders []string

	AnalyticsEnabled bool
	TracingEnabled   bool
}

// Health answers a JSON health report: service identity, uptime, the
// caller's resolved IP with the evidence behind it, and live cache and
// session counts.
type Health struct {
	cfg      HealthConfig
	geo      GeoStats
	sessions SessionStats
	started  time.Time
}

// NewHealth creates the health handler. geo and sessions may be nil.
func NewHealth(cfg HealthConfig, geo GeoStats, sessions SessionStats) *Health {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "streamcdn-edge"
	}
	return &Health{
		cfg:      cfg,
		geo:      geo,
		sessions: sessions,
		started:  time.Now(),
	}
}

type healthResponse struct {
	Status    string          `json:"status"`
	Service   string          `json:"service"`
	Version   string          `json:"version,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	UptimeSec int64           `json:"uptime_seconds"`
	ClientIP  healthClientIP  `json:"client_ip"`
	Stats     healthStats     `json:"stats"`
	Features  map[string]bool `json:"features"`
}

type healthClientIP struct {
	IP            string            `json:"ip"`
	Source        string            `json:"source"`
	ViaCloudflare bool              `json:"via_cloudflare"`
	ViaProxy      bool              `json:"via_proxy"`
	Headers       map[string]string `json:"headers,omitempty"`
}

type healthStats struct {
	GeoCacheSize   int64 `json:"geo_cache_size"`
	ActiveSessions int   `json:"active_sessions"`
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	det := proxy.DetectClientIP(r, h.cfg.TrustedIPHeaders)

	resp := healthResponse{
		Status:    "healthy",
		Service:   h.cfg.ServiceName,
		Version:   h.cfg.Version,
		Timestamp: time.Now().UTC(),
		UptimeSec: int64(time.Since(h.started).Seconds()),
		ClientIP: healthClientIP{
			IP:            det.IP,
			Source:        det.Source,
			ViaCloudflare: det.ViaCloudflare,
			ViaProxy:      det.ViaProxy,
			Headers:       det.Headers,
		},
		Features: map[string]bool{
			"analytics": h.cfg.AnalyticsEnabled,
			"tracing":   h.cfg.TracingEnabled,
		},
	}
	if h.geo != nil {
		resp.Stats.GeoCacheSize = h.geo.CacheSize(r.Context())
	}
	if h.sessions != nil {
		resp.Stats.ActiveSessions = h.sessions.Len()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

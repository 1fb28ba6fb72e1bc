package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
)

type staticGeoStats int64

func (s staticGeoStats) CacheSize(ctx context.Context) int64 { return int64(s) }

type staticSessionStats int

func (s staticSessionStats) Len() int { return int(s) }

var healthTrustedHeaders = []string{"cf-connecting-ip", "x-forwarded-for", "x-real-ip"}

func TestHealth_Report(t *testing.T) {
	h := NewHealth(HealthConfig{
		ServiceName:      "streamcdn-edge",
		Version:          "1.2.3",
		TrustedIPHeaders: healthTrustedHeaders,
		AnalyticsEnabled: true,
	}, staticGeoStats(42), staticSessionStats(7))

	r := httptest.NewRequest("GET", "http://edge.example/health", nil)
	r.RemoteAddr = "10.0.0.1:5000"
	r.Header.Set("CF-Connecting-IP", "203.0.113.4")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, r)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp struct {
		Status   string `json:"status"`
		Service  string `json:"service"`
		Version  string `json:"version"`
		ClientIP struct {
			IP            string `json:"ip"`
			Source        string `json:"source"`
			ViaCloudflare bool   `json:"via_cloudflare"`
		} `json:"client_ip"`
		Stats struct {
			GeoCacheSize   int64 `json:"geo_cache_size"`
			ActiveSessions int   `json:"active_sessions"`
		} `json:"stats"`
		Features map[string]bool `json:"features"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if resp.Status != "healthy" || resp.Service != "streamcdn-edge" || resp.Version != "1.2.3" {
		t.Errorf("identity = %q/%q/%q", resp.Status, resp.Service, resp.Version)
	}
	if resp.ClientIP.IP != "203.0.113.4" || !resp.ClientIP.ViaCloudflare {
		t.Errorf("client_ip = %+v, want Cloudflare-attributed IP", resp.ClientIP)
	}
	if resp.Stats.GeoCacheSize != 42 || resp.Stats.ActiveSessions != 7 {
		t.Errorf("stats = %+v", resp.Stats)
	}
	if !resp.Features["analytics"] || resp.Features["tracing"] {
		t.Errorf("features = %v", resp.Features)
	}
}

func TestHealth_NilCollaborators(t *testing.T) {
	h := NewHealth(HealthConfig{TrustedIPHeaders: healthTrustedHeaders}, nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp["service"] != "streamcdn-edge" {
		t.Errorf("service default = %v", resp["service"])
	}
}

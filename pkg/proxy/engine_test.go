package proxy

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, cfg EngineConfig) *Engine {
	t.Helper()
	if cfg.OriginTimeout == 0 {
		cfg.OriginTimeout = 2 * time.Second
	}
	return NewEngine(cfg, nil, nil)
}

func TestForward_StreamsBodyAndCountsBytes(t *testing.T) {
	payload := strings.Repeat("segmentdata!", 1024)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RequestURI() != "/show/s02e10.m3u8?x=1" {
			t.Errorf("origin saw %q, want live path+query", r.URL.RequestURI())
		}
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		// Chunked transfer: no Content-Length, bytes must still be
		// counted from the stream itself.
		w.Write([]byte(payload))
	}))
	defer origin.Close()

	e := newTestEngine(t, EngineConfig{RetryAttempts: 2, RetryDelay: 10 * time.Millisecond})

	req := httptest.NewRequest("GET", "http://tv.example/show/s02e10.m3u8?x=1", nil)
	rec := httptest.NewRecorder()

	res, err := e.Forward(rec, req, origin.URL, "203.0.113.4")
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	if res.StatusCode != 200 || rec.Code != 200 {
		t.Errorf("status = %d/%d, want 200", res.StatusCode, rec.Code)
	}
	if res.BytesTransferred != int64(len(payload)) {
		t.Errorf("BytesTransferred = %d, want %d", res.BytesTransferred, len(payload))
	}
	if rec.Body.String() != payload {
		t.Error("body not relayed verbatim")
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.apple.mpegurl" {
		t.Errorf("Content-Type = %q, want origin's", ct)
	}
}

func TestForward_HeaderHygiene(t *testing.T) {
	var gotHeader http.Header
	var gotHost string
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotHost = r.Host
	}))
	defer origin.Close()

	e := newTestEngine(t, EngineConfig{})

	req := httptest.NewRequest("GET", "http://tv.example/live.ts", nil)
	req.Header.Set("User-Agent", "TiviMate/4.7.0")
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	req.Header.Set("CF-Connecting-IP", "1.2.3.4")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Authorization", "Bearer stream-token")

	if _, err := e.Forward(httptest.NewRecorder(), req, origin.URL, "203.0.113.4"); err != nil {
		t.Fatalf("Forward() error: %v", err)
	}

	if got := gotHeader.Get("X-Forwarded-For"); got != "203.0.113.4" {
		t.Errorf("X-Forwarded-For = %q, want resolved client IP", got)
	}
	if got := gotHeader.Get("X-Real-IP"); got != "203.0.113.4" {
		t.Errorf("X-Real-IP = %q, want resolved client IP", got)
	}
	if gotHeader.Get("CF-Connecting-IP") != "" {
		t.Error("CF-Connecting-IP leaked to origin")
	}
	if gotHeader.Get("User-Agent") != "TiviMate/4.7.0" {
		t.Error("User-Agent not preserved")
	}
	if gotHeader.Get("Authorization") != "Bearer stream-token" {
		t.Error("Authorization not preserved")
	}
	if !strings.Contains(origin.URL, gotHost) {
		t.Errorf("origin saw Host %q, want origin host", gotHost)
	}
}

func TestForward_5xxRelayedWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("origin says no"))
	}))
	defer origin.Close()

	e := newTestEngine(t, EngineConfig{RetryAttempts: 2, RetryDelay: 10 * time.Millisecond})

	rec := httptest.NewRecorder()
	res, err := e.Forward(rec, httptest.NewRequest("GET", "http://tv.example/a", nil), origin.URL, "203.0.113.4")
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	if res.StatusCode != 503 || rec.Code != 503 {
		t.Errorf("status = %d, want 503 relayed", rec.Code)
	}
	if calls.Load() != 1 {
		t.Errorf("origin called %d times, want 1 (no retry on HTTP status)", calls.Load())
	}
}

func TestForward_RetriesConnectionErrorThenFails(t *testing.T) {
	// A closed server refuses connections.
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	origin.Close()

	retries := &countingEngineMetrics{}
	e := NewEngine(EngineConfig{OriginTimeout: time.Second, RetryAttempts: 2, RetryDelay: 5 * time.Millisecond}, nil, retries)

	rec := httptest.NewRecorder()
	res, err := e.Forward(rec, httptest.NewRequest("GET", "http://tv.example/a", nil), origin.URL, "203.0.113.4")

	var originErr *OriginError
	if !errors.As(err, &originErr) {
		t.Fatalf("err = %v, want *OriginError", err)
	}
	if originErr.Kind != OriginConnection {
		t.Errorf("Kind = %q, want connection", originErr.Kind)
	}
	if originErr.StatusCode() != 502 {
		t.Errorf("StatusCode() = %d, want 502", originErr.StatusCode())
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3 (1 + 2 retries)", res.Attempts)
	}
	if retries.retries.Load() != 2 {
		t.Errorf("retry metric = %d, want 2", retries.retries.Load())
	}
	if rec.Body.Len() != 0 {
		t.Error("failed forward wrote to the client")
	}
}

func TestForward_RecoversOnRetry(t *testing.T) {
	var calls atomic.Int32
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Kill the first connection mid-exchange.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("recorder cannot hijack")
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer origin.Close()

	e := newTestEngine(t, EngineConfig{RetryAttempts: 2, RetryDelay: 5 * time.Millisecond})

	rec := httptest.NewRecorder()
	res, err := e.Forward(rec, httptest.NewRequest("GET", "http://tv.example/a", nil), origin.URL, "203.0.113.4")
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	if rec.Body.String() != "recovered" {
		t.Errorf("body = %q, want recovered", rec.Body.String())
	}
}

func TestForward_TimeoutMapsTo504(t *testing.T) {
	block := make(chan struct{})
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer origin.Close()
	defer close(block)

	e := NewEngine(EngineConfig{OriginTimeout: 100 * time.Millisecond, RetryAttempts: 1, RetryDelay: 5 * time.Millisecond}, nil, nil)

	_, err := e.Forward(httptest.NewRecorder(), httptest.NewRequest("GET", "http://tv.example/a", nil), origin.URL, "203.0.113.4")

	var originErr *OriginError
	if !errors.As(err, &originErr) {
		t.Fatalf("err = %v, want *OriginError", err)
	}
	if originErr.Kind != OriginTimeout {
		t.Errorf("Kind = %q, want timeout", originErr.Kind)
	}
	if originErr.StatusCode() != 504 {
		t.Errorf("StatusCode() = %d, want 504", originErr.StatusCode())
	}
	if originErr.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", originErr.Attempts)
	}
}

func TestForward_BodyReplayedOnRetry(t *testing.T) {
	var calls atomic.Int32
	var gotBody string
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("cannot hijack")
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer origin.Close()

	e := newTestEngine(t, EngineConfig{RetryAttempts: 2, RetryDelay: 5 * time.Millisecond})

	req := httptest.NewRequest("POST", "http://tv.example/auth", strings.NewReader("user=tv&token=abc"))
	res, err := e.Forward(httptest.NewRecorder(), req, origin.URL, "203.0.113.4")
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	if gotBody != "user=tv&token=abc" {
		t.Errorf("retried attempt saw body %q, want full replay", gotBody)
	}
}

func TestForward_OversizedBodyDeliveredWhole(t *testing.T) {
	var gotLen int64
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLen, _ = io.Copy(io.Discard, r.Body)
	}))
	defer origin.Close()

	e := newTestEngine(t, EngineConfig{RetryAttempts: 2, RetryDelay: 5 * time.Millisecond})

	payload := strings.Repeat("x", maxReplayBodyBytes+10)
	req := httptest.NewRequest("POST", "http://tv.example/upload", strings.NewReader(payload))
	res, err := e.Forward(httptest.NewRecorder(), req, origin.URL, "203.0.113.4")
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	if gotLen != int64(len(payload)) {
		t.Errorf("origin received %d bytes, want %d", gotLen, len(payload))
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestForward_OversizedBodyNotRetried(t *testing.T) {
	// A body past the replay cap cannot be resent, so a connection
	// failure must not be retried.
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	origin.Close()

	e := NewEngine(EngineConfig{OriginTimeout: time.Second, RetryAttempts: 2, RetryDelay: 5 * time.Millisecond}, nil, nil)

	payload := strings.Repeat("x", maxReplayBodyBytes+10)
	req := httptest.NewRequest("POST", "http://tv.example/upload", strings.NewReader(payload))
	res, err := e.Forward(httptest.NewRecorder(), req, origin.URL, "203.0.113.4")

	var originErr *OriginError
	if !errors.As(err, &originErr) {
		t.Fatalf("err = %v, want *OriginError", err)
	}
	if res.Attempts != 1 || originErr.Attempts != 1 {
		t.Errorf("Attempts = %d/%d, want single attempt", res.Attempts, originErr.Attempts)
	}
}

func TestForward_RedirectRelayedUntouched(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "http://cdn.upstream.example/segment/42.ts")
		w.Header().Set("Content-Length", "512")
		w.WriteHeader(http.StatusFound)
	}))
	defer origin.Close()

	e := newTestEngine(t, EngineConfig{})

	rec := httptest.NewRecorder()
	res, err := e.Forward(rec, httptest.NewRequest("GET", "http://tv.example/segment/42.ts", nil), origin.URL, "203.0.113.4")
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want 302 relayed", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "http://cdn.upstream.example/segment/42.ts" {
		t.Errorf("Location = %q, must be untouched", loc)
	}
	if res.BytesTransferred != 512 {
		t.Errorf("BytesTransferred = %d, want declared Content-Length", res.BytesTransferred)
	}
}

func TestForward_InvalidOriginURL(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	if _, err := e.Forward(httptest.NewRecorder(), httptest.NewRequest("GET", "http://x/", nil), "::bad::", "1.1.1.1"); err == nil {
		t.Error("Forward() accepted a garbage origin URL")
	}
}

type countingEngineMetrics struct {
	retries atomic.Int64
	errors  atomic.Int64
	bytes   atomic.Int64
}

func (m *countingEngineMetrics) RecordForwardRetry()           { m.retries.Add(1) }
func (m *countingEngineMetrics) RecordOriginError(kind string) { m.errors.Add(1) }
func (m *countingEngineMetrics) AddBytesTransferred(n int64)   { m.bytes.Add(n) }

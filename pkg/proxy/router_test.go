package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"streamcdn/edge/pkg/analytics"
	"streamcdn/edge/pkg/classify"
	"streamcdn/edge/pkg/geo"
	"streamcdn/edge/pkg/registry"
	"streamcdn/edge/pkg/session"
)

const (
	smartTVUA = "TiviMate/4.7.0 (Android 11)"
	botUA     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

type fakeRegistry struct {
	records map[string]*registry.DomainRecord
	err     error
}

func (f *fakeRegistry) Lookup(ctx context.Context, hostname string) (*registry.DomainRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.records[hostname]; ok {
		return rec, nil
	}
	return nil, registry.ErrNotFound
}

type fakeGeo struct {
	info  geo.Info
	delay time.Duration
}

func (f *fakeGeo) Resolve(ctx context.Context, ip string) geo.Info {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.info
}

type captureEmitter struct {
	mu     sync.Mutex
	events []*analytics.AccessEvent
}

func (c *captureEmitter) Emit(event *analytics.AccessEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureEmitter) snapshot() []*analytics.AccessEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*analytics.AccessEvent(nil), c.events...)
}

// waitForEvent polls for the async analytics handoff.
func (c *captureEmitter) waitForEvent(t *testing.T) *analytics.AccessEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := c.snapshot(); len(events) > 0 {
			return events[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no analytics event emitted")
	return nil
}

type routerFixture struct {
	router  *Router
	emitter *captureEmitter
}

func newRouterFixture(t *testing.T, reg registry.Client, g GeoResolver) *routerFixture {
	t.Helper()
	if g == nil {
		g = &fakeGeo{info: geo.Info{Country: "Germany", CountryCode: "DE", City: "Berlin"}}
	}
	emitter := &captureEmitter{}
	engine := NewEngine(EngineConfig{OriginTimeout: 2 * time.Second, RetryAttempts: 0, RetryDelay: time.Millisecond}, nil, nil)
	router := NewRouter(
		RouterConfig{TrustedIPHeaders: testTrustedHeaders},
		reg,
		classify.New(classify.Config{}),
		g,
		session.NewTracker(session.Config{}),
		engine,
		emitter,
		nil,
		nil,
	)
	return &routerFixture{router: router, emitter: emitter}
}

func activeRecord(hostname, originURL string) *registry.DomainRecord {
	return &registry.DomainRecord{
		ID:               "dom_1",
		Hostname:         hostname,
		OriginURL:        originURL,
		Status:           registry.DomainActive,
		OwnerStatus:      registry.AccountActive,
		AnalyticsEnabled: true,
		PlanName:         "Pro",
	}
}

func TestRouter_SmartTVForwardedWithAnalytics(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RequestURI() != "/series/s02e10.m3u8?token=abc" {
			t.Errorf("origin saw %q", r.URL.RequestURI())
		}
		w.Write([]byte("#EXTM3U\nsegment-1.ts\n"))
	}))
	defer origin.Close()

	reg := &fakeRegistry{records: map[string]*registry.DomainRecord{
		"tv.example": activeRecord("tv.example", origin.URL),
	}}
	fx := newRouterFixture(t, reg, nil)

	r := httptest.NewRequest("GET", "http://tv.example/series/s02e10.m3u8?token=abc", nil)
	r.Header.Set("User-Agent", smartTVUA)
	r.Header.Set("X-Forwarded-For", "198.51.100.7")
	rec := httptest.NewRecorder()

	fx.router.ServeHTTP(rec, r)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "#EXTM3U") {
		t.Error("origin body not relayed")
	}

	event := fx.emitter.waitForEvent(t)
	if event.Domain != "tv.example" || event.DomainID != "dom_1" {
		t.Errorf("event domain = %q/%q", event.Domain, event.DomainID)
	}
	if event.DeviceType != "SmartTV" {
		t.Errorf("DeviceType = %q, want SmartTV", event.DeviceType)
	}
	if event.AppName != "TiviMate" {
		t.Errorf("AppName = %q, want TiviMate", event.AppName)
	}
	if event.ClientIP != "198.51.100.7" {
		t.Errorf("ClientIP = %q", event.ClientIP)
	}
	if event.Country != "Germany" || event.City != "Berlin" {
		t.Errorf("geo = %q/%q, want resolved location", event.Country, event.City)
	}
	if event.BytesTransferred != int64(len("#EXTM3U\nsegment-1.ts\n")) {
		t.Errorf("BytesTransferred = %d", event.BytesTransferred)
	}
	if event.SessionID == "" {
		t.Error("SessionID empty")
	}
	if event.EpisodeInfo == nil || event.EpisodeInfo.Season != 2 || event.EpisodeInfo.Episode != 10 {
		t.Errorf("EpisodeInfo = %+v, want s02e10", event.EpisodeInfo)
	}
	if !event.EpisodeChanged {
		t.Error("EpisodeChanged = false for a first parsed episode")
	}
}

func TestRouter_BotNeverReachesOrigin(t *testing.T) {
	originCalled := false
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		originCalled = true
	}))
	defer origin.Close()

	reg := &fakeRegistry{records: map[string]*registry.DomainRecord{
		"tv.example": activeRecord("tv.example", origin.URL),
	}}
	fx := newRouterFixture(t, reg, nil)

	r := httptest.NewRequest("GET", "http://tv.example/live.ts", nil)
	r.Header.Set("User-Agent", botUA)
	rec := httptest.NewRecorder()

	fx.router.ServeHTTP(rec, r)

	if originCalled {
		t.Error("bot request was forwarded to the origin")
	}
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200 diagnostics page for active domain", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want html", ct)
	}
	if strings.Contains(rec.Body.String(), origin.URL) {
		t.Error("status page leaked the origin URL")
	}
	if len(fx.emitter.snapshot()) != 0 {
		t.Error("bot traffic produced an analytics event")
	}
}

func TestRouter_StatusProbeForcesStatusPage(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("probe reached the origin")
	}))
	defer origin.Close()

	reg := &fakeRegistry{records: map[string]*registry.DomainRecord{
		"tv.example": activeRecord("tv.example", origin.URL),
	}}
	fx := newRouterFixture(t, reg, nil)

	for _, target := range []string{
		"http://tv.example/live.ts?status=1",
		"http://tv.example/__status",
	} {
		r := httptest.NewRequest("GET", target, nil)
		r.Header.Set("User-Agent", smartTVUA)
		rec := httptest.NewRecorder()

		fx.router.ServeHTTP(rec, r)

		if rec.Code != 200 {
			t.Errorf("%s: status = %d, want 200", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "active and serving") {
			t.Errorf("%s: body is not the status page", target)
		}
	}
}

func TestRouter_UnknownDomain404(t *testing.T) {
	fx := newRouterFixture(t, &fakeRegistry{}, nil)

	r := httptest.NewRequest("GET", "http://nobody.example/x", nil)
	r.Header.Set("User-Agent", smartTVUA)
	rec := httptest.NewRecorder()

	fx.router.ServeHTTP(rec, r)

	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not configured") {
		t.Error("body is not the unknown-domain page")
	}
}

func TestRouter_SuspendedAndExpired403(t *testing.T) {
	suspended := activeRecord("susp.example", "http://origin.invalid")
	suspended.OwnerStatus = registry.AccountSuspended

	past := time.Now().Add(-24 * time.Hour)
	expired := activeRecord("exp.example", "http://origin.invalid")
	expired.ExpiresAt = &past

	reg := &fakeRegistry{records: map[string]*registry.DomainRecord{
		"susp.example": suspended,
		"exp.example":  expired,
	}}
	fx := newRouterFixture(t, reg, nil)

	for host, want := range map[string]string{
		"susp.example": "suspended",
		"exp.example":  "expired",
	} {
		r := httptest.NewRequest("GET", "http://"+host+"/live.ts", nil)
		r.Header.Set("User-Agent", smartTVUA)
		rec := httptest.NewRecorder()

		fx.router.ServeHTTP(rec, r)

		if rec.Code != 403 {
			t.Errorf("%s: status = %d, want 403", host, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("%s: body missing %q", host, want)
		}
	}
}

func TestRouter_ActiveRecordWithoutOrigin(t *testing.T) {
	plain := activeRecord("noorigin.example", "")
	redirect := activeRecord("rd-noorigin.example", "")
	redirect.RedirectOnly = true

	reg := &fakeRegistry{records: map[string]*registry.DomainRecord{
		"noorigin.example":    plain,
		"rd-noorigin.example": redirect,
	}}
	fx := newRouterFixture(t, reg, nil)

	// A record with no origin URL has nowhere to forward or redirect
	// to; even a streaming client must get the status page, never an
	// empty response or a path-only Location.
	for _, host := range []string{"noorigin.example", "rd-noorigin.example"} {
		r := httptest.NewRequest("GET", "http://"+host+"/live.ts", nil)
		r.Header.Set("User-Agent", smartTVUA)
		rec := httptest.NewRecorder()

		fx.router.ServeHTTP(rec, r)

		if rec.Code != 200 {
			t.Errorf("%s: status = %d, want 200 status page", host, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s: Content-Type = %q, want html", host, ct)
		}
		if !strings.Contains(rec.Body.String(), "active and serving") {
			t.Errorf("%s: body is not the status page", host)
		}
		if loc := rec.Header().Get("Location"); loc != "" {
			t.Errorf("%s: unexpected Location %q", host, loc)
		}
	}
}

func TestRouter_RedirectOnly301(t *testing.T) {
	record := activeRecord("rd.example", "http://media.origin.example/")
	record.RedirectOnly = true

	reg := &fakeRegistry{records: map[string]*registry.DomainRecord{"rd.example": record}}
	fx := newRouterFixture(t, reg, nil)

	r := httptest.NewRequest("GET", "http://rd.example/vod/s01e01.mp4?k=v", nil)
	r.Header.Set("User-Agent", smartTVUA)
	rec := httptest.NewRecorder()

	fx.router.ServeHTTP(rec, r)

	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "http://media.origin.example/vod/s01e01.mp4?k=v" {
		t.Errorf("Location = %q", loc)
	}
}

func TestRouter_RegistryFailure502(t *testing.T) {
	fx := newRouterFixture(t, &fakeRegistry{err: errors.New("registry down")}, nil)

	r := httptest.NewRequest("GET", "http://tv.example/live.ts", nil)
	r.Header.Set("User-Agent", smartTVUA)
	rec := httptest.NewRecorder()

	fx.router.ServeHTTP(rec, r)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestRouter_SlowGeoNeverDelaysForwarding(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "fast")
	}))
	defer origin.Close()

	reg := &fakeRegistry{records: map[string]*registry.DomainRecord{
		"tv.example": activeRecord("tv.example", origin.URL),
	}}
	fx := newRouterFixture(t, reg, &fakeGeo{info: geo.Unknown(), delay: 3 * time.Second})

	r := httptest.NewRequest("GET", "http://tv.example/live.ts", nil)
	r.Header.Set("User-Agent", smartTVUA)
	rec := httptest.NewRecorder()

	start := time.Now()
	fx.router.ServeHTTP(rec, r)
	elapsed := time.Since(start)

	if rec.Code != 200 || rec.Body.String() != "fast" {
		t.Fatalf("forward failed: %d %q", rec.Code, rec.Body.String())
	}
	if elapsed > time.Second {
		t.Errorf("forwarding waited %v on geolocation", elapsed)
	}
}

func TestRouter_BrowserGetsStatusPageWithLocation(t *testing.T) {
	reg := &fakeRegistry{records: map[string]*registry.DomainRecord{
		"tv.example": activeRecord("tv.example", "http://origin.invalid"),
	}}
	fx := newRouterFixture(t, reg, nil)

	r := httptest.NewRequest("GET", "http://tv.example/", nil)
	r.Header.Set("User-Agent", desktopUA)
	r.Header.Set("X-Forwarded-For", "198.51.100.7")
	rec := httptest.NewRecorder()

	fx.router.ServeHTTP(rec, r)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Berlin") {
		t.Error("status page missing resolved location")
	}
	if !strings.Contains(body, "198.51.100.7") {
		t.Error("status page missing client IP")
	}
	if !strings.Contains(body, "Desktop") {
		t.Error("status page missing device category")
	}
}

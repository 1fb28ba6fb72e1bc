package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"streamcdn/edge/pkg/analytics"
	"streamcdn/edge/pkg/classify"
	"streamcdn/edge/pkg/geo"
	"streamcdn/edge/pkg/registry"
	"streamcdn/edge/pkg/session"
	"streamcdn/edge/pkg/telemetry/logging"
)

// Routing branches, used for logs and metrics.
const (
	branchProxy      = "proxy"
	branchRedirect   = "redirect"
	branchStatusPage = "status_page"
)

// statusPageGeoWait is how long the status-page branch waits for
// geolocation before rendering without it. Forwarding never waits.
const statusPageGeoWait = 750 * time.Millisecond

// analyticsGeoWait is how long the analytics goroutine waits for
// geolocation after the response has been sent.
const analyticsGeoWait = 5 * time.Second

// GeoResolver is the geolocation port the router consumes.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) geo.Info
}

// Tracker is the session tracking port the router consumes.
type Tracker interface {
	Track(ip, ua, path string) session.Update
}

// Emitter is the analytics port the router consumes.
type Emitter interface {
	Emit(event *analytics.AccessEvent)
}

// RouterMetrics is the telemetry the router reports. Nil is valid.
type RouterMetrics interface {
	RecordRequest(branch, device string, status int, duration time.Duration)
	RecordSessionChange(changeType string)
}

// RouterConfig contains routing configuration.
type RouterConfig struct {
	// TrustedIPHeaders is the priority-ordered real-IP header list.
	TrustedIPHeaders []string
}

// Router orchestrates one inbound request: real IP, registry lookup,
// classification, session tracking, the forwarding decision, and the
// post-response analytics handoff. Geolocation runs concurrently and is
// never a dependency of the forwarding decision.
type Router struct {
	cfg      RouterConfig
	registry registry.Client
	classify *classify.Classifier
	geo      GeoResolver
	sessions Tracker
	engine   *Engine
	emitter  Emitter
	logger   *slog.Logger
	metrics  RouterMetrics

	now func() time.Time
}

// NewRouter creates the proxy router.
func NewRouter(
	cfg RouterConfig,
	reg registry.Client,
	classifier *classify.Classifier,
	geoResolver GeoResolver,
	sessions Tracker,
	engine *Engine,
	emitter Emitter,
	logger *slog.Logger,
	metrics RouterMetrics,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		registry: reg,
		classify: classifier,
		geo:      geoResolver,
		sessions: sessions,
		engine:   engine,
		emitter:  emitter,
		logger:   logger.With("component", "proxy.router"),
		metrics:  metrics,
		now:      time.Now,
	}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := rt.now()

	clientIP := RealIP(r, rt.cfg.TrustedIPHeaders)
	hostname := hostOnly(r.Host)
	ua := r.UserAgent()

	ctx := logging.WithClientIP(r.Context(), clientIP)
	ctx = logging.WithDomain(ctx, hostname)
	r = r.WithContext(ctx)

	info := rt.classify.Classify(ua)

	// Geolocation starts now and finishes whenever it finishes. The
	// channel is buffered so a late result never leaks the goroutine.
	geoCh := rt.resolveGeoAsync(ctx, clientIP)

	record, err := rt.registry.Lookup(ctx, hostname)
	switch {
	case err == nil:
	case errors.Is(err, registry.ErrNotFound):
		record = nil
	default:
		rt.logger.ErrorContext(ctx, "registry lookup failed", "error", err)
		status := WriteOriginError(w, OriginConnection)
		rt.record(branchStatusPage, info, status, start)
		return
	}

	upd := rt.sessions.Track(clientIP, ua, r.URL.RequestURI())
	if rt.metrics != nil {
		rt.metrics.RecordSessionChange(string(upd.ChangeType))
	}
	ctx = logging.WithSessionID(ctx, upd.SessionID)
	r = r.WithContext(ctx)

	probe := isStatusProbe(r)
	servable := record != nil && record.Servable(rt.now())
	hasOrigin := record != nil && record.OriginURL != ""

	if servable && hasOrigin && info.IsStreamingCapable && !info.IsBot && !probe {
		if record.RedirectOnly {
			rt.redirect(w, r, record)
			rt.record(branchRedirect, info, http.StatusMovedPermanently, start)
			return
		}
		rt.forward(w, r, record, info, clientIP, upd, geoCh, start)
		return
	}

	// Everything else gets the status page: bots, browsers, unknown
	// clients, unservable domains, records with no origin configured,
	// explicit probes.
	geoInfo := awaitGeo(geoCh, statusPageGeoWait)
	status := WriteStatusPage(w, StatusPageData{
		Domain:   hostname,
		Record:   record,
		Client:   info,
		ClientIP: clientIP,
		Geo:      geoInfo,
		Now:      rt.now(),
	})
	rt.record(branchStatusPage, info, status, start)
}

// forward runs the engine and hands the outcome to analytics without
// blocking the response.
func (rt *Router) forward(
	w http.ResponseWriter,
	r *http.Request,
	record *registry.DomainRecord,
	info classify.ClientInfo,
	clientIP string,
	upd session.Update,
	geoCh <-chan geo.Info,
	start time.Time,
) {
	res, err := rt.engine.Forward(w, r, record.OriginURL, clientIP)
	if err != nil {
		var originErr *OriginError
		if errors.As(err, &originErr) {
			rt.logger.ErrorContext(r.Context(), "forwarding failed",
				"origin", record.OriginURL,
				"kind", string(originErr.Kind),
				"attempts", originErr.Attempts,
				"error", err,
			)
			status := WriteOriginError(w, originErr.Kind)
			rt.record(branchProxy, info, status, start)
			return
		}
		// Client disconnect or unreplayable request; nothing more to
		// send.
		rt.logger.DebugContext(r.Context(), "forward aborted", "error", err)
		rt.record(branchProxy, info, 499, start)
		return
	}

	latency := rt.now().Sub(start)
	rt.record(branchProxy, info, res.StatusCode, start)

	if rt.emitter != nil && record.AnalyticsEnabled {
		rt.emitAsync(r, record, info, clientIP, upd, geoCh, res, latency)
	}
}

// redirect answers 301 to the origin plus the live path, for domains
// configured as redirect-only.
func (rt *Router) redirect(w http.ResponseWriter, r *http.Request, record *registry.DomainRecord) {
	target := strings.TrimRight(record.OriginURL, "/") + r.URL.RequestURI()
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}

// emitAsync builds the access event off the request path. It waits
// briefly for geolocation; an unresolved lookup ships as Unknown.
func (rt *Router) emitAsync(
	r *http.Request,
	record *registry.DomainRecord,
	info classify.ClientInfo,
	clientIP string,
	upd session.Update,
	geoCh <-chan geo.Info,
	res Result,
	latency time.Duration,
) {
	path := r.URL.RequestURI()
	method := r.Method
	referer := r.Referer()
	ua := r.UserAgent()

	go func() {
		geoInfo := awaitGeo(geoCh, analyticsGeoWait)

		changeType := string(upd.ChangeType)
		event := &analytics.AccessEvent{
			Domain:           record.Hostname,
			DomainID:         record.ID,
			Path:             path,
			Method:           method,
			StatusCode:       res.StatusCode,
			ClientIP:         clientIP,
			UserAgent:        ua,
			Referer:          referer,
			DeviceType:       string(info.Category),
			AppName:          info.AppName,
			Country:          geoInfo.Country,
			City:             geoInfo.City,
			ResponseTimeMs:   latency.Milliseconds(),
			BytesTransferred: res.BytesTransferred,
			CacheStatus:      "MISS",
			EpisodeInfo:      analytics.EpisodeDetailFrom(upd.CurrentEpisode),
			SessionID:        upd.SessionID,
			ChangeType:       changeType,
			EpisodeChanged:   changeType == string(session.ChangeNewEpisode) || changeType == string(session.ChangeEpisodeChange),
			ContentID:        session.ContentID(path, upd.CurrentEpisode),
			Timestamp:        time.Now().UTC(),
		}
		rt.emitter.Emit(event)
	}()
}

// resolveGeoAsync kicks off geolocation decoupled from the request's
// cancellation: a client disconnect must not abort the lookup the
// analytics event is waiting on.
func (rt *Router) resolveGeoAsync(ctx context.Context, ip string) <-chan geo.Info {
	ch := make(chan geo.Info, 1)
	if rt.geo == nil {
		ch <- geo.Unknown()
		return ch
	}
	lookupCtx := context.WithoutCancel(ctx)
	go func() {
		ch <- rt.geo.Resolve(lookupCtx, ip)
	}()
	return ch
}

func awaitGeo(ch <-chan geo.Info, wait time.Duration) geo.Info {
	select {
	case info := <-ch:
		return info
	case <-time.After(wait):
		return geo.Unknown()
	}
}

func (rt *Router) record(branch string, info classify.ClientInfo, status int, start time.Time) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRequest(branch, string(info.Category), status, rt.now().Sub(start))
}

// isStatusProbe reports an explicit request for the status page: the
// status=1 query marker or the /__status path.
func isStatusProbe(r *http.Request) bool {
	return r.URL.Query().Get("status") == "1" || r.URL.Path == "/__status"
}

// hostOnly normalizes a Host header value: port stripped, lowercased,
// trailing dot removed.
func hostOnly(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

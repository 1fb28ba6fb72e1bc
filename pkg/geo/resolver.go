package geo

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"streamcdn/edge/pkg/netutil"
)

// Metrics receives resolver instrumentation. A nil Metrics disables
// instrumentation; pkg/telemetry/metrics.Collector implements it.
type Metrics interface {
	GeoCacheHit()
	GeoCacheMiss()
	GeoProviderCall(provider string, success bool)
}

// ResolverConfig contains configuration for the Resolver.
type ResolverConfig struct {
	// TTL is how long a cache entry may be reused. Default: 24h.
	TTL time.Duration `yaml:"ttl"`

	// ProviderTimeout bounds each individual provider call. Providers
	// are not retried; the fallback chain substitutes for retry.
	// Default: 5s.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`

	// SweepSchedule is the cron expression for the cache sweep.
	// Default: "@hourly".
	SweepSchedule string `yaml:"sweep_schedule"`
}

// Resolver resolves IPs to geolocation using the cache-aside store and a
// cascading provider chain. Resolve never returns an error: failures
// degrade to sentinels so geolocation can never abort a request.
type Resolver struct {
	store     *Store
	providers []Provider
	cfg       ResolverConfig
	logger    *slog.Logger
	metrics   Metrics

	// group coalesces concurrent lookups for the same uncached IP so a
	// burst of requests from one client costs one provider call.
	group singleflight.Group

	cron *cron.Cron

	// now is replaceable in tests to force TTL expiry.
	now func() time.Time
}

// NewResolver creates a Resolver. If providers is nil the production
// chain over client is used; client may be nil, in which case a client
// bounded by ProviderTimeout is constructed.
func NewResolver(store *Store, providers []Provider, client *http.Client, cfg ResolverConfig, logger *slog.Logger, metrics Metrics) *Resolver {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 5 * time.Second
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@hourly"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if providers == nil {
		if client == nil {
			client = &http.Client{Timeout: cfg.ProviderTimeout}
		}
		providers = DefaultProviders(client)
	}

	return &Resolver{
		store:     store,
		providers: providers,
		cfg:       cfg,
		logger:    logger.With("component", "geo.resolver"),
		metrics:   metrics,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Resolve returns the best-effort geolocation for ip. Private and
// reserved addresses return the Local/Private sentinel without touching
// the cache or any provider. Provider exhaustion returns Unknown.
func (r *Resolver) Resolve(ctx context.Context, ip string) Info {
	addr, ok := netutil.ParseIP(ip)
	if !ok || netutil.IsPrivateOrReserved(addr) {
		return LocalPrivate()
	}
	canonical := addr.String()

	// Cache-aside read.
	entry, found, err := r.store.Get(ctx, canonical)
	if err != nil {
		r.logger.Warn("geo cache read failed", "ip", canonical, "error", err)
	}
	if found && r.now().Sub(entry.CreatedAt) < r.cfg.TTL {
		if r.metrics != nil {
			r.metrics.GeoCacheHit()
		}
		return entry.Info
	}
	if r.metrics != nil {
		r.metrics.GeoCacheMiss()
	}

	// Coalesce concurrent misses per IP; duplicates under races are
	// tolerable, but the shared flight saves provider quota under load.
	v, _, _ := r.group.Do(canonical, func() (any, error) {
		return r.lookup(ctx, canonical), nil
	})
	return v.(Info)
}

// lookup walks the provider chain in priority order and writes through
// the first well-formed result.
func (r *Resolver) lookup(ctx context.Context, ip string) Info {
	for _, p := range r.providers {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.ProviderTimeout)
		info, err := p.Lookup(callCtx, ip)
		cancel()

		if err != nil {
			if r.metrics != nil {
				r.metrics.GeoProviderCall(p.Name(), false)
			}
			r.logger.Debug("geo provider failed, advancing chain",
				"provider", p.Name(), "ip", ip, "error", err)
			continue
		}
		if r.metrics != nil {
			r.metrics.GeoProviderCall(p.Name(), true)
		}

		// Write-through before returning so concurrent callers for the
		// same IP converge on the cached value.
		if err := r.store.Upsert(ctx, ip, info, r.now()); err != nil {
			r.logger.Warn("geo cache write failed", "ip", ip, "error", err)
		}
		return info
	}

	r.logger.Warn("all geo providers failed", "ip", ip)
	return Unknown()
}

// StartSweeper schedules the periodic TTL sweep. Entries younger than
// TTL are never removed, so the sweep is invariant-preserving.
func (r *Resolver) StartSweeper() error {
	_, err := r.cron.AddFunc(r.cfg.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := r.store.SweepExpired(ctx, r.cfg.TTL, r.now())
		if err != nil {
			r.logger.Warn("geo cache sweep failed", "error", err)
			return
		}
		if n > 0 {
			r.logger.Info("geo cache sweep completed", "removed", n)
		}
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// StopSweeper stops the sweep scheduler and waits for a running sweep.
func (r *Resolver) StopSweeper() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// CacheSize returns the number of cached entries, for diagnostics.
func (r *Resolver) CacheSize(ctx context.Context) int64 {
	n, err := r.store.Size(ctx)
	if err != nil {
		return 0
	}
	return n
}

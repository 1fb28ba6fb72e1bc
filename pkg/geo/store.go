package geo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// createDDL defines the geolocation cache schema. The column layout is
// shared with the analytics backend, which reads the same table.
const createDDL = `
CREATE TABLE IF NOT EXISTS ip_geo_cache (
	ip           TEXT PRIMARY KEY,
	country      TEXT NOT NULL DEFAULT '',
	country_code TEXT NOT NULL DEFAULT '',
	region       TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	latitude     REAL NOT NULL DEFAULT 0,
	longitude    REAL NOT NULL DEFAULT 0,
	timezone     TEXT NOT NULL DEFAULT '',
	isp          TEXT NOT NULL DEFAULT '',
	org          TEXT NOT NULL DEFAULT '',
	as_number    TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ip_geo_cache_created_at ON ip_geo_cache(created_at);
`

// StoreConfig contains configuration for the SQLite cache store.
type StoreConfig struct {
	// Path is the database file path. Use ":memory:" for tests.
	Path string

	// MaxOpenConns limits open connections. Default: 10.
	MaxOpenConns int

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s.
	BusyTimeout time.Duration
}

// Store is the SQLite-backed geolocation cache. All methods are safe for
// concurrent use; the single-row upsert is the only write and is atomic,
// so no additional locking is needed.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if necessary) the cache database and applies
// the schema.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("geo store path is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geo cache database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := db.Exec(createDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize geo cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the cached entry for ip, or ok=false when absent. TTL
// filtering is the resolver's responsibility; Get returns whatever is
// stored so the sweep and the freshness check can use different clocks
// in tests.
func (s *Store) Get(ctx context.Context, ip string) (CacheEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ip, country, country_code, region, city, latitude, longitude,
		       timezone, isp, org, as_number, created_at
		FROM ip_geo_cache WHERE ip = ?`, ip)

	var e CacheEntry
	var createdAt int64
	err := row.Scan(&e.IP, &e.Info.Country, &e.Info.CountryCode, &e.Info.Region,
		&e.Info.City, &e.Info.Latitude, &e.Info.Longitude, &e.Info.Timezone,
		&e.Info.ISP, &e.Info.Org, &e.Info.ASNumber, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("failed to read geo cache entry: %w", err)
	}
	e.CreatedAt = time.Unix(0, createdAt)
	return e, true, nil
}

// Upsert writes info for ip, overwriting any previous entry and
// refreshing created_at.
func (s *Store) Upsert(ctx context.Context, ip string, info Info, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ip_geo_cache
			(ip, country, country_code, region, city, latitude, longitude,
			 timezone, isp, org, as_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET
			country = excluded.country,
			country_code = excluded.country_code,
			region = excluded.region,
			city = excluded.city,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			timezone = excluded.timezone,
			isp = excluded.isp,
			org = excluded.org,
			as_number = excluded.as_number,
			created_at = excluded.created_at`,
		ip, info.Country, info.CountryCode, info.Region, info.City,
		info.Latitude, info.Longitude, info.Timezone, info.ISP, info.Org,
		info.ASNumber, now.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert geo cache entry: %w", err)
	}
	return nil
}

// SweepExpired removes entries older than ttl and returns the number
// removed. Entries younger than ttl are never touched.
func (s *Store) SweepExpired(ctx context.Context, ttl time.Duration, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ip_geo_cache WHERE created_at < ?`, now.Add(-ttl).UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep geo cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Size returns the number of cached entries. Reported on /health.
func (s *Store) Size(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ip_geo_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count geo cache entries: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

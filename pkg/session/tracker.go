// Package session maintains short-lived per-client sessions used to
// detect content-unit transitions for analytics. Sessions are in-memory
// only: losing them on restart costs continuity, not correctness.
package session

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// ChangeType describes how the current request relates to the previous
// request from the same client.
type ChangeType string

const (
	// ChangeNewSession is the first request from a key with no parsed
	// episode.
	ChangeNewSession ChangeType = "new_session"
	// ChangeNewEpisode is an episode parsed with no prior episode on
	// record.
	ChangeNewEpisode ChangeType = "new_episode"
	// ChangeEpisodeChange is a transition between distinct episode
	// identifiers.
	ChangeEpisodeChange ChangeType = "episode_change"
	// ChangeURLChange is the same episode fetched through a different
	// path.
	ChangeURLChange ChangeType = "url_change"
	// ChangeSameContent is a repeat of the previous request.
	ChangeSameContent ChangeType = "same_content"
)

// keyUAPrefixLen bounds the user-agent part of the session key so
// pathological UAs cannot grow keys without bound.
const keyUAPrefixLen = 50

// state is the stored per-key session record.
type state struct {
	lastPath     string
	lastEpisode  *EpisodeInfo
	sessionID    string
	lastAccessAt time.Time
	accessCount  int64
}

// Update is the result of tracking one request.
type Update struct {
	SessionID       string
	ChangeType      ChangeType
	CurrentEpisode  *EpisodeInfo
	PreviousEpisode *EpisodeInfo
	AccessCount     int64
}

// Config contains configuration for the Tracker.
type Config struct {
	// IdleTTL is how long a session survives without a request.
	// Default: 2h.
	IdleTTL time.Duration `yaml:"idle_ttl"`

	// SweepInterval bounds how often the amortized purge runs.
	// Default: 1m.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Tracker maintains at most one live session per (client IP, UA prefix)
// key in a concurrency-safe map. There is no client-initiated close;
// idle sessions are purged by an amortized sweep on Track.
type Tracker struct {
	cfg      Config
	sessions *xsync.Map[string, *state]

	// lastSweep is the unix-nano time of the last purge, used to run
	// the sweep at most once per SweepInterval.
	lastSweep atomic.Int64

	// now is replaceable in tests.
	now func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(cfg Config) *Tracker {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Tracker{
		cfg:      cfg,
		sessions: xsync.NewMap[string, *state](),
		now:      time.Now,
	}
}

// Track records a request and reports the change type relative to the
// key's previous request. The session is upserted before returning; the
// read-modify-write spans only the one key, via the map's Compute.
func (t *Tracker) Track(ip, userAgent, path string) Update {
	now := t.now()
	key := sessionKey(ip, userAgent)

	var current *EpisodeInfo
	if ep, ok := ExtractEpisode(path); ok {
		current = &ep
	}

	var upd Update
	t.sessions.Compute(key, func(old *state, loaded bool) (*state, xsync.ComputeOp) {
		next := &state{
			lastPath:     path,
			lastEpisode:  current,
			lastAccessAt: now,
			accessCount:  1,
		}

		if !loaded || now.Sub(old.lastAccessAt) > t.cfg.IdleTTL {
			next.sessionID = uuid.NewString()
			upd = Update{
				SessionID:      next.sessionID,
				ChangeType:     ChangeNewSession,
				CurrentEpisode: current,
				AccessCount:    1,
			}
			if current != nil {
				upd.ChangeType = ChangeNewEpisode
			}
			return next, xsync.UpdateOp
		}

		next.sessionID = old.sessionID
		next.accessCount = old.accessCount + 1

		upd = Update{
			SessionID:       next.sessionID,
			CurrentEpisode:  current,
			PreviousEpisode: old.lastEpisode,
			AccessCount:     next.accessCount,
		}
		switch {
		case old.lastEpisode != nil && current != nil:
			switch {
			case old.lastEpisode.Identifier != current.Identifier:
				upd.ChangeType = ChangeEpisodeChange
			case old.lastPath != path:
				upd.ChangeType = ChangeURLChange
			default:
				upd.ChangeType = ChangeSameContent
			}
		case current != nil:
			// Episode parsed but none on record yet.
			upd.ChangeType = ChangeNewEpisode
		default:
			upd.ChangeType = ChangeNewSession
		}
		return next, xsync.UpdateOp
	})

	t.maybeSweep(now)
	return upd
}

// Len returns the number of live sessions, for diagnostics and metrics.
func (t *Tracker) Len() int {
	return t.sessions.Size()
}

// maybeSweep purges idle sessions at most once per SweepInterval. The
// cost is amortized over Track calls; no timer goroutine is needed.
func (t *Tracker) maybeSweep(now time.Time) {
	last := t.lastSweep.Load()
	if now.UnixNano()-last < t.cfg.SweepInterval.Nanoseconds() {
		return
	}
	if !t.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return // another goroutine is sweeping
	}

	cutoff := now.Add(-t.cfg.IdleTTL)
	t.sessions.Range(func(key string, s *state) bool {
		if s.lastAccessAt.Before(cutoff) {
			t.sessions.Delete(key)
		}
		return true
	})
}

func sessionKey(ip, userAgent string) string {
	if len(userAgent) > keyUAPrefixLen {
		userAgent = userAgent[:keyUAPrefixLen]
	}
	return ip + "|" + userAgent
}

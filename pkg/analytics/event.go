package analytics

import (
	"time"

	"streamcdn/edge/pkg/session"
)

// EpisodeDetail is the episode portion of an access event, present only
// when the request path matched an episode or content-ID pattern.
type EpisodeDetail struct {
	Season      int    `json:"season,omitempty"`
	Episode     int    `json:"episode,omitempty"`
	ContentID   string `json:"content_id,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Identifier  string `json:"identifier"`
	MatchKind   string `json:"match_kind"`
}

// AccessEvent is one completed request as reported to the analytics
// ingestion endpoint. Field names follow the ingestion API's access-log
// schema.
type AccessEvent struct {
	Domain     string `json:"domain"`
	DomainID   string `json:"domain_id,omitempty"`
	Path       string `json:"path"`
	Method     string `json:"method"`
	StatusCode int    `json:"status_code"`

	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent"`
	Referer   string `json:"referer,omitempty"`

	DeviceType string `json:"device_type"`
	AppName    string `json:"app_name,omitempty"`

	Country string `json:"country"`
	City    string `json:"city"`

	ResponseTimeMs   int64  `json:"response_time_ms"`
	BytesTransferred int64  `json:"bytes_transferred"`
	CacheStatus      string `json:"cache_status"`

	EpisodeInfo    *EpisodeDetail `json:"episode_info,omitempty"`
	SessionID      string         `json:"session_id"`
	ChangeType     string         `json:"change_type"`
	EpisodeChanged bool           `json:"episode_changed"`
	ContentID      string         `json:"content_id"`

	Timestamp time.Time `json:"timestamp"`
}

// EpisodeDetailFrom converts a session episode match into the event
// representation. Returns nil for a nil input so callers can pass the
// tracker output through unconditionally.
func EpisodeDetailFrom(info *session.EpisodeInfo) *EpisodeDetail {
	if info == nil {
		return nil
	}
	return &EpisodeDetail{
		Season:      info.Season,
		Episode:     info.Episode,
		ContentID:   info.ContentID,
		ContentType: info.ContentType,
		Identifier:  info.Identifier,
		MatchKind:   string(info.MatchKind),
	}
}

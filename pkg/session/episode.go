package session

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MatchKind distinguishes the two episode pattern families.
type MatchKind string

const (
	// MatchTraditional covers season/episode encodings in the path.
	MatchTraditional MatchKind = "traditional"
	// MatchAPIParameter covers opaque content IDs in query parameters,
	// as used by player APIs.
	MatchAPIParameter MatchKind = "api_parameter"
)

// EpisodeInfo is the content unit derived from a request path. It is
// computed fresh per request and immutable once computed.
type EpisodeInfo struct {
	Season      int       `json:"season"`
	Episode     int       `json:"episode"`
	ContentID   string    `json:"content_id,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Identifier  string    `json:"identifier"`
	Raw         string    `json:"raw"`
	MatchKind   MatchKind `json:"match_kind"`
}

// traditionalPatterns encode season/episode conventions observed in
// playlist URLs, including localized variants. Ordered; the first match
// wins. Patterns capturing two numbers yield (season, episode); a single
// capture implies season 1.
var traditionalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/s(\d+)e(\d+)`),
	regexp.MustCompile(`(?i)/season[-_]?(\d+)[-_]?episode[-_]?(\d+)`),
	regexp.MustCompile(`(?i)/temporada[-_]?(\d+)[-_]?episodio[-_]?(\d+)`),
	regexp.MustCompile(`(?i)/ep[-_]?(\d+)`),
	regexp.MustCompile(`(?i)/episodio[-_]?(\d+)`),
	regexp.MustCompile(`(?i)/episode[-_]?(\d+)`),
	regexp.MustCompile(`(?i)/(\d+)x(\d+)`),
	regexp.MustCompile(`(?i)/cap[-_]?(\d+)`),
	regexp.MustCompile(`(?i)/capitulo[-_]?(\d+)`),
	regexp.MustCompile(`(?i)[?&]ep=(\d+)`),
	regexp.MustCompile(`(?i)[?&]episode=(\d+)`),
	regexp.MustCompile(`(?i)[?&]s=(\d+)&e=(\d+)`),
}

// apiPattern tags a query-parameter matcher with the content type it
// implies.
type apiPattern struct {
	re          *regexp.Regexp
	contentType string
}

// apiPatterns cover player APIs that address content by opaque ID
// instead of season/episode. The [?&/] boundary keeps the generic id=
// matcher from firing inside longer parameter names while still
// accepting IDs that appear as a path segment.
var apiPatterns = []apiPattern{
	{regexp.MustCompile(`(?i)[?&/]series_id=(\d+)`), "series"},
	{regexp.MustCompile(`(?i)[?&/]movie_id=(\d+)`), "movie"},
	{regexp.MustCompile(`(?i)[?&/]stream_id=(\d+)`), "stream"},
	{regexp.MustCompile(`(?i)[?&/]vod_id=(\d+)`), "vod"},
	{regexp.MustCompile(`(?i)[?&/]channel_id=(\d+)`), "channel"},
	{regexp.MustCompile(`(?i)[?&/]id=(\d+)`), "content"},
}

// ExtractEpisode derives episode information from a request path
// including its query string. The traditional family is tried first;
// ok=false means neither family matched.
func ExtractEpisode(path string) (EpisodeInfo, bool) {
	if path == "" {
		return EpisodeInfo{}, false
	}

	for _, re := range traditionalPatterns {
		m := re.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		switch len(m) {
		case 3:
			season := atoiDefault(m[1], 1)
			episode := atoiDefault(m[2], 1)
			return EpisodeInfo{
				Season:     season,
				Episode:    episode,
				Identifier: fmt.Sprintf("S%sE%s", pad2(m[1]), pad2(m[2])),
				Raw:        m[0],
				MatchKind:  MatchTraditional,
			}, true
		case 2:
			episode := atoiDefault(m[1], 1)
			return EpisodeInfo{
				Season:     1,
				Episode:    episode,
				Identifier: fmt.Sprintf("S01E%s", pad2(m[1])),
				Raw:        m[0],
				MatchKind:  MatchTraditional,
			}, true
		}
	}

	for _, p := range apiPatterns {
		m := p.re.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		return EpisodeInfo{
			Season:      1,
			Episode:     1,
			ContentID:   m[1],
			ContentType: p.contentType,
			Identifier:  p.contentType + "_" + m[1],
			Raw:         m[0],
			MatchKind:   MatchAPIParameter,
		}, true
	}

	return EpisodeInfo{}, false
}

// ContentID derives a stable content identifier for analytics from the
// path and the extracted episode, mirroring what the ingestion backend
// groups on.
func ContentID(path string, episode *EpisodeInfo) string {
	segment := lastPathSegment(path)
	if episode != nil {
		return episode.Identifier + "_" + segment
	}
	return "content_" + segment
}

func lastPathSegment(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return "unknown"
}

// pad2 left-pads a numeric string to two digits; longer values pass
// through unchanged.
func pad2(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n == 0 {
		return def
	}
	return n
}

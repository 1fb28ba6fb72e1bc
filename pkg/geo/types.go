package geo

import "time"

// Info is a coarse geolocation result for a single IP address.
type Info struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	ASNumber    string  `json:"as_number"`
}

// CacheEntry is a cached geolocation result keyed by IP.
type CacheEntry struct {
	IP        string
	Info      Info
	CreatedAt time.Time
}

// LocalPrivate is the sentinel returned for private, loopback and
// reserved addresses. This is a classification, not a lookup failure; it
// is never cached and never triggers a provider call.
func LocalPrivate() Info {
	return Info{
		Country:     "Local/Private",
		CountryCode: "XX",
		Region:      "Local/Private",
		City:        "Local/Private",
		Timezone:    "UTC",
		ISP:         "Local Network",
		Org:         "Local Network",
		ASNumber:    "Local Network",
	}
}

// Unknown is the sentinel returned when every provider fails. Unknown
// results are not cached so a later request can retry the providers.
func Unknown() Info {
	return Info{
		Country:     "Unknown",
		CountryCode: "XX",
		Region:      "Unknown",
		City:        "Unknown",
		Timezone:    "UTC",
		ISP:         "Unknown",
		Org:         "Unknown",
		ASNumber:    "Unknown",
	}
}

// IsLocal reports whether info is the Local/Private sentinel.
func (i Info) IsLocal() bool { return i.Country == "Local/Private" }

// IsUnknown reports whether info is the Unknown sentinel.
func (i Info) IsUnknown() bool { return i.Country == "Unknown" && i.City == "Unknown" }

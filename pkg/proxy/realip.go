package proxy

import (
	"net"
	"net/http"
	"strings"

	"streamcdn/edge/pkg/netutil"
)

// Detection is the outcome of real client IP extraction, including the
// diagnostic echo the health endpoint exposes.
type Detection struct {
	// IP is the resolved client IP.
	IP string

	// Source is the header that yielded the IP, or "peer" when the
	// transport address was used.
	Source string

	// Headers echoes the trusted headers present on the request.
	Headers map[string]string

	// ViaCloudflare reports a cf-connecting-ip header was present.
	ViaCloudflare bool

	// ViaProxy reports any forwarding header was present.
	ViaProxy bool
}

// DetectClientIP walks the trusted header list in priority order and
// returns the first well-formed public IP, with the transport peer as
// fallback. List-valued headers contribute their first element only;
// later elements name upstream proxies, not the client.
func DetectClientIP(r *http.Request, trustedHeaders []string) Detection {
	d := Detection{Headers: make(map[string]string)}

	for _, header := range trustedHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		d.Headers[header] = value
		d.ViaProxy = true
		if strings.EqualFold(header, "cf-connecting-ip") {
			d.ViaCloudflare = true
		}

		candidate := strings.TrimSpace(value)
		if i := strings.IndexByte(candidate, ','); i >= 0 {
			candidate = strings.TrimSpace(candidate[:i])
		}
		if d.IP == "" && netutil.IsPublicIP(candidate) {
			d.IP = candidate
			d.Source = strings.ToLower(header)
		}
	}

	if d.IP == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		d.IP = host
		d.Source = "peer"
	}
	return d
}

// RealIP returns the resolved client IP for the request.
func RealIP(r *http.Request, trustedHeaders []string) string {
	return DetectClientIP(r, trustedHeaders).IP
}

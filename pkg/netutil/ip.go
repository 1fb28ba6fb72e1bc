// Package netutil contains small networking helpers shared by the geo
// resolver and the real-client-IP extraction on the request path.
package netutil

import (
	"net/netip"
	"strings"
)

// ParseIP parses s as an IPv4 or IPv6 address, tolerating a zone suffix
// and an IPv4-mapped IPv6 form. Returns the parsed address and whether
// parsing succeeded.
func ParseIP(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// IsPrivateOrReserved reports whether addr belongs to a private,
// loopback, link-local, multicast, unspecified or otherwise reserved
// range. Such addresses are classified locally and never sent to
// geolocation providers.
func IsPrivateOrReserved(addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return true
	}
	if addr.Is4() {
		a4 := addr.As4()
		// 0.0.0.0/8 and 240.0.0.0/4 are reserved.
		if a4[0] == 0 || a4[0] >= 240 {
			return true
		}
	}
	return false
}

// IsPublicIP reports whether s is a syntactically valid, publicly
// routable IP address. Used to decide whether a forwarded-for header
// value can be trusted as the real client address.
func IsPublicIP(s string) bool {
	addr, ok := ParseIP(s)
	if !ok {
		return false
	}
	return !IsPrivateOrReserved(addr)
}

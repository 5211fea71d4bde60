package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ParseHostNoPort returns the host part (no port) from strings like
// "ip:port", "[v6]:port", or "ip".
func ParseHostNoPort(s string) string {
	if s == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return s
}

// firstForwardedFor returns the left-most X-Forwarded-For entry,
// trimmed. The left-most entry is the original client; everything after
// it was appended by intermediaries.
func firstForwardedFor(xff string) string {
	if i := strings.IndexByte(xff, ','); i >= 0 {
		xff = xff[:i]
	}
	return strings.TrimSpace(xff)
}

// ClientIP resolves the real client IP.
//
// Set trustProxy only when the origin is reachable solely through a
// trusted reverse proxy or tunnel (e.g., cloudflared on localhost);
// without it only RemoteAddr counts, since any client can forge the
// headers.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, h := range [...]string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"} {
			v := strings.TrimSpace(r.Header.Get(h))
			if h == "X-Forwarded-For" {
				v = firstForwardedFor(v)
			}
			if ip := ParseHostNoPort(v); ip != "" {
				return ip
			}
		}
	}
	return ParseHostNoPort(r.RemoteAddr)
}

// IPMatcher matches exact addresses and CIDR blocks.
type IPMatcher struct {
	addrs    []netip.Addr
	prefixes []netip.Prefix
}

// NewIPMatcher parses a mixed list of IPs and CIDR blocks. Entries that
// parse as neither are dropped silently.
func NewIPMatcher(list []string) *IPMatcher {
	m := &IPMatcher{}
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			m.prefixes = append(m.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			m.addrs = append(m.addrs, a.Unmap())
		}
	}
	return m
}

func (m *IPMatcher) IsEmpty() bool {
	return len(m.addrs) == 0 && len(m.prefixes) == 0
}

// Allow reports whether ip matches any configured entry. IPv4-mapped
// IPv6 addresses are unmapped first so ::ffff:10.0.0.1 matches
// 10.0.0.0/8.
func (m *IPMatcher) Allow(ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()

	for _, v := range m.addrs {
		if v == a {
			return true
		}
	}
	for _, p := range m.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

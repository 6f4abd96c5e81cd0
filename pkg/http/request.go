package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig holds the proxies whose forwarding headers are trusted
type IPConfig struct {
	TrustedProxies []string // CIDR ranges
	prefixes       []netip.Prefix
}

// NewIPConfig parses the trusted proxy CIDRs once. Invalid ranges are skipped.
func NewIPConfig(trustedProxies []string) *IPConfig {
	cfg := &IPConfig{TrustedProxies: trustedProxies}
	cfg.prefixes = parsePrefixes(trustedProxies)
	return cfg
}

func (c *IPConfig) trusts(addr netip.Addr) bool {
	prefixes := c.prefixes
	if prefixes == nil {
		prefixes = parsePrefixes(c.TrustedProxies)
	}
	for _, prefix := range prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ExtractClientIP returns the address used to key the login throttle.
// X-Forwarded-For and X-Real-IP are honored only when the direct peer is a
// trusted proxy; otherwise a client could pick its own throttle key.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := remoteAddr(r)

	if config == nil {
		return remoteIP
	}
	peer, err := netip.ParseAddr(remoteIP)
	if err != nil || !config.trusts(peer.Unmap()) {
		return remoteIP
	}

	// first valid entry is the originating client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, candidate := range strings.Split(xff, ",") {
			if ip, ok := normalizeIP(candidate); ok {
				return ip
			}
		}
	}

	if ip, ok := normalizeIP(r.Header.Get("X-Real-IP")); ok {
		return ip
	}

	return remoteIP
}

func remoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func normalizeIP(raw string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

func parsePrefixes(cidrs []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			continue
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes
}

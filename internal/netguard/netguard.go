// Package netguard provides SSRF protection for the origin dialer by
// refusing connections that resolve to private/internal IP ranges.
package netguard

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// BlockedCIDRs are private/internal networks an untrusted origin must never resolve to.
var BlockedCIDRs = func() []*net.IPNet {
	cidrs := []string{
		"127.0.0.0/8",    // loopback
		"10.0.0.0/8",     // RFC1918
		"172.16.0.0/12",  // RFC1918 / Docker bridge networks
		"192.168.0.0/16", // RFC1918
		"169.254.0.0/16", // link-local / cloud metadata
		"0.0.0.0/8",      // unspecified
		"100.64.0.0/10",  // carrier-grade NAT
		"192.0.0.0/24",   // IETF protocol assignments
		"::/128",         // IPv6 unspecified
		"::1/128",        // IPv6 loopback
		"fe80::/10",      // IPv6 link-local
		"fc00::/7",       // IPv6 unique local
	}
	var nets []*net.IPNet
	for _, c := range cidrs {
		_, ipNet, _ := net.ParseCIDR(c)
		nets = append(nets, ipNet)
	}
	return nets
}()

// IsBlocked returns true if the IP falls within a private/internal range.
func IsBlocked(ip net.IP) bool {
	for _, cidr := range BlockedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// Guard dials origins, skipping the private-range check for trusted hosts
// (e.g. container names on the same network).
type Guard struct {
	trusted  map[string]struct{}
	dialer   *net.Dialer
	resolver *net.Resolver
}

// NewGuard creates a Guard trusting the given hostnames or IP literals.
func NewGuard(trusted ...string) *Guard {
	g := &Guard{
		trusted:  make(map[string]struct{}, len(trusted)),
		dialer:   &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second},
		resolver: net.DefaultResolver,
	}
	for _, h := range trusted {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			g.trusted[h] = struct{}{}
		}
	}
	return g
}

// IsTrustedHost reports whether addr ("host" or "host:port") is trusted.
func (g *Guard) IsTrustedHost(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	_, ok := g.trusted[strings.ToLower(strings.Trim(host, "[]"))]
	return ok
}

// DialContext resolves addr and rejects it if any address is private,
// then connects to the first resolved address.
func (g *Guard) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if g.IsTrustedHost(addr) {
		return g.dialer.DialContext(ctx, network, addr)
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	if ip := net.ParseIP(host); ip != nil {
		if IsBlocked(ip) {
			return nil, fmt.Errorf("origin %s is a blocked private IP", addr)
		}
		return g.dialer.DialContext(ctx, network, addr)
	}

	ips, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("dns lookup for %s returned no addresses", host)
	}
	for _, ipAddr := range ips {
		if IsBlocked(ipAddr.IP) {
			return nil, fmt.Errorf("origin %s resolves to blocked private IP %s", addr, ipAddr.IP)
		}
	}

	return g.dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
}

// Package ssrf gates tenant-supplied URLs before any outbound request is
// issued. A webhook target must not be usable to reach loopback, private,
// link-local, or cloud-metadata addresses.
package ssrf

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

// Decision is the outcome of validating a URL.
type Decision struct {
	Allowed bool
	Reason  string
}

// Guard validates a caller-supplied URL. Dispatchers treat a deny as a hard
// stop; there is no retry and no bypass.
type Guard interface {
	Validate(ctx context.Context, rawURL string) Decision
}

// LookupFunc resolves a hostname to addresses. Injected for tests.
type LookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// NetGuard is the default Guard backed by the system resolver.
type NetGuard struct {
	lookup LookupFunc
}

// NewGuard builds a NetGuard. A nil lookup uses net.DefaultResolver with a
// bounded resolution timeout.
func NewGuard(lookup LookupFunc) *NetGuard {
	if lookup == nil {
		lookup = func(ctx context.Context, host string) ([]netip.Addr, error) {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		}
	}
	return &NetGuard{lookup: lookup}
}

func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Validate checks the scheme and every address the host resolves to.
func (g *NetGuard) Validate(ctx context.Context, rawURL string) Decision {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return deny("invalid URL")
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return deny(fmt.Sprintf("scheme %q is not allowed", parsed.Scheme))
	}

	host := parsed.Hostname()
	if host == "" {
		return deny("URL has no host")
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if reason := blockedAddrReason(addr); reason != "" {
			return deny(reason)
		}
		return Decision{Allowed: true}
	}

	addrs, err := g.lookup(ctx, host)
	if err != nil {
		return deny("host did not resolve")
	}
	if len(addrs) == 0 {
		return deny("host resolved to no addresses")
	}
	for _, addr := range addrs {
		if reason := blockedAddrReason(addr); reason != "" {
			return deny(reason)
		}
	}
	return Decision{Allowed: true}
}

func blockedAddrReason(addr netip.Addr) string {
	addr = addr.Unmap()
	switch {
	case addr.IsLoopback():
		return "address is loopback"
	case addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast():
		// Covers 169.254.0.0/16, including the cloud metadata endpoint.
		return "address is link-local"
	case addr.IsPrivate():
		return "address is in a private range"
	case addr.IsUnspecified():
		return "address is unspecified"
	case addr.IsMulticast():
		return "address is multicast"
	case isCGNAT(addr):
		return "address is in the carrier-grade NAT range"
	}
	return ""
}

var cgnatRange = netip.MustParsePrefix("100.64.0.0/10")

func isCGNAT(addr netip.Addr) bool {
	return addr.Is4() && cgnatRange.Contains(addr)
}

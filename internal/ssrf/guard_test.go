package ssrf

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"
)

func staticLookup(addrs ...string) LookupFunc {
	return func(ctx context.Context, host string) ([]netip.Addr, error) {
		out := make([]netip.Addr, 0, len(addrs))
		for _, raw := range addrs {
			out = append(out, netip.MustParseAddr(raw))
		}
		return out, nil
	}
}

func TestValidateDenies(t *testing.T) {
	cases := []struct {
		name   string
		url    string
		reason string
	}{
		{"loopback literal", "http://127.0.0.1/hook", "loopback"},
		{"loopback v6", "http://[::1]/hook", "loopback"},
		{"metadata endpoint", "http://169.254.169.254/latest/meta-data", "link-local"},
		{"private 10", "https://10.0.0.8/hook", "private"},
		{"private 192.168", "https://192.168.1.20/hook", "private"},
		{"cgnat", "https://100.64.0.1/hook", "carrier-grade"},
		{"unspecified", "http://0.0.0.0/hook", "unspecified"},
		{"ftp scheme", "ftp://example.com/hook", "scheme"},
		{"file scheme", "file:///etc/passwd", "scheme"},
		{"missing host", "https:///hook", "host"},
	}

	guard := NewGuard(staticLookup("93.184.216.34"))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := guard.Validate(context.Background(), tc.url)
			if decision.Allowed {
				t.Fatalf("expected deny for %s", tc.url)
			}
			if !strings.Contains(decision.Reason, tc.reason) {
				t.Fatalf("expected reason containing %q, got %q", tc.reason, decision.Reason)
			}
		})
	}
}

func TestValidateAllowsPublicLiteral(t *testing.T) {
	guard := NewGuard(staticLookup())
	decision := guard.Validate(context.Background(), "https://93.184.216.34/hook")
	if !decision.Allowed {
		t.Fatalf("expected allow, got deny: %s", decision.Reason)
	}
}

func TestValidateResolvesHostnames(t *testing.T) {
	guard := NewGuard(staticLookup("93.184.216.34"))
	decision := guard.Validate(context.Background(), "https://hooks.example.com/inbound")
	if !decision.Allowed {
		t.Fatalf("expected allow, got deny: %s", decision.Reason)
	}
}

func TestValidateDeniesWhenAnyAddressIsBlocked(t *testing.T) {
	// DNS rebinding defense: one public and one private record still denies.
	guard := NewGuard(staticLookup("93.184.216.34", "10.1.2.3"))
	decision := guard.Validate(context.Background(), "https://rebind.example.com/hook")
	if decision.Allowed {
		t.Fatalf("expected deny when any resolved address is private")
	}
}

func TestValidateDeniesOnResolutionFailure(t *testing.T) {
	guard := NewGuard(func(ctx context.Context, host string) ([]netip.Addr, error) {
		return nil, errors.New("nxdomain")
	})
	decision := guard.Validate(context.Background(), "https://missing.example.com/hook")
	if decision.Allowed {
		t.Fatalf("expected deny on resolution failure")
	}
}

func TestValidateDeniesMappedV4(t *testing.T) {
	guard := NewGuard(staticLookup("::ffff:127.0.0.1"))
	decision := guard.Validate(context.Background(), "https://mapped.example.com/hook")
	if decision.Allowed {
		t.Fatalf("expected deny for v4-mapped loopback")
	}
}

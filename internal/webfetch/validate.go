package webfetch

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// Loopback and unspecified ranges, blocked unless AllowLocalhost is set.
var loopbackPrefixes = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
}

// Private and reserved ranges, blocked unless AllowPrivateNetworks is set.
var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// Resolver is the subset of net.Resolver the validator needs; injectable
// for tests.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// ValidatorOptions relaxes the outbound rules. Both default to false; tests
// fetching from loopback servers set them.
type ValidatorOptions struct {
	AllowLocalhost       bool
	AllowPrivateNetworks bool
}

// Validator classifies candidate URLs as fetchable before any connection is
// made. It must run on every redirect hop, not just the original URL: a
// redirect to a private address is blocked exactly like a direct request.
type Validator struct {
	resolver Resolver
	opts     ValidatorOptions
}

// NewValidator builds a Validator using the system resolver.
func NewValidator(opts ValidatorOptions) *Validator {
	return &Validator{resolver: net.DefaultResolver, opts: opts}
}

// NewValidatorWithResolver builds a Validator with a custom resolver.
func NewValidatorWithResolver(resolver Resolver, opts ValidatorOptions) *Validator {
	return &Validator{resolver: resolver, opts: opts}
}

// Validate parses rawURL and rejects anything that could reach internal
// infrastructure. A hostname is resolved to all its addresses and rejected
// if any one of them is private — partial blocking would leave a
// DNS-rebinding bypass open.
func (v *Validator) Validate(ctx context.Context, rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrDisallowedScheme, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if !v.opts.AllowLocalhost && isLocalHostname(host) {
		return nil, fmt.Errorf("%w: %s", ErrBlockedHost, host)
	}

	// Literal IPs are classified directly; hostnames go through DNS and
	// every resolved address must pass.
	if addr, err := netip.ParseAddr(host); err == nil {
		if err := v.checkAddr(addr); err != nil {
			return nil, fmt.Errorf("%w: %s", err, host)
		}
		return parsed, nil
	}

	addrs, err := v.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot resolve %s: %v", ErrBlockedHost, host, err)
	}
	for _, a := range addrs {
		addr, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			return nil, fmt.Errorf("%w: %s resolves to unrecognized address", ErrBlockedHost, host)
		}
		if err := v.checkAddr(addr); err != nil {
			return nil, fmt.Errorf("%w: %s resolves to %s", err, host, addr)
		}
	}

	return parsed, nil
}

func (v *Validator) checkAddr(addr netip.Addr) error {
	addr = addr.Unmap()

	// Fail closed on anything that is not plain IPv4/IPv6.
	if !addr.Is4() && !addr.Is6() {
		return ErrBlockedHost
	}

	if !v.opts.AllowLocalhost {
		for _, p := range loopbackPrefixes {
			if p.Contains(addr) {
				return ErrBlockedHost
			}
		}
	}
	if !v.opts.AllowPrivateNetworks {
		for _, p := range privatePrefixes {
			if p.Contains(addr) {
				return ErrBlockedHost
			}
		}
	}
	return nil
}

func isLocalHostname(host string) bool {
	return host == "localhost" || strings.HasSuffix(host, ".localhost")
}

package webfetch

import (
	"context"
	"errors"
	"net"
	"testing"
)

// fakeResolver returns canned addresses per host.
type fakeResolver struct {
	addrs map[string][]string
}

func (f *fakeResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := f.addrs[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	out := make([]net.IPAddr, len(ips))
	for i, s := range ips {
		out[i] = net.IPAddr{IP: net.ParseIP(s)}
	}
	return out, nil
}

func newTestValidator(addrs map[string][]string, opts ValidatorOptions) *Validator {
	return NewValidatorWithResolver(&fakeResolver{addrs: addrs}, opts)
}

func TestValidateScheme(t *testing.T) {
	v := newTestValidator(nil, ValidatorOptions{})

	tests := []struct {
		url     string
		wantErr error
	}{
		{"ftp://example.com/file", ErrDisallowedScheme},
		{"file:///etc/passwd", ErrDisallowedScheme},
		{"javascript:alert(1)", ErrDisallowedScheme},
		{"gopher://example.com", ErrDisallowedScheme},
		{"not a url at all", ErrDisallowedScheme},
		{"http://[::1", ErrInvalidURL},
		{"http://", ErrInvalidURL},
	}

	for _, tt := range tests {
		_, err := v.Validate(context.Background(), tt.url)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Validate(%q) error = %v, want %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestValidateLocalhost(t *testing.T) {
	v := newTestValidator(nil, ValidatorOptions{})

	for _, u := range []string{
		"http://localhost/",
		"http://localhost:8080/admin",
		"https://sub.localhost/x",
		"http://LOCALHOST/",
	} {
		if _, err := v.Validate(context.Background(), u); !errors.Is(err, ErrBlockedHost) {
			t.Errorf("Validate(%q) error = %v, want ErrBlockedHost", u, err)
		}
	}
}

func TestValidateLiteralIPs(t *testing.T) {
	// No resolver entries: literal IPs must be classified without DNS.
	v := newTestValidator(nil, ValidatorOptions{})

	blocked := []string{
		"http://10.0.0.5/",
		"http://127.0.0.1:6379/",
		"http://0.0.0.1/",
		"http://169.254.169.254/latest/meta-data/",
		"http://172.16.0.1/",
		"http://172.31.255.255/",
		"http://192.168.1.1/",
		"http://[::1]/",
		"http://[fc00::1]/",
		"http://[fdab::1]/",
		"http://[fe80::1]/",
		"http://[::ffff:10.0.0.1]/",
	}
	for _, u := range blocked {
		if _, err := v.Validate(context.Background(), u); !errors.Is(err, ErrBlockedHost) {
			t.Errorf("Validate(%q) error = %v, want ErrBlockedHost", u, err)
		}
	}

	allowed := []string{
		"http://93.184.216.34/",
		"https://8.8.8.8/",
		"http://172.32.0.1/",
		"http://[2001:4860:4860::8888]/",
	}
	for _, u := range allowed {
		if _, err := v.Validate(context.Background(), u); err != nil {
			t.Errorf("Validate(%q) error = %v, want nil", u, err)
		}
	}
}

func TestValidateResolvedHosts(t *testing.T) {
	v := newTestValidator(map[string][]string{
		"public.example":  {"93.184.216.34"},
		"dual.example":    {"93.184.216.34", "2606:2800:220:1::1"},
		"rebound.example": {"93.184.216.34", "10.0.0.5"},
		"private.example": {"192.168.0.10"},
		"v6local.example": {"fe80::1"},
	}, ValidatorOptions{})

	for _, u := range []string{"http://public.example/", "https://dual.example/page"} {
		if _, err := v.Validate(context.Background(), u); err != nil {
			t.Errorf("Validate(%q) error = %v, want nil", u, err)
		}
	}

	// Any private address among the records blocks the host, even when a
	// public one is also present.
	for _, u := range []string{
		"http://rebound.example/",
		"http://private.example/",
		"http://v6local.example/",
	} {
		if _, err := v.Validate(context.Background(), u); !errors.Is(err, ErrBlockedHost) {
			t.Errorf("Validate(%q) error = %v, want ErrBlockedHost", u, err)
		}
	}

	if _, err := v.Validate(context.Background(), "http://unresolvable.example/"); !errors.Is(err, ErrBlockedHost) {
		t.Errorf("unresolvable host error = %v, want ErrBlockedHost", err)
	}
}

func TestValidateOptions(t *testing.T) {
	v := newTestValidator(nil, ValidatorOptions{AllowLocalhost: true, AllowPrivateNetworks: true})

	for _, u := range []string{
		"http://localhost:1234/",
		"http://127.0.0.1:1234/",
		"http://192.168.1.10/",
	} {
		if _, err := v.Validate(context.Background(), u); err != nil {
			t.Errorf("Validate(%q) with permissive options error = %v, want nil", u, err)
		}
	}
}

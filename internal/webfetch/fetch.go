package webfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// MaxBodyBytes is the hard cap on a fetched response body.
	MaxBodyBytes = 1 << 20 // 1 MiB

	// MaxRedirects is the number of redirect hops followed before giving up.
	MaxRedirects = 5

	// HopTimeout bounds each connection attempt.
	HopTimeout = 15 * time.Second

	userAgent = "commonplace/1.0 (shared memory fetcher)"
)

// Fetcher retrieves URL content with size, time, and redirect bounds. The
// validator runs before every connection attempt, including redirect targets.
type Fetcher struct {
	validator *Validator
	client    *http.Client
}

// NewFetcher builds a Fetcher around the given validator. Redirects are
// followed by an explicit hop loop here, never by the client itself.
func NewFetcher(validator *Validator) *Fetcher {
	return &Fetcher{
		validator: validator,
		client: &http.Client{
			Timeout: HopTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Fetch retrieves rawURL and returns the response body and the final URL
// after redirects. Oversize bodies and redirect loops never return partial
// content; they surface as typed errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, string, error) {
	current := rawURL
	redirects := 0

	for {
		u, err := f.validator.Validate(ctx, current)
		if err != nil {
			return "", "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			if isTimeout(err) {
				return "", "", fmt.Errorf("%w: %s", ErrFetchTimeout, u.Host)
			}
			return "", "", fmt.Errorf("fetch %s: %w", u.Host, err)
		}

		if isRedirect(resp.StatusCode) {
			loc := resp.Header.Get("Location")
			resp.Body.Close()

			if loc == "" {
				return "", "", fmt.Errorf("%w: status %d", ErrMissingLocation, resp.StatusCode)
			}
			redirects++
			if redirects > MaxRedirects {
				return "", "", fmt.Errorf("%w: exceeded %d hops", ErrTooManyRedirects, MaxRedirects)
			}
			next, err := u.Parse(loc)
			if err != nil {
				return "", "", fmt.Errorf("%w: bad redirect target %q", ErrInvalidURL, loc)
			}
			current = next.String()
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", "", &StatusError{Code: resp.StatusCode}
		}

		// Content type is inspected but never enforced: degraded output
		// beats false rejection.
		if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/") {
			log.Printf("webfetch: non-text content-type %q from %s, extracting anyway", ct, u.Host)
		}

		body, err := readCapped(resp.Body)
		resp.Body.Close()
		if err != nil {
			if isTimeout(err) {
				return "", "", fmt.Errorf("%w: reading body from %s", ErrFetchTimeout, u.Host)
			}
			return "", "", err
		}

		return body, u.String(), nil
	}
}

// readCapped streams r and aborts the moment accumulated bytes exceed
// MaxBodyBytes. Partial data is discarded, regardless of Content-Length.
func readCapped(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(data) > MaxBodyBytes {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrResponseTooLarge, MaxBodyBytes)
	}
	return string(data), nil
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

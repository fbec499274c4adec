package webfetch

import (
	"errors"
	"fmt"
)

// Sentinel errors for URL validation and fetching. Validation failures are
// safety rejections; the rest are fetch failures. None are retried.
var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrDisallowedScheme = errors.New("disallowed url scheme")
	ErrBlockedHost      = errors.New("blocked host")
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrMissingLocation  = errors.New("redirect missing location header")
	ErrResponseTooLarge = errors.New("response body too large")
	ErrFetchTimeout     = errors.New("fetch timed out")
)

// StatusError reports a non-redirect, non-200 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d", e.Code)
}

package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch is matched by every *FetchError.
	ErrFetch = errors.New("fetch failed")

	// ErrInvalidProxyAddress indicates the proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address: must be host:port")

	// ErrBodyTooLarge indicates the response exceeded the maximum body size.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrEmptyURL indicates there was no URL to fetch.
	ErrEmptyURL = errors.New("empty URL")
)

// FetchError describes a failed retrieval of a single URL.
// StatusCode is zero when no HTTP response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements error.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

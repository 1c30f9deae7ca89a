package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRetryableStatus marks an attempt that ended with HTTP 429 or 5xx.
	// It is wrapped inside UpstreamFetchError after retries are exhausted.
	ErrRetryableStatus = errors.New("retryable upstream status")

	// ErrInvalidProxyURL is returned when the proxy URL cannot be used.
	// Supported schemes are socks5, socks5h, http and https.
	ErrInvalidProxyURL = errors.New("invalid proxy URL: expected socks5://, http:// or https://")
)

// UpstreamFetchError reports a fetch that failed after all attempts, either
// with a retryable HTTP status or with a network-level error.
type UpstreamFetchError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the status of the last attempt, or 0 when no response
	// was received.
	StatusCode int

	// Attempts is the number of requests that were issued.
	Attempts int

	// Err is the cause of the last failed attempt.
	Err error
}

// Error implements the error interface.
func (e *UpstreamFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed after %d attempt(s): HTTP %d", e.URL, e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

// Unwrap returns the underlying cause.
func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// IsRetryableStatus reports whether an HTTP status should be retried.
func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// statusError is the per-attempt error for a retryable status.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

func (e *statusError) Unwrap() error {
	return ErrRetryableStatus
}

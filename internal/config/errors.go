package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() before any network
// activity starts, so a misconfigured run never touches the target site.
var (
	// ErrNoStartURL is returned when no start URL is given.
	ErrNoStartURL = errors.New("no start URL specified: provide a sitemap or page URL")

	// ErrInvalidStartURL is returned when the start URL is not an absolute
	// http or https URL.
	ErrInvalidStartURL = errors.New("invalid start URL: must be an absolute http or https URL")

	// ErrInvalidRate is returned when the request rate is negative.
	// Rates below 1 are raised to 1 request per second by the limiter.
	ErrInvalidRate = errors.New("invalid rate: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidMaxProducts is returned when the product limit is negative.
	// Use 0 to extract every discovered product.
	ErrInvalidMaxProducts = errors.New("invalid max products: must be non-negative")

	// ErrMissingDatabaseURL is returned when --upsert is requested but no
	// database URL is configured.
	ErrMissingDatabaseURL = errors.New("missing database URL: set " + EnvDatabaseURL + " to use --upsert")
)

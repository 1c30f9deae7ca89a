package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nao1215/catalogcrawler/internal/model"
)

const (
	// DefaultUserAgent identifies the crawler and a contact point.
	DefaultUserAgent = "catalogcrawler/1.0 (+https://github.com/nao1215/catalogcrawler)"

	// DefaultAccept asks for HTML and XML documents.
	DefaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,text/xml;q=0.8,*/*;q=0.5"

	// DefaultMaxBodySize caps the bytes read from a response body.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultMaxAttempts is the total number of attempts per fetch.
	DefaultMaxAttempts = 3

	// DefaultInitialBackoff is the wait before the second attempt.
	// Each further wait doubles.
	DefaultInitialBackoff = 500 * time.Millisecond

	// backoffMultiplier is the growth factor between waits.
	backoffMultiplier = 2
)

// Fetcher issues rate-limited GET requests with retry on transient failure.
type Fetcher struct {
	client         *http.Client
	limiter        *Limiter
	userAgent      string
	accept         string
	maxBodySize    int64
	maxAttempts    int
	initialBackoff time.Duration
	logger         *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per response.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithRetryPolicy sets the total attempt count and the first backoff wait.
func WithRetryPolicy(maxAttempts int, initialBackoff time.Duration) Option {
	return func(f *Fetcher) {
		if maxAttempts > 0 {
			f.maxAttempts = maxAttempts
		}
		if initialBackoff > 0 {
			f.initialBackoff = initialBackoff
		}
	}
}

// WithLogger sets the logger used for retry notifications.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher sending requests through client and spacing
// them with limiter. A nil limiter gets a private one.
func NewFetcher(client *http.Client, limiter *Limiter, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if limiter == nil {
		limiter = NewLimiter()
	}

	f := &Fetcher{
		client:         client,
		limiter:        limiter,
		userAgent:      DefaultUserAgent,
		accept:         DefaultAccept,
		maxBodySize:    DefaultMaxBodySize,
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Limiter returns the limiter shared by this fetcher.
func (f *Fetcher) Limiter() *Limiter {
	return f.limiter
}

// requestConfig holds per-call settings.
type requestConfig struct {
	headers map[string]string
}

// RequestOption configures a single Fetch call.
type RequestOption func(*requestConfig)

// WithHeader adds a header to a single request.
func WithHeader(key, value string) RequestOption {
	return func(c *requestConfig) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

// WithHeaders adds several headers to a single request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(c *requestConfig) {
		for k, v := range headers {
			WithHeader(k, v)(c)
		}
	}
}

// Fetch performs a GET of rawURL at rateHz requests per second.
//
// Every attempt waits on the shared limiter first. Attempts ending in HTTP
// 429, 5xx or a network error are retried up to the configured attempt
// count with exponential backoff; the final failure is returned as an
// *UpstreamFetchError. Any other response, including 4xx other than 429,
// is returned without error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, rateHz float64, opts ...RequestOption) (*model.Page, error) {
	cfg := &requestConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var (
		page       *model.Page
		attempts   int
		lastStatus int
	)

	operation := func() error {
		if err := f.limiter.Wait(ctx, rateHz); err != nil {
			return backoff.Permanent(err)
		}
		attempts++

		p, err := f.do(ctx, rawURL, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			lastStatus = 0
			return err
		}

		lastStatus = p.StatusCode
		if IsRetryableStatus(p.StatusCode) {
			return &statusError{code: p.StatusCode}
		}

		page = p
		return nil
	}

	notify := func(err error, wait time.Duration) {
		f.logger.Debug("retrying fetch",
			"url", rawURL,
			"attempt", attempts,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, f.newBackOff(ctx), notify); err != nil {
		return nil, &UpstreamFetchError{
			URL:        rawURL,
			StatusCode: lastStatus,
			Attempts:   attempts,
			Err:        err,
		}
	}

	return page, nil
}

// newBackOff builds the retry schedule: initialBackoff, then doubling,
// without jitter, for maxAttempts-1 retries.
func (f *Fetcher) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.initialBackoff
	b.Multiplier = backoffMultiplier
	b.RandomizationFactor = 0
	b.MaxInterval = f.initialBackoff << uint(f.maxAttempts)
	b.MaxElapsedTime = 0
	b.Reset()

	retries := f.maxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// do issues one request and reads the body up to the size limit.
func (f *Fetcher) do(ctx context.Context, rawURL string, cfg *requestConfig) (*model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", f.accept)
	for k, v := range cfg.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return model.NewPage(rawURL, resp.StatusCode, resp.Header, body), nil
}

// IsUpstreamFetchError reports whether err is or wraps an UpstreamFetchError.
func IsUpstreamFetchError(err error) bool {
	var target *UpstreamFetchError
	return errors.As(err, &target)
}

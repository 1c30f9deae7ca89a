// Package robots implements a best-effort robots.txt gate for crawl roots.
//
// Only the wildcard user-agent block and its Disallow prefixes are honored.
// Allow overrides, crawl-delay and agent-specific rules are ignored. When the
// robots file cannot be fetched or is not served with a 2xx status the
// checker fails open and allows the URL.
package robots

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/nao1215/catalogcrawler/internal/fetch"
	"github.com/nao1215/catalogcrawler/internal/model"
)

// ErrPolicyViolation is wrapped by PolicyViolationError.
var ErrPolicyViolation = errors.New("disallowed by robots policy")

// PolicyViolationError reports a crawl root that robots.txt disallows.
type PolicyViolationError struct {
	URL string
}

// Error implements the error interface.
func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("%s is disallowed by robots policy", e.URL)
}

// Unwrap returns ErrPolicyViolation.
func (e *PolicyViolationError) Unwrap() error {
	return ErrPolicyViolation
}

// PageFetcher fetches a document. *fetch.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, rateHz float64, opts ...fetch.RequestOption) (*model.Page, error)
}

// Policy is the parsed wildcard block of one robots.txt file.
type Policy struct {
	// Disallow holds the path prefixes collected under "User-agent: *".
	Disallow []string
}

// Allows reports whether path is outside every disallowed prefix.
func (p *Policy) Allows(path string) bool {
	if path == "" {
		path = "/"
	}
	for _, prefix := range p.Disallow {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// Parse reads a robots.txt body.
//
// Lines are processed in order with "#" comments removed and directive
// names matched case-insensitively. A run of consecutive User-agent lines
// opens a block that matches the wildcard when any of them names "*";
// Disallow lines with a non-empty value are collected while inside it.
func Parse(body string) *Policy {
	policy := &Policy{Disallow: make([]string, 0)}
	inWildcard := false
	inAgentList := false

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if !inAgentList {
				inWildcard = false
			}
			inWildcard = inWildcard || value == "*"
			inAgentList = true
			continue
		case "disallow":
			if inWildcard && value != "" {
				policy.Disallow = append(policy.Disallow, value)
			}
		}
		inAgentList = false
	}

	return policy
}

// Checker decides whether URLs may be crawled. Policies are cached per
// origin for the lifetime of the checker.
type Checker struct {
	fetcher PageFetcher
	rate    float64
	headers map[string]string
	logger  *slog.Logger

	mu       sync.Mutex
	policies map[string]*Policy
}

// Option configures a Checker.
type Option func(*Checker)

// WithRate sets the request rate used to fetch robots files.
func WithRate(rateHz float64) Option {
	return func(c *Checker) {
		c.rate = rateHz
	}
}

// WithHeaders adds headers to every robots.txt request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Checker) {
		c.headers = headers
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// NewChecker creates a Checker fetching robots files through fetcher.
func NewChecker(fetcher PageFetcher, opts ...Option) *Checker {
	c := &Checker{
		fetcher:  fetcher,
		rate:     1,
		logger:   slog.Default(),
		policies: make(map[string]*Policy),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAllowed reports whether rawURL may be crawled.
// Unparseable URLs, unreachable robots files and non-2xx responses all
// yield true.
func (c *Checker) IsAllowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		c.logger.Debug("robots check skipped for unparseable URL", "url", rawURL)
		return true
	}
	return c.policyFor(ctx, u).Allows(u.EscapedPath())
}

// Check returns a *PolicyViolationError when rawURL is disallowed.
func (c *Checker) Check(ctx context.Context, rawURL string) error {
	if !c.IsAllowed(ctx, rawURL) {
		return &PolicyViolationError{URL: rawURL}
	}
	return nil
}

// policyFor returns the cached or freshly fetched policy for u's origin.
func (c *Checker) policyFor(ctx context.Context, u *url.URL) *Policy {
	origin := u.Scheme + "://" + u.Host

	c.mu.Lock()
	policy, ok := c.policies[origin]
	c.mu.Unlock()
	if ok {
		return policy
	}

	policy = c.fetchPolicy(ctx, origin)

	c.mu.Lock()
	c.policies[origin] = policy
	c.mu.Unlock()

	return policy
}

// fetchPolicy downloads and parses robots.txt, failing open on any error.
func (c *Checker) fetchPolicy(ctx context.Context, origin string) *Policy {
	robotsURL := origin + "/robots.txt"

	page, err := c.fetcher.Fetch(ctx, robotsURL, c.rate, fetch.WithHeaders(c.headers))
	if err != nil {
		c.logger.Warn("robots.txt unavailable, allowing crawl", "url", robotsURL, "error", err)
		return &Policy{}
	}
	if !page.IsSuccess() {
		c.logger.Warn("robots.txt returned non-success status, allowing crawl",
			"url", robotsURL,
			"status", page.StatusCode,
		)
		return &Policy{}
	}

	policy := Parse(string(page.Raw))
	c.logger.Debug("robots policy loaded", "url", robotsURL, "disallow", len(policy.Disallow))
	return policy
}

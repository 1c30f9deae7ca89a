package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout bounds each HTTP request, including reading the body.
	DefaultTimeout = 20 * time.Second

	// maxRedirects is the number of redirects followed before the last
	// response is returned as-is.
	maxRedirects = 10
)

// ClientConfig configures the HTTP client used by a Fetcher.
type ClientConfig struct {
	// Timeout is the per-request timeout. Zero means DefaultTimeout.
	Timeout time.Duration

	// ProxyURL routes traffic through a proxy when set.
	// socks5:// and socks5h:// use a SOCKS5 dialer; http:// and https://
	// use an HTTP CONNECT proxy.
	ProxyURL string

	// Headers are added to every request sent by the client.
	Headers map[string]string
}

// NewHTTPClient creates an *http.Client for crawling.
func NewHTTPClient(cfg ClientConfig) (*http.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: timeout,
	}

	if cfg.ProxyURL != "" {
		if err := configureProxy(transport, dialer, cfg.ProxyURL); err != nil {
			return nil, err
		}
	}

	var rt http.RoundTripper = transport
	if len(cfg.Headers) > 0 {
		rt = &headerInjectingTransport{base: transport, headers: cfg.Headers}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// configureProxy points the transport at the proxy described by rawURL.
func configureProxy(transport *http.Transport, forward *net.Dialer, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidProxyURL, rawURL)
	}

	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
		return nil
	case "socks5", "socks5h":
		d, err := proxy.FromURL(u, forward)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := d.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return d.Dial(network, addr)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProxyURL, rawURL)
	}
}

// headerInjectingTransport adds configured headers to every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, value := range t.headers {
		if clone.Header.Get(key) == "" {
			clone.Header.Set(key, value)
		}
	}
	return t.base.RoundTrip(clone)
}

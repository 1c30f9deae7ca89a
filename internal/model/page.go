package model

import (
	"net/http"
	"strings"
)

// Page represents a fetched document (HTML page, sitemap or robots file).
// It holds the final status, headers and raw body of the response.
type Page struct {
	// URL is the requested URL.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// Headers contains the HTTP response headers.
	Headers http.Header `json:"headers,omitempty"`

	// ContentType is the MIME type of the response, without parameters.
	ContentType string `json:"content_type"`

	// Raw contains the response body, limited by the fetcher's body size cap.
	Raw []byte `json:"-"`
}

// NewPage creates a Page from an HTTP response's metadata and body.
func NewPage(url string, statusCode int, headers http.Header, body []byte) *Page {
	p := &Page{
		URL:        url,
		StatusCode: statusCode,
		Headers:    headers,
		Raw:        body,
	}
	if headers != nil {
		ct := headers.Get("Content-Type")
		if i := strings.Index(ct, ";"); i >= 0 {
			ct = ct[:i]
		}
		p.ContentType = strings.TrimSpace(strings.ToLower(ct))
	}
	return p
}

// IsSuccess reports whether the response carried a 2xx status.
func (p *Page) IsSuccess() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Snapshot returns at most limit bytes of the raw body as a string.
func (p *Page) Snapshot(limit int) string {
	if limit <= 0 || len(p.Raw) <= limit {
		return string(p.Raw)
	}
	return string(p.Raw[:limit])
}

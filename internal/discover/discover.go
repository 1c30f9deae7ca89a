// Package discover walks sitemap documents to find category and product URLs.
//
// Discovery only runs for crawl roots whose path ends in ".xml". A sitemap
// index is expanded recursively up to DefaultMaxDepth levels below the root;
// each URL set is classified by path heuristics. A branch whose fetch or
// parse fails contributes no URLs and discovery continues with the others.
package discover

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nao1215/catalogcrawler/internal/fetch"
	"github.com/nao1215/catalogcrawler/internal/model"
)

// DefaultMaxDepth is the deepest sitemap level expanded. The root is level 0.
const DefaultMaxDepth = 3

// ErrMalformedSitemap is logged when a sitemap body is not valid XML.
var ErrMalformedSitemap = errors.New("malformed sitemap")

// productMarkers and categoryMarkers are matched against the lowercased URL.
var (
	productMarkers  = []string{"/product/", "/products/"}
	categoryMarkers = []string{"/category/", "/categories/", "/men/", "/women/"}
)

// Kind classifies a URL found in a sitemap.
type Kind int

const (
	// KindOther is a URL that is neither a product nor a category.
	KindOther Kind = iota
	// KindProduct is a product detail page.
	KindProduct
	// KindCategory is a category listing page.
	KindCategory
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindProduct:
		return "product"
	case KindCategory:
		return "category"
	default:
		return "other"
	}
}

// Classify applies the path heuristics. Product markers win over category
// markers, so "/men/products/x" is a product.
func Classify(rawURL string) Kind {
	lower := strings.ToLower(rawURL)
	for _, m := range productMarkers {
		if strings.Contains(lower, m) {
			return KindProduct
		}
	}
	for _, m := range categoryMarkers {
		if strings.Contains(lower, m) {
			return KindCategory
		}
	}
	return KindOther
}

// IsSitemapURL reports whether rawURL's path ends in ".xml".
func IsSitemapURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".xml")
}

// PageFetcher fetches a document. *fetch.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, rateHz float64, opts ...fetch.RequestOption) (*model.Page, error)
}

// Discoverer walks sitemap trees.
type Discoverer struct {
	fetcher  PageFetcher
	maxDepth int
	headers  map[string]string
	logger   *slog.Logger
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithMaxDepth overrides the deepest level expanded.
func WithMaxDepth(depth int) Option {
	return func(d *Discoverer) {
		if depth >= 0 {
			d.maxDepth = depth
		}
	}
}

// WithHeaders adds headers to every sitemap request.
func WithHeaders(headers map[string]string) Option {
	return func(d *Discoverer) {
		d.headers = headers
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Discoverer) {
		d.logger = logger
	}
}

// NewDiscoverer creates a Discoverer fetching through fetcher.
func NewDiscoverer(fetcher PageFetcher, opts ...Option) *Discoverer {
	d := &Discoverer{
		fetcher:  fetcher,
		maxDepth: DefaultMaxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// walk carries the state of one Discover call.
type walk struct {
	rate    float64
	result  *model.DiscoverResult
	visited map[string]bool
}

// Discover collects category and product URLs reachable from startURL.
// Non-sitemap roots yield an empty result. The only error returned is the
// context's, together with the URLs collected before cancellation.
func (d *Discoverer) Discover(ctx context.Context, startURL string, rateHz float64) (*model.DiscoverResult, error) {
	w := &walk{
		rate:    rateHz,
		result:  model.NewDiscoverResult(),
		visited: make(map[string]bool),
	}

	if !IsSitemapURL(startURL) {
		d.logger.Info("start URL is not a sitemap, nothing to discover", "url", startURL)
		return w.result, nil
	}

	if err := d.visit(ctx, w, startURL, 0); err != nil {
		return w.result, err
	}

	d.logger.Info("discovery complete",
		"products", w.result.ProductURLs.Len(),
		"categories", w.result.CategoryURLs.Len(),
		"sitemaps", len(w.visited),
	)
	return w.result, nil
}

// visit processes one sitemap document at the given depth.
func (d *Discoverer) visit(ctx context.Context, w *walk, sitemapURL string, depth int) error {
	if depth > d.maxDepth {
		d.logger.Debug("sitemap depth limit reached", "url", sitemapURL, "depth", depth)
		return nil
	}
	if w.visited[sitemapURL] {
		return nil
	}
	w.visited[sitemapURL] = true

	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := d.load(ctx, w, sitemapURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		d.logger.Warn("sitemap skipped", "url", sitemapURL, "error", err)
		return nil
	}

	for _, entry := range doc.URLs {
		loc := strings.TrimSpace(entry.Loc)
		switch Classify(loc) {
		case KindProduct:
			w.result.ProductURLs.Add(loc)
		case KindCategory:
			w.result.CategoryURLs.Add(loc)
		case KindOther:
		}
	}

	for _, child := range doc.Sitemaps {
		loc := strings.TrimSpace(child.Loc)
		if loc == "" {
			continue
		}
		if err := d.visit(ctx, w, loc, depth+1); err != nil {
			return err
		}
	}

	return nil
}

// sitemapDocument covers both <sitemapindex> and <urlset> roots.
type sitemapDocument struct {
	XMLName  xml.Name
	Sitemaps []locEntry `xml:"sitemap"`
	URLs     []locEntry `xml:"url"`
}

type locEntry struct {
	Loc string `xml:"loc"`
}

// load fetches and decodes one sitemap.
func (d *Discoverer) load(ctx context.Context, w *walk, sitemapURL string) (*sitemapDocument, error) {
	page, err := d.fetcher.Fetch(ctx, sitemapURL, w.rate, fetch.WithHeaders(d.headers))
	if err != nil {
		return nil, err
	}
	if !page.IsSuccess() {
		return nil, fmt.Errorf("unexpected status %d", page.StatusCode)
	}
	return parseSitemap(page.Raw)
}

// parseSitemap decodes a sitemap body.
func parseSitemap(body []byte) (*sitemapDocument, error) {
	var doc sitemapDocument
	dec := xml.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSitemap, err)
	}
	return &doc, nil
}

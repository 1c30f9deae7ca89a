package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/catalogcrawler/internal/fetch"
	"github.com/nao1215/catalogcrawler/internal/model"
)

// PageFetcher fetches a document. *fetch.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, rateHz float64, opts ...fetch.RequestOption) (*model.Page, error)
}

// Extractor turns product pages into canonical product records.
type Extractor struct {
	fetcher   PageFetcher
	rate      float64
	headers   map[string]string
	sizes     SizeStrategy
	snapshots *SnapshotLog
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRate sets the request rate used for product pages.
func WithRate(rateHz float64) Option {
	return func(e *Extractor) {
		e.rate = rateHz
	}
}

// WithHeaders adds headers to every product page request.
func WithHeaders(headers map[string]string) Option {
	return func(e *Extractor) {
		e.headers = headers
	}
}

// WithSizeStrategy replaces DefaultSizeStrategy.
func WithSizeStrategy(s SizeStrategy) Option {
	return func(e *Extractor) {
		if s != nil {
			e.sizes = s
		}
	}
}

// WithSnapshotLog records a debug snapshot for every extracted product.
func WithSnapshotLog(l *SnapshotLog) Option {
	return func(e *Extractor) {
		e.snapshots = l
	}
}

// WithClock overrides the time source used for last_synced_at.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an Extractor fetching through fetcher.
func NewExtractor(fetcher PageFetcher, opts ...Option) *Extractor {
	e := &Extractor{
		fetcher: fetcher,
		rate:    1,
		sizes:   DefaultSizeStrategy,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the product on rawURL, or nil when the page cannot be
// fetched or parsed. Failures are logged and never abort the caller's batch.
func (e *Extractor) Extract(ctx context.Context, rawURL string) *model.CanonicalProduct {
	p, err := e.ExtractPage(ctx, rawURL)
	if err != nil {
		e.logger.Warn("product extraction failed", "url", rawURL, "error", err)
		return nil
	}
	return p
}

// ExtractPage fetches rawURL and parses it, returning the failure cause.
func (e *Extractor) ExtractPage(ctx context.Context, rawURL string) (*model.CanonicalProduct, error) {
	pg, err := e.fetcher.Fetch(ctx, rawURL, e.rate, fetch.WithHeaders(e.headers))
	if err != nil {
		return nil, err
	}
	if !pg.IsSuccess() {
		return nil, fmt.Errorf("%w %d for %s", ErrUnexpectedStatus, pg.StatusCode, rawURL)
	}

	p, err := e.ParsePage(rawURL, pg.Raw)
	if err != nil {
		return nil, err
	}

	e.snapshots.Record(pg, p.SourceHash)
	e.logger.Debug("product extracted",
		"url", rawURL,
		"title", p.Title,
		"images", len(p.Images),
		"variants", len(p.Variants),
	)
	return p, nil
}

// ParsePage builds a sealed product from raw HTML without any I/O.
// A panic inside the heuristics is converted into a *ParseError.
func (e *Extractor) ParsePage(rawURL string, raw []byte) (p *model.CanonicalProduct, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = &ParseError{URL: rawURL, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseError{URL: rawURL, Err: err}
	}
	doc := goquery.NewDocumentFromNode(root)

	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ParseError{URL: rawURL, Err: err}
	}

	pg := &page{url: base, doc: doc}
	pg.product = findProduct(ldBlocks(doc, func(err error) {
		e.logger.Debug("skipping malformed JSON-LD block", "url", rawURL, "error", err)
	}))

	p = model.NewCanonicalProduct(rawURL, e.now())
	p.SourceProductID = pg.sourceProductID()
	p.Title = pg.title()
	p.Brand = pg.brand()
	p.Price, p.Currency = pg.priceAndCurrency()
	p.Images = pg.images()
	p.DescriptionShort = pg.description()
	p.Categories = pg.categories()
	p.Ratings, p.ReviewsCount = pg.rating()

	for _, size := range distinct(e.sizes(doc)) {
		p.Variants = append(p.Variants, model.NewSizeVariant(size, p.Price))
	}

	p.Meta["raw_html_bytes"] = len(raw)

	if err := p.Seal(); err != nil {
		return nil, &ParseError{URL: rawURL, Err: err}
	}
	return p, nil
}

// IsSkippable reports whether err is a per-page failure that should not
// stop a batch: fetch exhaustion, non-2xx status or a parse failure.
func IsSkippable(err error) bool {
	return fetch.IsUpstreamFetchError(err) || errors.Is(err, ErrUnexpectedStatus) || IsParseError(err)
}

// Package imagemeta reads rights information embedded in product images.
//
// Images flagged by the licensing report still need a human decision, but
// photographers and agencies often leave Artist or Copyright EXIF tags in
// the files they deliver. The Inspector surfaces those tags as hints next
// to the flagged product so reviewers know whom to ask.
package imagemeta

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/catalogcrawler/internal/fetch"
	"github.com/nao1215/catalogcrawler/internal/model"
)

// DefaultMaxImageSize is the largest image body inspected.
const DefaultMaxImageSize = 5 * 1024 * 1024

// rightsTags are the EXIF tags reported as hints.
var rightsTags = map[string]bool{
	"Artist":    true,
	"Author":    true,
	"Copyright": true,
	"XPAuthor":  true,
}

// exifCapable matches URLs of formats that carry EXIF.
var exifCapable = regexp.MustCompile(`(?i)\.(jpe?g|tiff?|heic)(?:\?[^"'\s]*)?$`)

// PageFetcher fetches a document. *fetch.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, rateHz float64, opts ...fetch.RequestOption) (*model.Page, error)
}

// Inspector downloads product images and extracts rights hints.
type Inspector struct {
	fetcher      PageFetcher
	rate         float64
	maxImageSize int
	logger       *slog.Logger
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithRate sets the request rate for image downloads.
func WithRate(rateHz float64) Option {
	return func(i *Inspector) {
		i.rate = rateHz
	}
}

// WithMaxImageSize overrides DefaultMaxImageSize.
func WithMaxImageSize(size int) Option {
	return func(i *Inspector) {
		if size > 0 {
			i.maxImageSize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Inspector) {
		i.logger = logger
	}
}

// NewInspector creates an Inspector fetching through fetcher.
func NewInspector(fetcher PageFetcher, opts ...Option) *Inspector {
	i := &Inspector{
		fetcher:      fetcher,
		rate:         1,
		maxImageSize: DefaultMaxImageSize,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Inspect returns the rights hints of p's unlicensed images. Images that
// cannot be fetched, are not served as image/* or carry no EXIF are skipped.
func (i *Inspector) Inspect(ctx context.Context, p *model.CanonicalProduct) ([]model.RightsHint, error) {
	hints := make([]model.RightsHint, 0)
	for _, img := range p.Images {
		if err := ctx.Err(); err != nil {
			return hints, err
		}
		if img.LicensedForUse == model.LicensePermissionGranted || !exifCapable.MatchString(img.SourceImageURL) {
			continue
		}

		page, err := i.fetcher.Fetch(ctx, img.SourceImageURL, i.rate, fetch.WithHeader("Accept", "image/*"))
		if err != nil {
			i.logger.Debug("image fetch failed", "url", img.SourceImageURL, "error", err)
			continue
		}
		if !page.IsSuccess() || len(page.Raw) == 0 || len(page.Raw) > i.maxImageSize {
			continue
		}
		// CDNs answer missing images with HTML error pages.
		if page.ContentType != "" && !strings.HasPrefix(page.ContentType, "image/") {
			i.logger.Debug("skipping non-image response", "url", img.SourceImageURL, "contentType", page.ContentType)
			continue
		}
		hints = append(hints, RightsHints(img.SourceImageURL, page.Raw)...)
	}
	return hints, nil
}

// RightsHints extracts Artist, Author and Copyright style tags from image
// bytes. It returns nil when the data has no readable EXIF block.
func RightsHints(imageURL string, data []byte) []model.RightsHint {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	var hints []model.RightsHint
	for _, entry := range entries {
		if !rightsTags[entry.TagName] || entry.Formatted == "" {
			continue
		}
		hints = append(hints, model.RightsHint{
			ImageURL: imageURL,
			Tag:      entry.TagName,
			Value:    entry.Formatted,
		})
	}
	return hints
}

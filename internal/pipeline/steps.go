package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/catalogcrawler/internal/catalog"
	"github.com/nao1215/catalogcrawler/internal/model"
	"github.com/nao1215/catalogcrawler/internal/report"
)

// PolicyChecker validates a URL against the site's robots policy.
// *robots.Checker satisfies it.
type PolicyChecker interface {
	Check(ctx context.Context, rawURL string) error
}

// URLDiscoverer collects category and product URLs from a start URL.
// *discover.Discoverer satisfies it.
type URLDiscoverer interface {
	Discover(ctx context.Context, startURL string, rateHz float64) (*model.DiscoverResult, error)
}

// ProductStore persists products. *catalog.Store satisfies it.
type ProductStore interface {
	UpsertProduct(ctx context.Context, p *model.CanonicalProduct) (catalog.UpsertResult, error)
}

// ImageInspector reads rights hints from a product's images.
// *imagemeta.Inspector satisfies it.
type ImageInspector interface {
	Inspect(ctx context.Context, p *model.CanonicalProduct) ([]model.RightsHint, error)
}

// RobotsStep aborts the run when the start URL is disallowed.
type RobotsStep struct {
	checker PolicyChecker
}

// NewRobotsStep creates a robots policy step.
func NewRobotsStep(checker PolicyChecker) *RobotsStep {
	return &RobotsStep{checker: checker}
}

// Name returns the step name.
func (s *RobotsStep) Name() string {
	return "robots"
}

// Do executes the robots check.
func (s *RobotsStep) Do(ctx context.Context, run *model.CrawlRun) error {
	return s.checker.Check(ctx, run.StartURL)
}

// DiscoverStep walks the sitemap and writes the discovered URL list.
type DiscoverStep struct {
	discoverer URLDiscoverer
	rate       float64

	// urlsPath is where the DiscoverResult is written. Empty skips writing.
	urlsPath string

	logger *slog.Logger
}

// DiscoverStepOption configures a DiscoverStep.
type DiscoverStepOption func(*DiscoverStep)

// WithURLsPath sets the output path of the discovered URL list.
func WithURLsPath(path string) DiscoverStepOption {
	return func(s *DiscoverStep) {
		s.urlsPath = path
	}
}

// WithDiscoverLogger sets a custom logger for the discover step.
func WithDiscoverLogger(logger *slog.Logger) DiscoverStepOption {
	return func(s *DiscoverStep) {
		s.logger = logger
	}
}

// NewDiscoverStep creates a discovery step fetching sitemaps at rateHz.
func NewDiscoverStep(discoverer URLDiscoverer, rateHz float64, opts ...DiscoverStepOption) *DiscoverStep {
	s := &DiscoverStep{
		discoverer: discoverer,
		rate:       rateHz,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return "discover"
}

// Do executes discovery. The URL list is written even when discovery found
// nothing.
func (s *DiscoverStep) Do(ctx context.Context, run *model.CrawlRun) error {
	result, err := s.discoverer.Discover(ctx, run.StartURL, s.rate)
	if result != nil {
		run.Discovered = result
	}
	if err != nil {
		return fmt.Errorf("discover %s: %w", run.StartURL, err)
	}

	if s.urlsPath == "" {
		return nil
	}
	if err := report.WriteJSONFile(s.urlsPath, run.Discovered); err != nil {
		return fmt.Errorf("failed to write discovered URLs: %w", err)
	}
	s.logger.Info("discovered URLs written",
		"path", s.urlsPath,
		"products", run.Discovered.ProductURLs.Len(),
		"categories", run.Discovered.CategoryURLs.Len(),
	)
	return nil
}

// ExtractStep extracts the discovered product URLs.
type ExtractStep struct {
	pool *ExtractPool

	// maxProducts limits the number of product URLs attempted. Zero means all.
	maxProducts int
}

// NewExtractStep creates an extraction step. maxProducts <= 0 attempts
// every discovered product URL.
func NewExtractStep(pool *ExtractPool, maxProducts int) *ExtractStep {
	if maxProducts < 0 {
		maxProducts = 0
	}
	return &ExtractStep{pool: pool, maxProducts: maxProducts}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do extracts products in discovery order. Failed pages are recorded in
// run.FailedURLs; only cancellation fails the step.
func (s *ExtractStep) Do(ctx context.Context, run *model.CrawlRun) error {
	urls := run.Discovered.ProductURLs.Items()
	if s.maxProducts > 0 && len(urls) > s.maxProducts {
		urls = urls[:s.maxProducts]
	}

	results, err := s.pool.Run(ctx, urls)
	for _, r := range results {
		switch {
		case r.Product != nil:
			run.Products = append(run.Products, r.Product)
		case r.Err != nil && ctx.Err() == nil:
			run.FailedURLs = append(run.FailedURLs, r.URL)
		}
	}
	return err
}

// PersistStep upserts every extracted product into the catalog.
type PersistStep struct {
	store  ProductStore
	logger *slog.Logger
}

// NewPersistStep creates a persistence step.
func NewPersistStep(store ProductStore, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do upserts products in order. The first failure aborts the run.
func (s *PersistStep) Do(ctx context.Context, run *model.CrawlRun) error {
	for _, p := range run.Products {
		res, err := s.store.UpsertProduct(ctx, p)
		if err != nil {
			return fmt.Errorf("persist %s: %w", p.SourceProductURL, err)
		}
		run.Persisted++
		if !res.Changed {
			run.Unchanged++
		}
	}

	s.logger.Info("products persisted",
		"count", run.Persisted,
		"unchanged", run.Unchanged,
	)
	return nil
}

// LicensingStep builds one licensing report row per product.
type LicensingStep struct {
	// inspector adds EXIF rights hints to flagged products. Nil disables it.
	inspector ImageInspector
	logger    *slog.Logger
}

// NewLicensingStep creates a licensing step. inspector may be nil.
func NewLicensingStep(inspector ImageInspector, logger *slog.Logger) *LicensingStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &LicensingStep{inspector: inspector, logger: logger}
}

// Name returns the step name.
func (s *LicensingStep) Name() string {
	return "licensing"
}

// Do fills run.Licensing in product order.
func (s *LicensingStep) Do(ctx context.Context, run *model.CrawlRun) error {
	entries := make([]model.LicensingEntry, 0, len(run.Products))
	for _, p := range run.Products {
		entry := model.NewLicensingEntry(p)
		if s.inspector != nil && entry.ImagesFlagged {
			hints, err := s.inspector.Inspect(ctx, p)
			if err != nil {
				return fmt.Errorf("inspect images of %s: %w", p.SourceProductURL, err)
			}
			if len(hints) > 0 {
				entry.RightsHints = hints
			}
		}
		entries = append(entries, entry)
	}
	run.Licensing = entries
	return nil
}

// ArtifactStep writes the product list and the licensing reports.
type ArtifactStep struct {
	artifacts report.Artifacts
	markdown  bool
	logger    *slog.Logger
}

// ArtifactStepOption configures an ArtifactStep.
type ArtifactStepOption func(*ArtifactStep)

// WithMarkdownReport also writes the Markdown licensing report.
func WithMarkdownReport(enabled bool) ArtifactStepOption {
	return func(s *ArtifactStep) {
		s.markdown = enabled
	}
}

// WithArtifactLogger sets a custom logger for the artifact step.
func WithArtifactLogger(logger *slog.Logger) ArtifactStepOption {
	return func(s *ArtifactStep) {
		s.logger = logger
	}
}

// NewArtifactStep creates the output step for the given paths.
func NewArtifactStep(artifacts report.Artifacts, opts ...ArtifactStepOption) *ArtifactStep {
	s := &ArtifactStep{
		artifacts: artifacts,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ArtifactStep) Name() string {
	return "artifacts"
}

// Do writes <base>.json, <base>.report.json and optionally <base>.report.md.
func (s *ArtifactStep) Do(_ context.Context, run *model.CrawlRun) error {
	if err := report.WriteJSONFile(s.artifacts.Products, report.ProductList(run.Products)); err != nil {
		return fmt.Errorf("failed to write products: %w", err)
	}

	jsonReport := func(w io.Writer) report.Writer {
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	}
	if err := writeRunFile(s.artifacts.Licensing, run, jsonReport); err != nil {
		return fmt.Errorf("failed to write licensing report: %w", err)
	}

	if s.markdown {
		markdownReport := func(w io.Writer) report.Writer {
			return report.NewMarkdownWriter(w)
		}
		if err := writeRunFile(s.artifacts.Markdown, run, markdownReport); err != nil {
			return fmt.Errorf("failed to write markdown report: %w", err)
		}
	}

	s.logger.Info("artifacts written",
		"products", s.artifacts.Products,
		"report", s.artifacts.Licensing,
		"count", len(run.Products),
	)
	return nil
}

// writeRunFile renders run into a freshly created file at path.
func writeRunFile(path string, run *model.CrawlRun, newWriter func(io.Writer) report.Writer) error {
	f, err := report.CreateFile(path)
	if err != nil {
		return err
	}
	if _, err := newWriter(f).Write(run); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/catalogcrawler/internal/extract"
	"github.com/nao1215/catalogcrawler/internal/model"
)

// ProductExtractor turns one product page URL into a record.
// *extract.Extractor satisfies it.
type ProductExtractor interface {
	ExtractPage(ctx context.Context, rawURL string) (*model.CanonicalProduct, error)
}

// ExtractResult is the outcome for one product URL.
type ExtractResult struct {
	// URL is the product page.
	URL string

	// Product is nil when extraction failed.
	Product *model.CanonicalProduct

	// Err is the failure cause, if any.
	Err error
}

// ExtractPool extracts many product pages with bounded concurrency.
//
// With one worker pages are fetched strictly one after another. More
// workers overlap parsing with fetching, but the request rate stays bounded
// by the limiter shared through the extractor's fetcher.
type ExtractPool struct {
	extractor ProductExtractor

	// workers is the maximum number of concurrent extractions.
	workers int

	logger *slog.Logger
}

// PoolOption configures an ExtractPool.
type PoolOption func(*ExtractPool)

// WithPoolLogger sets a custom logger for the pool.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(bp *ExtractPool) {
		bp.logger = logger
	}
}

// WithWorkers sets the number of concurrent extractions. Default is 1.
func WithWorkers(n int) PoolOption {
	return func(bp *ExtractPool) {
		if n > 0 {
			bp.workers = n
		}
	}
}

// NewExtractPool creates a pool over the given extractor.
func NewExtractPool(extractor ProductExtractor, opts ...PoolOption) *ExtractPool {
	bp := &ExtractPool{
		extractor: extractor,
		workers:   1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// Workers returns the configured concurrency.
func (bp *ExtractPool) Workers() int {
	return bp.workers
}

// Run extracts every URL and returns one result per URL, in input order.
// Page failures are reported in the results and never stop the pool.
// Expected per-page failures (fetch exhaustion, non-2xx, unparseable page)
// are logged at Warn, anything else at Error. The returned error is non-nil
// only when ctx is cancelled, in which case the results of pages not yet
// started are left with a nil Product and ctx's error.
func (bp *ExtractPool) Run(ctx context.Context, urls []string) ([]ExtractResult, error) {
	bp.logger.Info("starting extraction",
		"total_urls", len(urls),
		"workers", bp.workers,
	)
	startTime := time.Now()

	// Each goroutine owns one slot, so no locking is needed.
	results := make([]ExtractResult, len(urls))
	for i, u := range urls {
		results[i] = ExtractResult{URL: u}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.workers)

	for i, u := range urls {
		if gctx.Err() != nil {
			results[i].Err = gctx.Err()
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}

			bp.logger.Debug("extracting product",
				"url", u,
				"index", i+1,
				"total", len(urls),
			)

			p, err := bp.extractor.ExtractPage(gctx, u)
			if err != nil {
				results[i].Err = err
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if extract.IsSkippable(err) {
					bp.logger.Warn("product page skipped", "url", u, "error", err)
				} else {
					bp.logger.Error("product extraction failed", "url", u, "error", err)
				}
				return nil
			}
			results[i].Product = p
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	bp.logger.Info("extraction complete",
		"total_urls", len(urls),
		"elapsed", time.Since(startTime),
	)

	return results, err
}

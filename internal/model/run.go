package model

import "time"

// CrawlRun holds the state of a single crawl run while the pipeline executes.
// It is created by the orchestrator, passed to every step and discarded when
// the process exits.
type CrawlRun struct {
	// StartURL is the crawl root, normally a sitemap URL.
	StartURL string `json:"start_url"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Discovered is the result of sitemap discovery.
	Discovered *DiscoverResult `json:"discovered,omitempty"`

	// Products are the successfully extracted records in discovery order.
	Products []*CanonicalProduct `json:"-"`

	// FailedURLs lists product pages that yielded no record.
	FailedURLs []string `json:"failed_urls"`

	// Persisted counts products written to the catalog store.
	Persisted int `json:"persisted"`

	// Unchanged counts upserts whose stored content was already identical.
	Unchanged int `json:"unchanged"`

	// Licensing holds the licensing report rows in product order.
	Licensing []LicensingEntry `json:"-"`

	// CompletedSteps records the names of steps that finished.
	CompletedSteps []string `json:"completed_steps"`

	// Error is the message of the step error that aborted the run, if any.
	Error string `json:"error,omitempty"`
}

// NewCrawlRun creates a run for the given start URL.
func NewCrawlRun(startURL string) *CrawlRun {
	return &CrawlRun{
		StartURL:       startURL,
		StartedAt:      time.Now().UTC(),
		Discovered:     NewDiscoverResult(),
		Products:       make([]*CanonicalProduct, 0),
		FailedURLs:     make([]string, 0),
		Licensing:      make([]LicensingEntry, 0),
		CompletedSteps: make([]string, 0),
	}
}

// Elapsed returns how long the run took, or has taken so far.
func (r *CrawlRun) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Package fetch implements the polite HTTP layer used by every component
// that talks to a crawled site.
//
// A Fetcher enforces a minimum interval between request starts through a
// shared Limiter, identifies the crawler with a User-Agent naming a contact
// point, and retries HTTP 429, 5xx and network failures with exponential
// backoff. When retries are exhausted the caller receives an
// *UpstreamFetchError. Any other status is returned to the caller as-is.
//
// # Usage
//
//	client, _ := fetch.NewHTTPClient(fetch.ClientConfig{Timeout: 20 * time.Second})
//	limiter := fetch.NewLimiter()
//	f := fetch.NewFetcher(client, limiter)
//	page, err := f.Fetch(ctx, "https://example.com/sitemap.xml", 1)
//
// One Limiter should be shared by all workers of a run so that the run has a
// single global request budget.
package fetch

// Package pipeline runs a crawl as an ordered sequence of steps.
//
// A run validates the robots policy of the start URL, discovers product URLs,
// extracts each product, optionally upserts the results into the catalog,
// builds the licensing report and finally writes the run artifacts. Each
// stage is a Step that reads and updates the shared *model.CrawlRun. The
// first step error aborts the run.
//
// Extraction fans out over ExtractPool, an errgroup bounded worker pool that
// keeps results in discovery order. All workers share the fetcher's single
// rate limiter, so adding workers never raises the request rate.
package pipeline

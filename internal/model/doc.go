// Package model defines the core data structures used throughout catalogcrawler.
//
// This package contains the following main types:
//   - Page: A fetched HTTP response body with its status and headers
//   - CanonicalProduct: The normalized, site-agnostic product record
//   - ProductVariant / ProductImage: Nested records owned by a product
//   - DiscoverResult: Category and product URLs found in a sitemap tree
//   - LicensingEntry: One row of the image licensing review report
//   - CrawlRun: The in-memory state of a single crawl run
//
// The models are serializable to JSON for the run artifacts and are the
// unit of persistence for the catalog store. Field names in JSON are part
// of the output contract consumed by downstream import jobs.
package model

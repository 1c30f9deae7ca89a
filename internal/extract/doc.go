// Package extract builds canonical product records from product detail pages.
//
// Structured data is preferred: the first JSON-LD object typed Product
// (arrays and @graph containers are flattened) supplies the title, offer
// price and currency, images, description, categories, brand, SKU and
// aggregate rating. Each field falls back to HTML heuristics when the
// structured value is missing:
//
//   - title: first <h1>, then og:title
//   - price and currency: product/og price meta tags, then 0 and INR
//   - images: absolute http(s) <img> src and data-src in document order
//   - description: meta description, then the first three paragraphs
//   - categories: breadcrumb link texts other than "Home"
//
// Size variants come from a pluggable SizeStrategy. Every record is sealed
// with its source hash and optionally mirrored into a best-effort
// SnapshotLog for debugging site heuristics.
package extract

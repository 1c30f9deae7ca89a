// Package main provides the entry point for the catalogcrawler CLI.
//
// catalogcrawler discovers product pages from a storefront sitemap, extracts
// them into a canonical product schema and optionally upserts the records
// into a SQLite or PostgreSQL catalog.
//
// Usage:
//
//	catalogcrawler crawl https://shop.example.com/sitemap.xml
//	catalogcrawler crawl --upsert --max-products 50 https://shop.example.com/sitemap.xml
//	catalogcrawler extract https://shop.example.com/products/oxford-shirt
//
// See --help for all available options.
package main

// main is the entry point for catalogcrawler.
func main() {
	Execute()
}

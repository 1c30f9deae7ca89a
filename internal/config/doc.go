// Package config provides configuration structures and utilities for
// catalogcrawler. It covers the crawl options set by CLI flags, the
// per-site YAML file and the environment variables holding secrets such as
// the catalog database URL.
package config

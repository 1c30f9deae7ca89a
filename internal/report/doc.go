// Package report writes the artifacts of a crawl run.
//
// This package contains writers for the run's outputs:
//   - JSONWriter: the licensing report (<base>.report.json) and, through
//     WriteValue, the product list and the discovery result
//   - MarkdownWriter: the licensing report for human reviewers (<base>.report.md)
//   - SimpleWriter: a plain-text summary printed when the crawl ends
//
// Writers implement the Writer interface over a *model.CrawlRun. Artifacts
// derives every output path from the single output base given on the
// command line.
package report

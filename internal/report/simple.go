package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// SimpleWriter prints a short plain-text run summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists failed and flagged URLs in addition to the counts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the per-URL listings.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run summary.
func (w *SimpleWriter) Write(run *model.CrawlRun) (int, error) {
	var sb strings.Builder
	summary := model.SummarizeLicensing(run.Licensing, run.Products)

	sb.WriteString(strings.Repeat("=", 60) + "\n")
	sb.WriteString("CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&sb, "Start URL:      %s\n", run.StartURL)
	fmt.Fprintf(&sb, "Duration:       %s\n", run.Elapsed().Round(time.Millisecond))

	categories, products := 0, 0
	if run.Discovered != nil {
		categories = run.Discovered.CategoryURLs.Len()
		products = run.Discovered.ProductURLs.Len()
	}
	fmt.Fprintf(&sb, "Discovered:     %d product URLs, %d category URLs\n", products, categories)
	fmt.Fprintf(&sb, "Extracted:      %d\n", len(run.Products))
	fmt.Fprintf(&sb, "Failed:         %d\n", len(run.FailedURLs))
	if run.Persisted > 0 || run.Unchanged > 0 {
		fmt.Fprintf(&sb, "Persisted:      %d (%d unchanged)\n", run.Persisted, run.Unchanged)
	}
	fmt.Fprintf(&sb, "Images flagged: %d of %d products\n", summary.FlaggedProducts, summary.Products)

	if w.verbose {
		writeList(&sb, "Failed URLs", run.FailedURLs)

		var flagged []string
		for _, e := range run.Licensing {
			if e.ImagesFlagged {
				flagged = append(flagged, e.SourceProductURL)
			}
		}
		writeList(&sb, "Flagged for licensing review", flagged)
	}

	if run.Error != "" {
		fmt.Fprintf(&sb, "\nRun aborted: %s\n", run.Error)
	}

	return io.WriteString(w.output, sb.String())
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(sb, "  - %s\n", item)
	}
}

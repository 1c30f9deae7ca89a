package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// MarkdownWriter outputs the licensing report in Markdown format for the
// manual image rights review.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the licensing report in Markdown format.
func (w *MarkdownWriter) Write(run *model.CrawlRun) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := model.SummarizeLicensing(run.Licensing, run.Products)

	w.writeHeader(md, run, summary)
	w.writeSummary(md, summary)
	w.writeProducts(md, run.Licensing)
	w.writeRightsHints(md, run.Licensing)
	w.writeFailures(md, run.FailedURLs)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.CrawlRun, summary model.LicensingSummary) {
	md.H1("Product Licensing Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + run.StartURL + "`"},
			{"Crawl Date", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", run.Elapsed().Round(time.Second).String()},
			{"Products", strconv.Itoa(summary.Products)},
			{"Failed Pages", strconv.Itoa(len(run.FailedURLs))},
		},
	})
	md.PlainText("")
}

// writeSummary writes the flagged/cleared counts, a chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, summary model.LicensingSummary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Products flagged for review", strconv.Itoa(summary.FlaggedProducts)},
			{"Products cleared", strconv.Itoa(summary.Products - summary.FlaggedProducts)},
			{"Images collected", strconv.Itoa(summary.ImagesReviewed)},
			{"Products with rights hints", strconv.Itoa(summary.ProductsWithHint)},
		},
	})
	md.PlainText("")

	if summary.Products > 0 {
		w.writePieChart(md, summary)
	}

	switch {
	case summary.FlaggedProducts > 0:
		md.Warningf(
			"%d product(s) use images whose usage rights are not confirmed. Review them before publishing.",
			summary.FlaggedProducts,
		)
	case summary.Products > 0:
		md.Tip("All product images have confirmed usage rights.")
	default:
		md.Note("No products were extracted in this run.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of flagged versus cleared products.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary model.LicensingSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Image Rights Status"),
		piechart.WithShowData(true),
	)

	if summary.FlaggedProducts > 0 {
		chart.LabelAndIntValue("Flagged", uint64(summary.FlaggedProducts)) //nolint:gosec // count is never negative
	}
	if cleared := summary.Products - summary.FlaggedProducts; cleared > 0 {
		chart.LabelAndIntValue("Cleared", uint64(cleared)) //nolint:gosec // count is never negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeProducts writes one table row per licensing entry, in crawl order.
func (w *MarkdownWriter) writeProducts(md *markdown.Markdown, entries []model.LicensingEntry) {
	md.H2("Products")
	md.PlainText("")

	if len(entries) == 0 {
		md.PlainText("No products extracted.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		title := e.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			truncateString(title, 50),
			e.SourceProductURL,
			yesNo(e.ImagesFlagged),
			yesNo(e.DescriptionLongPresent),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "Source URL", "Images Flagged", "Long Description"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeRightsHints lists the EXIF rights tags found per product.
func (w *MarkdownWriter) writeRightsHints(md *markdown.Markdown, entries []model.LicensingEntry) {
	var withHints []model.LicensingEntry
	for _, e := range entries {
		if len(e.RightsHints) > 0 {
			withHints = append(withHints, e)
		}
	}
	if len(withHints) == 0 {
		return
	}

	md.H2("Rights Hints")
	md.PlainText("")
	md.PlainText("Rights metadata embedded in the images. Use it to find whom to ask for permission.")
	md.PlainText("")

	for _, e := range withHints {
		md.PlainText("### " + truncateString(e.Title, 80))
		md.PlainText("")

		rows := make([][]string, len(e.RightsHints))
		for i, h := range e.RightsHints {
			rows[i] = []string{truncateString(h.ImageURL, 60), h.Tag, truncateString(h.Value, 60)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Image", "Tag", "Value"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFailures lists product pages that yielded no record.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, failed []string) {
	if len(failed) == 0 {
		return
	}

	md.H2("Failed Pages")
	md.PlainText("")
	md.BulletList(failed...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by catalogcrawler*")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

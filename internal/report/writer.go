package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// Writer renders a finished crawl run.
// Implementations write run results in various formats.
type Writer interface {
	// Write outputs the run to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.CrawlRun) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Artifacts holds the file paths a crawl run produces for one output base.
type Artifacts struct {
	// Products is <base>.json, the extracted product list.
	Products string

	// URLs is <base>.urls.json, the discovery result.
	URLs string

	// Licensing is <base>.report.json, the licensing report.
	Licensing string

	// Markdown is <base>.report.md, the human readable licensing report.
	Markdown string

	// Snapshots is the debug snapshot log placed next to the outputs.
	Snapshots string
}

// NewArtifacts derives the artifact paths from an output base such as
// "products" or "out/shop". A trailing ".json" on the base is ignored so
// that "products.json" does not become "products.json.json".
func NewArtifacts(base, snapshotName string) Artifacts {
	base = strings.TrimSuffix(base, ".json")
	if base == "" {
		base = "products"
	}
	return Artifacts{
		Products:  base + ".json",
		URLs:      base + ".urls.json",
		Licensing: base + ".report.json",
		Markdown:  base + ".report.md",
		Snapshots: filepath.Join(filepath.Dir(base), snapshotName),
	}
}

// CreateFile creates or truncates path, creating parent directories first.
// Files are created with owner-only permissions since product data and
// reports may be commercially sensitive.
func CreateFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // path is operator-supplied output location
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

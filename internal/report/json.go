package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// JSONWriter outputs run artifacts as JSON.
// Write emits the licensing report; WriteValue emits any other artifact
// (the product list or the discovery result).
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run's licensing report: an ordered array with one entry
// per extracted product. An empty run yields [].
func (w *JSONWriter) Write(run *model.CrawlRun) (int, error) {
	entries := run.Licensing
	if entries == nil {
		entries = []model.LicensingEntry{}
	}
	return w.WriteValue(entries)
}

// WriteValue marshals v to JSON and writes it followed by a newline.
// HTML characters in product text are written as-is.
func (w *JSONWriter) WriteValue(v any) (int, error) {
	cw := &countingWriter{w: w.output}
	enc := json.NewEncoder(cw)
	enc.SetEscapeHTML(false)
	if w.indent {
		enc.SetIndent(w.indentPrefix, w.indentString)
	}
	err := enc.Encode(v)
	return cw.n, err
}

// ProductList is the JSON shape of <base>.json.
// A nil slice is written as [] rather than null.
func ProductList(products []*model.CanonicalProduct) []*model.CanonicalProduct {
	if products == nil {
		return []*model.CanonicalProduct{}
	}
	return products
}

// WriteJSONFile writes v as pretty-printed JSON to path.
func WriteJSONFile(path string, v any) error {
	f, err := CreateFile(path)
	if err != nil {
		return err
	}
	if _, err := NewJSONWriter(f, WithPrettyPrint()).WriteValue(v); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// countingWriter counts the bytes passed through to w.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// createTestRun creates a finished run with two products, one of them flagged.
func createTestRun(t *testing.T) *model.CrawlRun {
	t.Helper()

	run := model.NewCrawlRun("https://shop.test/sitemap.xml")
	run.Discovered.ProductURLs.Add("https://shop.test/products/tee")
	run.Discovered.ProductURLs.Add("https://shop.test/products/cap")
	run.Discovered.ProductURLs.Add("https://shop.test/products/gone")
	run.Discovered.CategoryURLs.Add("https://shop.test/category/men")

	tee := model.NewCanonicalProduct("https://shop.test/products/tee", time.Now())
	tee.Title = "Tee <Limited & Co>"
	tee.Images = []model.ProductImage{model.NewProductImage("https://cdn.test/tee.jpg", "")}

	hat := model.NewCanonicalProduct("https://shop.test/products/cap", time.Now())
	hat.Title = "Cap"
	long := "A long description"
	hat.DescriptionLong = &long

	for _, p := range []*model.CanonicalProduct{tee, hat} {
		require.NoError(t, p.Seal())
		run.Products = append(run.Products, p)
		run.Licensing = append(run.Licensing, model.NewLicensingEntry(p))
	}
	run.Licensing[0].RightsHints = []model.RightsHint{
		{ImageURL: "https://cdn.test/tee.jpg", Tag: "Copyright", Value: "ACME Studios"},
	}
	run.FailedURLs = append(run.FailedURLs, "https://shop.test/products/gone")
	run.FinishedAt = run.StartedAt.Add(3 * time.Second)
	return run
}

// TestJSONWriter tests the licensing report JSON output.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes ordered licensing entries", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewJSONWriter(&buf).Write(createTestRun(t))
		require.NoError(t, err)
		assert.Equal(t, buf.Len(), n)

		var entries []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "https://shop.test/products/tee", entries[0]["source_product_url"])
		assert.Equal(t, true, entries[0]["images_flagged"])
		assert.Equal(t, false, entries[1]["images_flagged"])
		assert.Equal(t, true, entries[1]["description_long_present"])
		assert.NotContains(t, entries[1], "rights_hints", "rights_hints is omitted when empty")
	})

	t.Run("empty run writes an empty array", func(t *testing.T) {
		t.Parallel()

		run := model.NewCrawlRun("https://shop.test/")
		run.Licensing = nil

		var buf bytes.Buffer
		_, err := NewJSONWriter(&buf).Write(run)
		require.NoError(t, err)
		assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
	})

	t.Run("pretty print and html characters", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		_, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestRun(t))
		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, "\n  {", "output is indented")
		assert.Contains(t, output, "Tee <Limited & Co>", "HTML characters are written unescaped")
		assert.True(t, strings.HasSuffix(output, "\n"), "output ends with a newline")
	})

	t.Run("discover result keys", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		_, err := NewJSONWriter(&buf).WriteValue(createTestRun(t).Discovered)
		require.NoError(t, err)
		want := `{"categoryUrls":["https://shop.test/category/men"],"productUrls":["https://shop.test/products/tee","https://shop.test/products/cap","https://shop.test/products/gone"]}`
		assert.Equal(t, want, strings.TrimSpace(buf.String()))
	})
}

// TestMarkdownWriter tests the Markdown licensing report.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("full report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		_, err := NewMarkdownWriter(&buf).Write(createTestRun(t))
		require.NoError(t, err)
		output := buf.String()

		for _, want := range []string{
			"# Product Licensing Report",
			"https://shop.test/sitemap.xml",
			"## Summary",
			"```mermaid",
			"1 product(s) use images",
			"## Products",
			"https://shop.test/products/cap",
			"## Rights Hints",
			"ACME Studios",
			"## Failed Pages",
			"https://shop.test/products/gone",
		} {
			assert.Contains(t, output, want)
		}
	})

	t.Run("empty run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		_, err := NewMarkdownWriter(&buf).Write(model.NewCrawlRun("https://shop.test/"))
		require.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, "No products extracted.")
		assert.NotContains(t, output, "mermaid", "an empty run has no chart")
		assert.NotContains(t, output, "## Rights Hints")
		assert.NotContains(t, output, "## Failed Pages")
	})
}

// TestSimpleWriter tests the terminal summary.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("counts", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		_, err := NewSimpleWriter(&buf).Write(createTestRun(t))
		require.NoError(t, err)
		output := buf.String()
		for _, want := range []string{
			"CRAWL SUMMARY",
			"3 product URLs, 1 category URLs",
			"Extracted:      2",
			"Failed:         1",
			"Images flagged: 1 of 2 products",
		} {
			assert.Contains(t, output, want)
		}
		assert.NotContains(t, output, "Failed URLs:", "URL listings are verbose only")
	})

	t.Run("verbose lists urls", func(t *testing.T) {
		t.Parallel()

		run := createTestRun(t)
		run.Persisted, run.Unchanged = 2, 1
		run.Error = "persist: boom"

		var buf bytes.Buffer
		_, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(run)
		require.NoError(t, err)
		output := buf.String()
		for _, want := range []string{
			"Failed URLs:\n  - https://shop.test/products/gone",
			"Flagged for licensing review:\n  - https://shop.test/products/tee",
			"Persisted:      2 (1 unchanged)",
			"Run aborted: persist: boom",
		} {
			assert.Contains(t, output, want)
		}
	})
}

// TestNewArtifacts tests output path derivation.
func TestNewArtifacts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base string
		want Artifacts
	}{
		{
			base: "products",
			want: Artifacts{
				Products:  "products.json",
				URLs:      "products.urls.json",
				Licensing: "products.report.json",
				Markdown:  "products.report.md",
				Snapshots: "debug_snapshots.log",
			},
		},
		{
			base: filepath.Join("out", "shop.json"),
			want: Artifacts{
				Products:  filepath.Join("out", "shop.json"),
				URLs:      filepath.Join("out", "shop.urls.json"),
				Licensing: filepath.Join("out", "shop.report.json"),
				Markdown:  filepath.Join("out", "shop.report.md"),
				Snapshots: filepath.Join("out", "debug_snapshots.log"),
			},
		},
		{
			base: "",
			want: Artifacts{
				Products:  "products.json",
				URLs:      "products.urls.json",
				Licensing: "products.report.json",
				Markdown:  "products.report.md",
				Snapshots: "debug_snapshots.log",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, NewArtifacts(tt.base, "debug_snapshots.log"))
		})
	}
}

// TestWriteJSONFile tests file creation with parent directories.
func TestWriteJSONFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "products.json")
	require.NoError(t, WriteJSONFile(path, ProductList(nil)))

	data, err := os.ReadFile(path) //nolint:gosec // test temp file
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(data)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestURLSet tests insertion order and deduplication.
func TestURLSet(t *testing.T) {
	t.Parallel()

	t.Run("keeps insertion order and drops duplicates", func(t *testing.T) {
		t.Parallel()

		s := NewURLSet("https://a.test/1", "https://a.test/2")
		assert.False(t, s.Add("https://a.test/1"), "duplicate add should report false")
		s.Add("https://a.test/3")

		assert.Equal(t, []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}, s.Items())
	})

	t.Run("zero value is usable", func(t *testing.T) {
		t.Parallel()

		var s URLSet
		assert.False(t, s.Contains("x"))
		s.Add("x")
		assert.True(t, s.Contains("x"))
		assert.Equal(t, 1, s.Len())
	})
}

// TestDiscoverResultJSON tests the artifact encoding of discovery results.
func TestDiscoverResultJSON(t *testing.T) {
	t.Parallel()

	t.Run("empty result encodes empty arrays", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(NewDiscoverResult())
		require.NoError(t, err)
		assert.JSONEq(t, `{"categoryUrls":[],"productUrls":[]}`, string(data))
	})

	t.Run("decoding keeps order", func(t *testing.T) {
		t.Parallel()

		r := NewDiscoverResult()
		r.ProductURLs.Add("https://a.test/products/2")
		r.ProductURLs.Add("https://a.test/products/1")
		r.CategoryURLs.Add("https://a.test/category/men")

		data, err := json.Marshal(r)
		require.NoError(t, err)

		var decoded DiscoverResult
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, []string{"https://a.test/products/2", "https://a.test/products/1"}, decoded.ProductURLs.Items())
		assert.True(t, decoded.CategoryURLs.Contains("https://a.test/category/men"))
	})
}

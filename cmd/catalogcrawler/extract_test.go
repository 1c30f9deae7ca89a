package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/catalogcrawler/internal/config"
	"github.com/nao1215/catalogcrawler/internal/extract"
	"github.com/nao1215/catalogcrawler/internal/log"
	"github.com/nao1215/catalogcrawler/internal/robots"
)

// TestRunExtract tests single-page extraction.
func TestRunExtract(t *testing.T) {
	t.Parallel()

	srv := newShopServer(t)
	logger := log.NewSecureLogger(io.Discard, false)

	newConfig := func(path string) *config.Config {
		cfg := config.NewConfig()
		cfg.StartURL = srv.URL + path
		cfg.Rate = 50
		return cfg
	}

	t.Run("prints the product", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		require.NoError(t, runExtract(context.Background(), newConfig("/products/linen-trousers"), logger, &out))

		var got map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &got), out.String())
		assert.Equal(t, "Linen Trousers", got["title"])
		assert.Equal(t, "INR", got["currency"])
	})

	t.Run("missing page", func(t *testing.T) {
		t.Parallel()

		err := runExtract(context.Background(), newConfig("/products/missing"), logger, io.Discard)
		assert.ErrorIs(t, err, extract.ErrUnexpectedStatus)
	})

	t.Run("disallowed page", func(t *testing.T) {
		t.Parallel()

		err := runExtract(context.Background(), newConfig("/private/item"), logger, io.Discard)
		assert.ErrorIs(t, err, robots.ErrPolicyViolation)
	})
}

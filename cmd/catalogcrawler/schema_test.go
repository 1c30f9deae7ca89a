package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/catalogcrawler/internal/config"
	"github.com/nao1215/catalogcrawler/internal/log"
)

// TestRunSchema tests schema creation and statistics output.
func TestRunSchema(t *testing.T) {
	t.Parallel()

	dsn := "sqlite://" + filepath.Join(t.TempDir(), "catalog.db")
	logger := log.NewSecureLogger(io.Discard, false)

	for i := range 2 {
		var out bytes.Buffer
		require.NoError(t, runSchema(context.Background(), dsn, logger, &out), "run %d", i+1)
		assert.Contains(t, out.String(), "Catalog schema ready (sqlite)")
		assert.Contains(t, out.String(), "products:         0")
	}
}

// TestSchemaCmdEnvironment tests DSN handling through the environment.
func TestSchemaCmdEnvironment(t *testing.T) {
	t.Setenv(config.EnvPath, "")

	t.Run("missing database url", func(t *testing.T) {
		t.Setenv(config.EnvDatabaseURL, "")

		cmd := NewSchemaCmd()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(nil)
		assert.ErrorIs(t, cmd.Execute(), config.ErrMissingDatabaseURL)
	})

	t.Run("database url from env", func(t *testing.T) {
		t.Setenv(config.EnvDatabaseURL, "sqlite://"+filepath.Join(t.TempDir(), "catalog.db"))

		var out bytes.Buffer
		cmd := NewSchemaCmd()
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(nil)
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "product_variants: 0")
	})

	t.Run("unsupported database url", func(t *testing.T) {
		t.Setenv(config.EnvDatabaseURL, "mysql://localhost/catalog")

		cmd := NewSchemaCmd()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(nil)
		assert.Error(t, cmd.Execute())
	})
}

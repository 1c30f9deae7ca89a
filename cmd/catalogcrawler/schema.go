package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/catalogcrawler/internal/catalog"
	"github.com/nao1215/catalogcrawler/internal/config"
	"github.com/nao1215/catalogcrawler/internal/log"
)

// NewSchemaCmd creates the schema command.
func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the catalog tables and print row counts",
		Long: `Schema connects to the catalog named by ` + config.EnvDatabaseURL + `, creates the
products, product_images and product_variants tables if they do not exist
and prints how many rows each table holds. Running it again is harmless.

The variable may also be set in a .env file in the current directory, or in
the file named by ENV_PATH.

Examples:
  CATALOG_DATABASE_URL=sqlite://catalog.db catalogcrawler schema
  CATALOG_DATABASE_URL=postgres://crawler@localhost:5432/catalog catalogcrawler schema`,
		Args: cobra.NoArgs,
		RunE: runSchemaCmd,
	}
}

// runSchemaCmd executes the schema command.
func runSchemaCmd(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(config.DefaultEnvFile); err != nil {
		return err
	}
	dsn := config.DatabaseURLFromEnv()
	if dsn == "" {
		return fmt.Errorf("configuration error: %w", config.ErrMissingDatabaseURL)
	}
	logger := log.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
	return runSchema(cmd.Context(), dsn, logger, cmd.OutOrStdout())
}

// runSchema ensures the catalog schema exists and prints table statistics.
func runSchema(ctx context.Context, dsn string, logger *slog.Logger, out io.Writer) error {
	store, err := catalog.Open(ctx, dsn, catalog.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare catalog schema: %w", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog stats: %w", err)
	}

	fmt.Fprintf(out, "Catalog schema ready (%s)\n", store.Dialect())
	fmt.Fprintf(out, "  products:         %d\n", stats.Products)
	fmt.Fprintf(out, "  product_images:   %d\n", stats.Images)
	fmt.Fprintf(out, "  product_variants: %d\n", stats.Variants)
	return nil
}

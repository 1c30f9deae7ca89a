package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for catalogcrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogcrawler",
		Short: "Polite product crawler that builds a canonical catalog",
		Long: `catalogcrawler discovers product URLs from a site's sitemap, politely fetches
and parses product pages, normalizes JSON-LD and HTML into a canonical product
schema and hashes every record for idempotent re-ingestion.

Results are written as JSON files. With --upsert they are also stored in the
catalog database named by the CATALOG_DATABASE_URL environment variable.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewExtractCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

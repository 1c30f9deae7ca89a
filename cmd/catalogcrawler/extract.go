package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/catalogcrawler/internal/config"
	"github.com/nao1215/catalogcrawler/internal/log"
	"github.com/nao1215/catalogcrawler/internal/report"
	"github.com/nao1215/catalogcrawler/internal/robots"
)

// NewExtractCmd creates the extract command.
func NewExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [product-url]",
		Short: "Extract a single product page and print it as JSON",
		Long: `Extract fetches one product page, normalizes it into the canonical product
schema and prints the record to standard output. Nothing is written to disk
or to the catalog, which makes it handy for checking a site's markup.

Examples:
  catalogcrawler extract https://shop.example.com/products/oxford-shirt

  # Apply the size selectors configured for the site
  catalogcrawler extract -c sites.yaml https://shop.example.com/products/oxford-shirt`,
		Args: cobra.ExactArgs(1),
		RunE: runExtractCmd,
	}

	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().String("proxy", "",
		"Route requests through a proxy (socks5://host:port or http://host:port)")
	cmd.Flags().String("user-agent", "",
		"Override the User-Agent header")
	cmd.Flags().StringP("config", "c", "",
		"Site configuration file (default: .catalogcrawler.yaml in current or home directory)")

	return cmd
}

// runExtractCmd executes the extract command.
func runExtractCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildExtractConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runExtract(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildExtractConfig creates a Config for a single-page extraction.
func buildExtractConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.StartURL = args[0]
	cfg.Verbose = getVerboseFlag(cmd)

	flags := cmd.Flags()
	var err error
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.ProxyURL, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		if cfg.SiteConfigs, err = config.LoadConfigFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}
	if site := cfg.Site(); site.Rate > 0 {
		cfg.Rate = site.Rate
	}
	return cfg, nil
}

// runExtract checks robots.txt, extracts cfg.StartURL and prints the product.
func runExtract(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return err
	}

	site := cfg.Site()
	checker := robots.NewChecker(fetcher,
		robots.WithRate(cfg.Rate),
		robots.WithHeaders(site.Headers),
		robots.WithLogger(logger),
	)
	if err := checker.Check(ctx, cfg.StartURL); err != nil {
		return err
	}

	extractor := newExtractor(fetcher, cfg, site, nil, logger)
	product, err := extractor.ExtractPage(ctx, cfg.StartURL)
	if err != nil {
		return fmt.Errorf("extract %s: %w", cfg.StartURL, err)
	}

	_, err = report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(product)
	return err
}

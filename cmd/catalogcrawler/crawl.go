package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/catalogcrawler/internal/catalog"
	"github.com/nao1215/catalogcrawler/internal/config"
	"github.com/nao1215/catalogcrawler/internal/discover"
	"github.com/nao1215/catalogcrawler/internal/extract"
	"github.com/nao1215/catalogcrawler/internal/fetch"
	"github.com/nao1215/catalogcrawler/internal/imagemeta"
	"github.com/nao1215/catalogcrawler/internal/log"
	"github.com/nao1215/catalogcrawler/internal/model"
	"github.com/nao1215/catalogcrawler/internal/pipeline"
	"github.com/nao1215/catalogcrawler/internal/report"
	"github.com/nao1215/catalogcrawler/internal/robots"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [start-url]",
		Short: "Discover, extract and optionally store a site's products",
		Long: `Crawl reads the sitemap at start-url, extracts every discovered product page
and writes the results next to the output base:

  <base>.urls.json     product and category URLs found in the sitemap
  <base>.json          extracted products in canonical form
  <base>.report.json   image licensing report (one entry per product)
  <base>.report.md     the same report as Markdown (with --markdown)

All requests share one rate budget and robots.txt is honored. Pages that fail
to load or parse are listed in the summary and do not stop the run.

Examples:
  # Crawl a sitemap at the default one request per second
  catalogcrawler crawl https://shop.example.com/sitemap.xml

  # Extract the first 20 products and store them in the catalog
  CATALOG_DATABASE_URL=sqlite://catalog.db \
    catalogcrawler crawl --upsert -n 20 https://shop.example.com/sitemap.xml

  # Write artifacts under out/ with a Markdown report
  catalogcrawler crawl -o out/shop -m https://shop.example.com/sitemap.xml`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputBase,
		"Base path of the output files (<base>.json, <base>.urls.json, <base>.report.json)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Also write the licensing report as <base>.report.md")

	// Crawl behavior flags
	cmd.Flags().Float64P("rate", "r", config.DefaultRate,
		"Requests per second shared by the whole run (values below 1 are raised to 1)")
	cmd.Flags().IntP("max-products", "n", 0,
		"Maximum number of product pages to extract (0 = all)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent product extractions")
	cmd.Flags().String("proxy", "",
		"Route requests through a proxy (socks5://host:port or http://host:port)")
	cmd.Flags().String("user-agent", "",
		"Override the User-Agent header")

	// Catalog flags
	cmd.Flags().BoolP("upsert", "u", false,
		"Upsert extracted products into the catalog named by "+config.EnvDatabaseURL)
	cmd.Flags().Bool("reconcile", false,
		"Delete stored images and variants that disappeared from a product page")
	cmd.Flags().Bool("no-url-identity", false,
		"Insert re-crawled pages as new products instead of updating by source URL")

	// Licensing flags
	cmd.Flags().Bool("inspect-images", false,
		"Download flagged product images and report their EXIF rights tags")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Site configuration file (default: .catalogcrawler.yaml in current or home directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
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

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags, the site
// configuration file and the environment.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	if len(args) > 0 {
		cfg.StartURL = args[0]
	}
	cfg.Verbose = getVerboseFlag(cmd)

	flags := cmd.Flags()
	var err error

	if cfg.OutputBase, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.Markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.Rate, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.MaxProducts, err = flags.GetInt("max-products"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.ProxyURL, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Upsert, err = flags.GetBool("upsert"); err != nil {
		return nil, err
	}
	if cfg.Reconcile, err = flags.GetBool("reconcile"); err != nil {
		return nil, err
	}
	noURLIdentity, err := flags.GetBool("no-url-identity")
	if err != nil {
		return nil, err
	}
	cfg.URLIdentity = !noURLIdentity
	if cfg.InspectImages, err = flags.GetBool("inspect-images"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// The catalog DSN comes from the environment only.
	if err := config.LoadDotEnv(config.DefaultEnvFile); err != nil {
		return nil, err
	}
	cfg.DatabaseURL = config.DatabaseURLFromEnv()

	// If the user explicitly named a config file it must exist; otherwise a
	// missing file just means no site settings.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	// Site settings fill in whatever the command line left at its default.
	site := cfg.Site()
	if !flags.Changed("rate") && site.Rate > 0 {
		cfg.Rate = site.Rate
	}
	if !flags.Changed("max-products") && site.MaxProducts > 0 {
		cfg.MaxProducts = site.MaxProducts
	}

	return cfg, nil
}

// newFetcher builds the shared fetcher for every component of a run.
func newFetcher(cfg *config.Config, logger *slog.Logger) (*fetch.Fetcher, error) {
	client, err := fetch.NewHTTPClient(fetch.ClientConfig{
		Timeout:  cfg.Timeout,
		ProxyURL: cfg.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	opts := []fetch.Option{fetch.WithLogger(logger)}
	if cfg.UserAgent != "" {
		opts = append(opts, fetch.WithUserAgent(cfg.UserAgent))
	}
	return fetch.NewFetcher(client, fetch.NewLimiter(), opts...), nil
}

// newExtractor builds the product extractor for the run's site.
func newExtractor(f *fetch.Fetcher, cfg *config.Config, site config.SiteConfig, snapshots *extract.SnapshotLog, logger *slog.Logger) *extract.Extractor {
	opts := []extract.Option{
		extract.WithRate(cfg.Rate),
		extract.WithHeaders(site.Headers),
		extract.WithSnapshotLog(snapshots),
		extract.WithLogger(logger),
	}
	if len(site.SizeSelectors) > 0 {
		opts = append(opts, extract.WithSizeStrategy(extract.SelectorSizeStrategy(site.SizeSelectors...)))
	}
	return extract.NewExtractor(f, opts...)
}

// newDiscoverer builds the sitemap walker for the run's site.
func newDiscoverer(f *fetch.Fetcher, site config.SiteConfig, logger *slog.Logger) *discover.Discoverer {
	opts := []discover.Option{
		discover.WithHeaders(site.Headers),
		discover.WithLogger(logger),
	}
	if site.SitemapDepth > 0 {
		opts = append(opts, discover.WithMaxDepth(site.SitemapDepth))
	}
	return discover.NewDiscoverer(f, opts...)
}

// openSnapshotLog opens the debug snapshot log next to the output files.
// On failure it logs a warning and returns nil, which discards snapshots.
func openSnapshotLog(path string, logger *slog.Logger) *extract.SnapshotLog {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		logger.Warn("snapshot log disabled", "path", path, "error", err)
		return nil
	}
	snapshots, err := extract.OpenSnapshotLog(path, logger)
	if err != nil {
		logger.Warn("snapshot log disabled", "path", path, "error", err)
		return nil
	}
	return snapshots
}

// runCrawl executes a crawl run and prints its summary to out.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	site := cfg.Site()
	artifacts := report.NewArtifacts(cfg.OutputBase, extract.SnapshotFileName)

	logger.Info("starting crawl",
		"startURL", cfg.StartURL,
		"rate", cfg.Rate,
		"maxProducts", cfg.MaxProducts,
		"workers", cfg.Workers,
		"upsert", cfg.Upsert,
	)

	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return err
	}

	snapshots := openSnapshotLog(artifacts.Snapshots, logger)
	defer func() {
		if err := snapshots.Close(); err != nil {
			logger.Warn("failed to close snapshot log", "error", err)
		}
		stats := snapshots.Stats()
		logger.Debug("snapshot log closed",
			"written", stats.Written, "failed", stats.Failed, "dropped", stats.Dropped)
	}()

	extractor := newExtractor(fetcher, cfg, site, snapshots, logger)
	discoverer := newDiscoverer(fetcher, site, logger)
	checker := robots.NewChecker(fetcher,
		robots.WithRate(cfg.Rate),
		robots.WithHeaders(site.Headers),
		robots.WithLogger(logger),
	)
	pool := pipeline.NewExtractPool(extractor,
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithPoolLogger(logger),
	)

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewRobotsStep(checker),
		pipeline.NewDiscoverStep(discoverer, cfg.Rate,
			pipeline.WithURLsPath(artifacts.URLs),
			pipeline.WithDiscoverLogger(logger),
		),
		pipeline.NewExtractStep(pool, cfg.MaxProducts),
	)

	if cfg.Upsert {
		store, err := catalog.Open(ctx, cfg.DatabaseURL,
			catalog.WithURLIdentity(cfg.URLIdentity),
			catalog.WithChildReconciliation(cfg.Reconcile),
			catalog.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		defer store.Close()

		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare catalog schema: %w", err)
		}
		logger.Info("catalog opened", "dialect", store.Dialect())
		p.AddStep(pipeline.NewPersistStep(store, logger))
	}

	var inspector pipeline.ImageInspector
	if cfg.InspectImages {
		inspector = imagemeta.NewInspector(fetcher,
			imagemeta.WithRate(cfg.Rate),
			imagemeta.WithLogger(logger),
		)
	}
	p.AddSteps(
		pipeline.NewLicensingStep(inspector, logger),
		pipeline.NewArtifactStep(artifacts,
			pipeline.WithMarkdownReport(cfg.Markdown),
			pipeline.WithArtifactLogger(logger),
		),
	)

	run := model.NewCrawlRun(cfg.StartURL)
	runErr := p.Execute(ctx, run)

	writer := report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	if _, err := writer.Write(run); err != nil {
		logger.Warn("failed to print summary", "error", err)
	}

	if runErr != nil {
		if errors.Is(runErr, robots.ErrPolicyViolation) {
			return fmt.Errorf("crawl refused: %w", runErr)
		}
		return fmt.Errorf("crawl failed: %w", runErr)
	}
	return nil
}

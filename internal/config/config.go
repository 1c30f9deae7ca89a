package config

import (
	"math"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "catalogcrawler"

	// DefaultOutputBase is the base name of the run artifacts.
	DefaultOutputBase = "products"

	// DefaultRate is one request per second, the politeness floor the
	// limiter enforces for any lower rate.
	DefaultRate = 1.0

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 20 * time.Second

	// DefaultWorkers keeps extraction strictly sequential.
	DefaultWorkers = 1
)

// Config holds all configuration options for a crawl.
// It is populated from CLI flags, the site file and the environment, then
// passed down explicitly rather than kept in global state.
type Config struct {
	// StartURL is the crawl root, normally a sitemap URL ending in .xml.
	StartURL string

	// OutputBase is the path prefix of the artifacts: <base>.json,
	// <base>.urls.json and <base>.report.json.
	OutputBase string

	// Rate is the requests-per-second budget shared by every request of
	// the run.
	Rate float64

	// Upsert persists extracted products into the catalog store.
	Upsert bool

	// MaxProducts limits the number of product URLs attempted.
	// Zero means every discovered product.
	MaxProducts int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Workers is the number of concurrent product extractions.
	// All workers share the single rate budget.
	Workers int

	// ConfigFilePath is the explicit path of the site configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds the loaded site configuration file, if any.
	SiteConfigs *File

	// Markdown also writes the licensing report as <base>.report.md.
	Markdown bool

	// InspectImages downloads flagged product images and reads their EXIF
	// rights tags into the licensing report.
	InspectImages bool

	// ProxyURL routes all requests through a SOCKS5 or HTTP proxy.
	ProxyURL string

	// Reconcile deletes stored images and variants that are missing from
	// the latest crawl of a product.
	Reconcile bool

	// URLIdentity makes a re-crawl of a known source URL update the
	// existing catalog row instead of inserting a new one.
	URLIdentity bool

	// UserAgent overrides the crawler's User-Agent header when set.
	UserAgent string

	// DatabaseURL is the catalog DSN, read from the environment.
	DatabaseURL string

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputBase:  DefaultOutputBase,
		Rate:        DefaultRate,
		Timeout:     DefaultTimeout,
		Workers:     DefaultWorkers,
		URLIdentity: true,
	}
}

// XDGConfigDir returns the XDG config directory for catalogcrawler.
// On Linux: ~/.config/catalogcrawler
// On macOS: ~/Library/Application Support/catalogcrawler
// On Windows: %APPDATA%\catalogcrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the package's sentinel errors.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return ErrNoStartURL
	}
	u, err := url.Parse(c.StartURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidStartURL
	}

	if c.Rate < 0 || math.IsNaN(c.Rate) || math.IsInf(c.Rate, 0) {
		return ErrInvalidRate
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.MaxProducts < 0 {
		return ErrInvalidMaxProducts
	}

	if c.Upsert && c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}

	return nil
}

// Site returns the merged site configuration for the start URL's host.
// Without a loaded file it returns the zero SiteConfig.
func (c *Config) Site() SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	u, err := url.Parse(c.StartURL)
	if err != nil {
		return c.SiteConfigs.GetSiteConfig("")
	}
	return c.SiteConfigs.GetSiteConfig(u.Hostname())
}

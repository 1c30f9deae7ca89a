package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig verifies the documented defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	assert.Equal(t, "products", cfg.OutputBase)
	assert.InDelta(t, 1.0, cfg.Rate, 0)
	assert.Equal(t, 20*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.Workers)
	assert.Zero(t, cfg.MaxProducts)
	assert.True(t, cfg.URLIdentity, "URL identity is on by default")
	assert.False(t, cfg.Upsert || cfg.Reconcile || cfg.Markdown || cfg.InspectImages,
		"optional features are off by default")
}

// TestConfigValidate tests each validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := NewConfig()
		cfg.StartURL = "https://shop.example.com/sitemap.xml"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "zero rate is clamped later", modify: func(c *Config) { c.Rate = 0 }},
		{name: "upsert with dsn", modify: func(c *Config) { c.Upsert = true; c.DatabaseURL = "sqlite://catalog.db" }},
		{name: "no start url", modify: func(c *Config) { c.StartURL = "" }, wantErr: ErrNoStartURL},
		{name: "relative start url", modify: func(c *Config) { c.StartURL = "/sitemap.xml" }, wantErr: ErrInvalidStartURL},
		{name: "ftp start url", modify: func(c *Config) { c.StartURL = "ftp://shop.example.com/sitemap.xml" }, wantErr: ErrInvalidStartURL},
		{name: "negative rate", modify: func(c *Config) { c.Rate = -1 }, wantErr: ErrInvalidRate},
		{name: "nan rate", modify: func(c *Config) { c.Rate = math.NaN() }, wantErr: ErrInvalidRate},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "zero workers", modify: func(c *Config) { c.Workers = 0 }, wantErr: ErrInvalidWorkers},
		{name: "negative max products", modify: func(c *Config) { c.MaxProducts = -5 }, wantErr: ErrInvalidMaxProducts},
		{name: "upsert without dsn", modify: func(c *Config) { c.Upsert = true }, wantErr: ErrMissingDatabaseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// TestFileGetSiteConfig tests merging of defaults and site settings.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			Rate:         1,
			Headers:      map[string]string{"Accept-Language": "en-IN"},
			SitemapDepth: 2,
		},
		Sites: map[string]SiteConfig{
			"shop.example.com": {
				Rate:          0.5,
				Headers:       map[string]string{"Cookie": "region=in"},
				SizeSelectors: []string{".size-swatch"},
				MaxProducts:   20,
				SitemapDepth:  5,
			},
			"plain.example.com": {MaxProducts: 7},
		},
	}

	t.Run("site overrides defaults", func(t *testing.T) {
		t.Parallel()

		sc := cf.GetSiteConfig("shop.example.com")
		assert.InDelta(t, 0.5, sc.Rate, 0)
		assert.Equal(t, 20, sc.MaxProducts)
		assert.Equal(t, 5, sc.SitemapDepth)
		assert.Equal(t, map[string]string{"Accept-Language": "en-IN", "Cookie": "region=in"}, sc.Headers)
		assert.Equal(t, []string{".size-swatch"}, sc.SizeSelectors)
	})

	t.Run("unset sitemap depth keeps the default", func(t *testing.T) {
		t.Parallel()

		sc := cf.GetSiteConfig("plain.example.com")
		assert.Equal(t, 7, sc.MaxProducts)
		assert.Equal(t, 2, sc.SitemapDepth)
	})

	t.Run("www and case are ignored", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, 20, cf.GetSiteConfig("WWW.Shop.Example.com").MaxProducts)
	})

	t.Run("unknown host gets defaults", func(t *testing.T) {
		t.Parallel()

		sc := cf.GetSiteConfig("other.example.com")
		assert.InDelta(t, 1.0, sc.Rate, 0)
		assert.Zero(t, sc.MaxProducts)
		assert.Len(t, sc.Headers, 1)
	})

	t.Run("defaults are not mutated", func(t *testing.T) {
		t.Parallel()

		_ = cf.GetSiteConfig("shop.example.com")
		assert.NotContains(t, cf.Defaults.Headers, "Cookie")
	})
}

// TestConfigSite tests site lookup from the start URL.
func TestConfigSite(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.StartURL = "https://shop.example.com/sitemap.xml"
	sc := cfg.Site()
	assert.Zero(t, sc.Rate)
	assert.Nil(t, sc.Headers)

	cfg.SiteConfigs = &File{Sites: map[string]SiteConfig{"shop.example.com": {MaxProducts: 3}}}
	assert.Equal(t, 3, cfg.Site().MaxProducts)
}

// TestLoadConfigFile tests YAML parsing.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("full file", func(t *testing.T) {
		t.Parallel()

		path := write(t, `
defaults:
  rate: 2
  headers:
    Accept-Language: en-IN
sites:
  shop.example.com:
    size_selectors:
      - ".size-swatch button"
    max_products: 50
    sitemap_depth: 6
`)
		cf, err := LoadConfigFile(path)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, cf.Defaults.Rate, 0)

		sc := cf.Sites["shop.example.com"]
		assert.Equal(t, 50, sc.MaxProducts)
		assert.Equal(t, 6, sc.SitemapDepth)
		assert.Equal(t, []string{".size-swatch button"}, sc.SizeSelectors)
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()

		cf, err := LoadConfigFile(write(t, ""))
		require.NoError(t, err)
		assert.NotNil(t, cf.Sites)
	})

	t.Run("unknown key", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(write(t, "defaults:\n  rtae: 2\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rtae")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})
}

// TestFindConfigFile tests explicit path handling.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sites: {}\n"), 0o600))

	assert.Equal(t, path, FindConfigFile(path))
	assert.Empty(t, FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")),
		"a missing explicit file is not found")
}

// TestXDGConfigDir tests the XDG path suffix.
func TestXDGConfigDir(t *testing.T) {
	t.Parallel()

	assert.Equal(t, AppName, filepath.Base(XDGConfigDir()))
}

// TestLoadDotEnv tests .env loading. It mutates the process environment and
// therefore does not run in parallel.
func TestLoadDotEnv(t *testing.T) {
	t.Run("default file", func(t *testing.T) {
		t.Setenv(EnvPath, "")
		t.Setenv(EnvDatabaseURL, "")
		os.Unsetenv(EnvDatabaseURL) //nolint:errcheck // restored by t.Setenv

		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte(EnvDatabaseURL+"=sqlite://from-dotenv.db\n"), 0o600))
		require.NoError(t, LoadDotEnv(path))
		assert.Equal(t, "sqlite://from-dotenv.db", DatabaseURLFromEnv())
	})

	t.Run("process environment wins", func(t *testing.T) {
		t.Setenv(EnvPath, "")
		t.Setenv(EnvDatabaseURL, "postgres://env/catalog")

		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte(EnvDatabaseURL+"=sqlite://from-dotenv.db\n"), 0o600))
		require.NoError(t, LoadDotEnv(path))
		assert.Equal(t, "postgres://env/catalog", DatabaseURLFromEnv())
	})

	t.Run("missing default file is ignored", func(t *testing.T) {
		t.Setenv(EnvPath, "")
		assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("missing ENV_PATH file fails", func(t *testing.T) {
		t.Setenv(EnvPath, filepath.Join(t.TempDir(), "custom.env"))
		assert.Error(t, LoadDotEnv(".env"))
	})
}

package config

import (
	"maps"
	"strings"
)

// SiteConfig holds the crawl settings for one storefront.
type SiteConfig struct {
	// Rate overrides the requests-per-second budget unless --rate is given.
	Rate float64 `yaml:"rate,omitempty"`

	// Headers are custom HTTP headers sent with every page request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// SizeSelectors are CSS selectors whose elements list the available
	// sizes. When empty, size options are detected heuristically.
	SizeSelectors []string `yaml:"size_selectors,omitempty"`

	// MaxProducts overrides the product limit unless --max-products is given.
	MaxProducts int `yaml:"max_products,omitempty"`

	// SitemapDepth is the deepest nested sitemap level followed.
	// Zero keeps the discoverer's default.
	SitemapDepth int `yaml:"sitemap_depth,omitempty"`
}

// File represents the structure of the .catalogcrawler.yaml file.
type File struct {
	// Sites maps hosts (e.g. "shop.example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
// Host matching is case-insensitive and ignores a leading "www.".
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	siteConfig, ok := cf.lookup(host)
	if !ok {
		return result
	}

	if siteConfig.Rate != 0 {
		result.Rate = siteConfig.Rate
	}
	if siteConfig.MaxProducts != 0 {
		result.MaxProducts = siteConfig.MaxProducts
	}
	if siteConfig.SitemapDepth != 0 {
		result.SitemapDepth = siteConfig.SitemapDepth
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(siteConfig.Headers))
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.SizeSelectors) > 0 {
		result.SizeSelectors = siteConfig.SizeSelectors
	}

	return result
}

func (cf *File) lookup(host string) (SiteConfig, bool) {
	host = strings.ToLower(host)
	for _, candidate := range []string{host, strings.TrimPrefix(host, "www.")} {
		for key, sc := range cf.Sites {
			if strings.ToLower(key) == candidate {
				return sc, true
			}
		}
	}
	return SiteConfig{}, false
}

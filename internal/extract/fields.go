package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// page bundles the parsed document with the located JSON-LD product.
type page struct {
	url     *url.URL
	doc     *goquery.Document
	product ldObject
}

// metaContent returns the content of the first meta tag whose property,
// name or itemprop attribute equals one of keys.
func (p *page) metaContent(keys ...string) string {
	for _, key := range keys {
		for _, attr := range []string{"property", "name", "itemprop"} {
			sel := p.doc.Find(`meta[` + attr + `="` + key + `"]`).First()
			if content, ok := sel.Attr("content"); ok && strings.TrimSpace(content) != "" {
				return strings.TrimSpace(content)
			}
		}
	}
	return ""
}

// title resolves the product title.
func (p *page) title() string {
	if name := p.product.str("name"); name != "" {
		return cleanText(name)
	}
	if h1 := cleanText(p.doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return cleanText(p.metaContent("og:title"))
}

// priceAndCurrency resolves the page-level price and currency. Price and
// currency fall back independently, so an offer with only a price still
// picks up a currency from meta tags.
func (p *page) priceAndCurrency() (float64, string) {
	var (
		price    float64
		hasPrice bool
		currency string
	)

	if offer := p.product.object("offers"); offer != nil {
		price, hasPrice = parsePrice(priceValue(offer["price"]))
		if !hasPrice {
			price, hasPrice = parsePrice(priceValue(offer["lowPrice"]))
		}
		currency = normalizeCurrency(offer.str("priceCurrency"))
	}

	if !hasPrice {
		price, hasPrice = parsePrice(p.metaContent("product:price:amount", "og:price:amount", "price"))
	}
	if currency == "" {
		currency = normalizeCurrency(p.metaContent("product:price:currency", "og:price:currency", "priceCurrency"))
	}

	if !hasPrice {
		price = 0
	}
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return price, currency
}

// images collects structured-data images first, then <img> sources in
// document order. Only absolute http(s) URLs are kept. The result is
// deduplicated and capped at model.MaxImages.
func (p *page) images() []model.ProductImage {
	seen := make(map[string]bool)
	out := make([]model.ProductImage, 0, model.MaxImages)

	add := func(raw, alt string) {
		if len(out) >= model.MaxImages || !isAbsoluteHTTP(raw) || seen[raw] {
			return
		}
		seen[raw] = true
		out = append(out, model.NewProductImage(raw, cleanText(alt)))
	}

	if p.product != nil {
		for _, ref := range imageRefs(p.product["image"]) {
			add(p.resolve(ref), "")
		}
	}

	p.doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, _ := s.Attr("alt")
		for _, attr := range []string{"src", "data-src"} {
			if v, ok := s.Attr(attr); ok {
				add(strings.TrimSpace(v), alt)
			}
		}
	})

	return out
}

// resolve makes a structured-data reference absolute against the page URL.
func (p *page) resolve(ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	if p.url == nil {
		return u.String()
	}
	return p.url.ResolveReference(u).String()
}

// isAbsoluteHTTP reports whether raw is an absolute http or https URL with a host.
func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// description resolves the short description, capped at MaxDescriptionWords.
func (p *page) description() string {
	if d := cleanText(p.product.str("description")); d != "" {
		return truncateWords(d, model.MaxDescriptionWords)
	}
	if d := cleanText(p.metaContent("description", "og:description")); d != "" {
		return truncateWords(d, model.MaxDescriptionWords)
	}

	var parts []string
	p.doc.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if t := cleanText(s.Text()); t != "" {
			parts = append(parts, t)
		}
		return i < 2
	})
	return truncateWords(strings.Join(parts, " "), model.MaxDescriptionWords)
}

// categories unions breadcrumb link texts with structured-data categories.
func (p *page) categories() []string {
	seen := make(map[string]bool)
	out := make([]string, 0, model.MaxCategories)

	add := func(raw string) {
		c := cleanText(raw)
		if c == "" || strings.EqualFold(c, "home") || seen[c] || len(out) >= model.MaxCategories {
			return
		}
		seen[c] = true
		out = append(out, c)
	}

	p.doc.Find("nav, ol, ul, div").Each(func(_ int, s *goquery.Selection) {
		if !isBreadcrumb(s.Get(0)) {
			return
		}
		s.Find("a").Each(func(_ int, a *goquery.Selection) {
			add(a.Text())
		})
	})

	for _, c := range p.product.stringList("category") {
		add(c)
	}
	return out
}

// isBreadcrumb reports whether n's class, id, aria-label or itemtype
// mentions a breadcrumb.
func isBreadcrumb(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "class", "id", "aria-label", "itemtype":
			if strings.Contains(strings.ToLower(attr.Val), "breadcrumb") {
				return true
			}
		}
	}
	return false
}

// rating returns aggregateRating values. Either may be nil.
func (p *page) rating() (*float64, *int) {
	agg := p.product.object("aggregateRating")
	if agg == nil {
		return nil, nil
	}

	var (
		value *float64
		count *int
	)
	if v, ok := number(agg["ratingValue"]); ok {
		value = &v
	}
	for _, key := range []string{"reviewCount", "ratingCount"} {
		if v, ok := number(agg[key]); ok {
			n := int(v)
			count = &n
			break
		}
	}
	return value, count
}

// brand returns the structured brand name.
func (p *page) brand() *string {
	if b := cleanText(p.product.str("brand")); b != "" {
		return &b
	}
	return nil
}

// sourceProductID returns the site SKU or product identifier.
func (p *page) sourceProductID() *string {
	for _, key := range []string{"sku", "productID"} {
		if id := p.product.str(key); id != "" {
			return &id
		}
	}
	return nil
}

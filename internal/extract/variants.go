package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// sizeToken matches short size labels such as "S", "XL" or "42".
var sizeToken = regexp.MustCompile(`^[A-Za-z0-9]{1,3}$`)

// SizeStrategy returns the candidate size tokens of a product page in
// page order. Duplicates are removed by the caller.
type SizeStrategy func(doc *goquery.Document) []string

// DefaultSizeStrategy looks for elements whose class, id, name or data-*
// attributes mention "size" and collects short alphanumeric labels from
// them and their option, button, label, list item and input children.
// It does not detect out-of-stock sizes.
func DefaultSizeStrategy(doc *goquery.Document) []string {
	var tokens []string
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if !mentionsSize(s.Get(0)) {
			return
		}
		tokens = append(tokens, sizeLabels(s)...)
	})
	return tokens
}

// SelectorSizeStrategy builds a strategy that reads labels only from the
// elements matched by the given CSS selectors.
func SelectorSizeStrategy(selectors ...string) SizeStrategy {
	return func(doc *goquery.Document) []string {
		var tokens []string
		for _, sel := range selectors {
			doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
				tokens = append(tokens, sizeLabels(s)...)
			})
		}
		return tokens
	}
}

// mentionsSize checks the attribute names and values used for size pickers.
func mentionsSize(n *html.Node) bool {
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		switch {
		case key == "class", key == "id", key == "name":
			if strings.Contains(strings.ToLower(attr.Val), "size") {
				return true
			}
		case strings.HasPrefix(key, "data-"):
			if strings.Contains(key, "size") || strings.Contains(strings.ToLower(attr.Val), "size") {
				return true
			}
		}
	}
	return false
}

// sizeLabels returns the size tokens carried by s or its picker children.
func sizeLabels(s *goquery.Selection) []string {
	var out []string
	collect := func(el *goquery.Selection) {
		if el.Children().Length() == 0 {
			if t := strings.TrimSpace(el.Text()); sizeToken.MatchString(t) {
				out = append(out, t)
				return
			}
		}
		if goquery.NodeName(el) == "input" || goquery.NodeName(el) == "option" {
			if v, ok := el.Attr("value"); ok && sizeToken.MatchString(strings.TrimSpace(v)) {
				out = append(out, strings.TrimSpace(v))
			}
		}
	}

	collect(s)
	s.Find("option, button, label, li, span, a, input").Each(func(_ int, el *goquery.Selection) {
		collect(el)
	})
	return out
}

// distinct removes repeated tokens, keeping the first occurrence.
func distinct(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

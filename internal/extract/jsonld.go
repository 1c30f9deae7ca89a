package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ldObject is one decoded JSON-LD node.
type ldObject map[string]any

// ldBlocks decodes every application/ld+json script on the page and
// returns the flattened list of objects. Arrays and @graph containers are
// expanded in document order. Blocks that fail to decode are reported
// through skipped and otherwise ignored.
func ldBlocks(doc *goquery.Document, skipped func(error)) []ldObject {
	var objects []ldObject
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !strings.Contains(strings.ToLower(typ), "ld+json") {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			if skipped != nil {
				skipped(err)
			}
			return
		}
		objects = flattenLD(v, objects)
	})
	return objects
}

// flattenLD appends the objects contained in v to out.
func flattenLD(v any, out []ldObject) []ldObject {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			out = flattenLD(item, out)
		}
	case map[string]any:
		out = append(out, ldObject(node))
		if graph, ok := node["@graph"]; ok {
			out = flattenLD(graph, out)
		}
	}
	return out
}

// findProduct returns the first object whose @type is or includes Product.
func findProduct(objects []ldObject) ldObject {
	for _, obj := range objects {
		if obj.hasType("Product") {
			return obj
		}
	}
	return nil
}

// hasType matches @type as a string or an array of strings. Prefixed forms
// such as "schema:Product" or "http://schema.org/Product" also match.
func (o ldObject) hasType(want string) bool {
	matches := func(s string) bool {
		if strings.EqualFold(s, want) {
			return true
		}
		if i := strings.LastIndexAny(s, "/:"); i >= 0 {
			return strings.EqualFold(s[i+1:], want)
		}
		return false
	}
	switch t := o["@type"].(type) {
	case string:
		return matches(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && matches(s) {
				return true
			}
		}
	}
	return false
}

// str returns a string field, or its "name" when the field is an object.
func (o ldObject) str(key string) string {
	switch v := o[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any:
		return ldObject(v).str("name")
	}
	return ""
}

// object returns a nested object. When the field is an array the first
// object element is returned.
func (o ldObject) object(key string) ldObject {
	switch v := o[key].(type) {
	case map[string]any:
		return ldObject(v)
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				return ldObject(m)
			}
		}
	}
	return nil
}

// stringList returns a field that may be a single string or a list of them.
func (o ldObject) stringList(key string) []string {
	var out []string
	switch v := o[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

// imageRefs returns image URLs from a string, an ImageObject, or a list of either.
func imageRefs(v any) []string {
	var out []string
	switch img := v.(type) {
	case string:
		if s := strings.TrimSpace(img); s != "" {
			out = append(out, s)
		}
	case map[string]any:
		obj := ldObject(img)
		if u := obj.str("url"); u != "" {
			out = append(out, u)
		} else if u := obj.str("contentUrl"); u != "" {
			out = append(out, u)
		}
	case []any:
		for _, item := range img {
			out = append(out, imageRefs(item)...)
		}
	}
	return out
}

// number coerces a JSON number or numeric string.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// priceValue renders an offer price for parsePrice.
func priceValue(v any) string {
	switch p := v.(type) {
	case string:
		return p
	case float64:
		return strconv.FormatFloat(p, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(p)
	}
}

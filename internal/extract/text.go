package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// nonPriceChars matches everything a price string may not keep.
var nonPriceChars = regexp.MustCompile(`[^0-9.]`)

// cleanText NFC-normalizes s and collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// truncateWords keeps the first n whitespace-delimited words of s.
func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// parsePrice strips currency symbols and separators, then parses the rest.
// "₹1,299.00" becomes 1299. ok is false when nothing numeric remains.
func parsePrice(s string) (float64, bool) {
	cleaned := nonPriceChars.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// normalizeCurrency upper-cases a currency code.
func normalizeCurrency(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

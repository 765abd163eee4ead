// Package normalize converts the heterogeneous price, availability and
// identifier representations found on supplier storefronts into canonical
// forms. Everything here is pure; parse failures degrade to zero values
// rather than errors.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
)

// DefaultCurrency is used when no source yields a currency code.
const DefaultCurrency = "ZAR"

var (
	priceStripRe = regexp.MustCompile(`[R$ \x{00A0}\s]`)
	priceKeepRe  = regexp.MustCompile(`[^0-9.]`)
)

// ParsePrice parses a price from free text such as "43172", "R 43 172.00",
// "45,078.94", "45078,94" or "R43 172" (non-breaking space). When both a
// comma and a period are present the comma is a thousands separator; a lone
// comma is the decimal separator. Anything unparseable is 0, never an error.
func ParsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	s = priceStripRe.ReplaceAllString(s, "")

	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ","):
		s = strings.Replace(s, ",", ".", 1)
	}

	s = priceKeepRe.ReplaceAllString(s, "")

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0
	}
	return n
}

// ParsePriceAny parses a price from a decoded JSON value, which may be a
// number, a string, or absent (nil). Used for structured-data blocks where
// "price" shows up in either form.
func ParsePriceAny(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return 0
		}
		return x
	case int:
		return float64(x)
	case string:
		return ParsePrice(x)
	default:
		return 0
	}
}

// ToMoneyString formats a price in major units with exactly two decimals,
// e.g. "43172.00". Non-finite or negative-zero junk becomes "0.00".
func ToMoneyString(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", n)
}

// StockFromAvailability maps free-text availability to a coarse quantity
// tier. This is heuristic bucketing, not an inventory count.
func StockFromAvailability(avail string) int {
	a := strings.ToLower(avail)
	switch {
	case strings.Contains(a, "out"):
		return 0
	case strings.Contains(a, "pre"):
		return 0
	case strings.Contains(a, "low"):
		return 5
	case strings.Contains(a, "in"):
		return 100
	default:
		return 0
	}
}

// Brand-specific model patterns are tried before the generic one so that a
// title like "Epson EH-TW7000" resolves to the marketing model token.
var modelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(EHLS\d{4,5}[A-Z]?)\b`),
	regexp.MustCompile(`\b(LS\d{4,5}[A-Z]?)\b`),
	regexp.MustCompile(`\b(EHTW\d{4}[A-Z]?)\b`),
	regexp.MustCompile(`\b(TW\d{4}[A-Z]?)\b`),
	regexp.MustCompile(`\b([A-Z]{2,6}\d{4,5}[A-Z]?)\b`),
}

// ModelFrom extracts a best-guess model/SKU token from a title or SKU string,
// e.g. "Epson EH-TW7000 Projector" -> "TW7000". Empty when nothing matches.
func ModelFrom(titleOrSKU string) string {
	u := strings.ToUpper(titleOrSKU)
	for _, re := range modelPatterns {
		if m := re.FindStringSubmatch(u); m != nil {
			return m[1]
		}
	}
	return ""
}

var nonAlnumRe = regexp.MustCompile(`[^A-Z0-9]`)

// SKU normalizes a SKU for matching: uppercase, alphanumerics only.
func SKU(sku string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToUpper(sku), "")
}

var (
	titleJunkRe  = regexp.MustCompile(`[^a-z0-9\s]`)
	titleSpaceRe = regexp.MustCompile(`\s+`)
)

// Title normalizes a product title for fuzzy matching.
func Title(s string) string {
	s = titleJunkRe.ReplaceAllString(strings.ToLower(s), "")
	return strings.TrimSpace(titleSpaceRe.ReplaceAllString(s, " "))
}

var handleRe = regexp.MustCompile(`(?i)/products/([^/?#]+)`)

// CanonicalHandle extracts the product handle from a catalog URL, or ""
// when the URL does not point at a product.
func CanonicalHandle(rawURL string) string {
	if m := handleRe.FindStringSubmatch(rawURL); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}

// CurrencyOrDefault validates a three-letter currency code against ISO 4217
// and falls back to fallback (or DefaultCurrency) for anything else.
func CurrencyOrDefault(code, fallback string) string {
	if fallback == "" {
		fallback = DefaultCurrency
	}
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return fallback
	}
	return unit.String()
}

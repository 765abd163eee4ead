package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/solutiontech/catalog-sync/internal/browser"
	"github.com/solutiontech/catalog-sync/internal/model"
	"github.com/solutiontech/catalog-sync/internal/normalize"
)

// structuredDataPass reads the page's application/ld+json blocks and, when a
// Product entity is found, uses it as the base of the record. Structured
// data is the highest-precedence source; themes change, schema.org markup
// mostly does not.
type structuredDataPass struct{}

func (structuredDataPass) name() string { return "structured_data" }

func (structuredDataPass) fill(_ context.Context, page browser.Page, d *draft) error {
	doc, err := page.Document()
	if err != nil {
		return err
	}

	var sp *model.StructuredProduct
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if p := parseStructuredProduct(sel.Text()); p != nil {
			sp = p
			return false
		}
		return true
	})
	if sp == nil {
		return eris.New("extract: no product entity in structured data")
	}

	if d.title == "" {
		d.title = sp.Name
	}
	if d.sku == "" {
		d.sku = sp.SKU
	}
	if d.price <= 0 {
		d.price = sp.Price
	}
	if d.currency == "" {
		d.currency = sp.Currency
	}
	if d.availabilityText == "" && sp.Availability != model.AvailabilityUnknown {
		d.availabilityText = string(sp.Availability)
	}
	if len(d.images) == 0 {
		d.images = sp.Images
	}
	return nil
}

// parseStructuredProduct decodes one JSON-LD block and searches it for a
// Product entity, including @graph containers and top-level arrays.
func parseStructuredProduct(raw string) *model.StructuredProduct {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil
	}
	node := findProductNode(decoded)
	if node == nil {
		return nil
	}

	sp := &model.StructuredProduct{
		Name:         stringField(node, "name"),
		SKU:          stringField(node, "sku"),
		Availability: model.AvailabilityUnknown,
		Images:       imageList(node["image"]),
	}
	if sp.SKU == "" {
		sp.SKU = stringField(node, "mpn")
	}

	if offer := firstOffer(node["offers"]); offer != nil {
		sp.Price = normalize.ParsePriceAny(offer["price"])
		sp.Currency = stringField(offer, "priceCurrency")
		sp.Availability = schemaAvailability(stringField(offer, "availability"))
	}
	return sp
}

// findProductNode walks a decoded JSON-LD value looking for an object whose
// @type is (or includes) Product.
func findProductNode(v any) map[string]any {
	switch node := v.(type) {
	case map[string]any:
		if isProductType(node["@type"]) {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return findProductNode(graph)
		}
	case []any:
		for _, item := range node {
			if found := findProductNode(item); found != nil {
				return found
			}
		}
	}
	return nil
}

func isProductType(t any) bool {
	switch typ := t.(type) {
	case string:
		return strings.EqualFold(typ, "Product")
	case []any:
		for _, item := range typ {
			if s, ok := item.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

// firstOffer returns the first offer object, whether offers is a single
// object, an array, or an AggregateOffer.
func firstOffer(v any) map[string]any {
	switch offers := v.(type) {
	case map[string]any:
		return offers
	case []any:
		for _, item := range offers {
			if m, ok := item.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// imageList normalizes the image field: a URL string, an array of URL
// strings, or ImageObject entries.
func imageList(v any) []string {
	switch img := v.(type) {
	case string:
		if img != "" {
			return []string{img}
		}
	case []any:
		var out []string
		for _, item := range img {
			switch x := item.(type) {
			case string:
				if x != "" {
					out = append(out, x)
				}
			case map[string]any:
				if u := stringField(x, "url"); u != "" {
					out = append(out, u)
				}
			}
		}
		return out
	case map[string]any:
		if u := stringField(img, "url"); u != "" {
			return []string{u}
		}
	}
	return nil
}

// schemaAvailability maps schema.org availability URIs to the coarse enum.
func schemaAvailability(s string) model.Availability {
	s = strings.ToLower(s)
	switch {
	case s == "":
		return model.AvailabilityUnknown
	case strings.Contains(s, "outofstock") || strings.Contains(s, "soldout") || strings.Contains(s, "discontinued"):
		return model.AvailabilityOutOfStock
	case strings.Contains(s, "instock") || strings.Contains(s, "instoreonly") || strings.Contains(s, "onlineonly") || strings.Contains(s, "limitedavailability"):
		return model.AvailabilityInStock
	default:
		return model.AvailabilityUnknown
	}
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

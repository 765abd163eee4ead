package extract

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/solutiontech/catalog-sync/internal/browser"
	"github.com/solutiontech/catalog-sync/internal/model"
	"github.com/solutiontech/catalog-sync/internal/normalize"
)

// Selector chains cover the common storefront themes; each is tried in order
// and the first non-empty hit wins.
var (
	titleSelectors = []string{
		"h1, .product__title, h1.product-title",
		`[itemprop="name"]`,
	}
	vendorSelectors = []string{
		".product-vendor, a.vendor, .product__vendor",
		`[itemprop="brand"]`,
	}
	skuSelectors = []string{
		`[itemprop="sku"], .product-sku, .sku, .product__sku`,
	}
	availabilitySelectors = []string{
		`[data-availability], .product-stock, .availability`,
	}
	priceTextSelectors = []string{
		`[data-product-price], .price .money, .product__price, .price`,
	}
	imageSelectors = []string{
		`.product__media img, img[src*="/cdn/"], .product-gallery img`,
	}
	descriptionSelectors = []string{
		`.product__description, [itemprop="description"], .rte`,
	}
)

// domPass scrapes theme markup for any field the structured-data pass left
// empty.
type domPass struct{}

func (domPass) name() string { return "dom" }

func (domPass) fill(_ context.Context, page browser.Page, d *draft) error {
	doc, err := page.Document()
	if err != nil {
		return err
	}

	if d.title == "" {
		d.title = firstText(doc, titleSelectors)
	}
	if d.vendor == "" {
		d.vendor = firstText(doc, vendorSelectors)
	}
	if d.sku == "" {
		d.sku = firstText(doc, skuSelectors)
	}
	if d.availabilityText == "" {
		d.availabilityText = domAvailability(doc)
	}
	if d.price <= 0 {
		d.price = normalize.ParsePrice(domPriceText(doc))
	}
	if len(d.images) == 0 {
		if img := domImage(doc, d.pageURL); img != "" {
			d.images = []string{img}
		}
	}
	if d.descriptionHTML == "" {
		d.descriptionHTML = firstHTML(doc, descriptionSelectors)
	}
	return nil
}

// domPriceText prefers machine-readable itemprop price attributes over
// visible price text.
func domPriceText(doc *goquery.Document) string {
	if v, ok := doc.Find(`[itemprop="price"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	if v, ok := doc.Find(`meta[itemprop="price"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return firstText(doc, priceTextSelectors)
}

// domAvailability reads availability text, falling back to the schema.org
// URI carried by link[itemprop=availability].
func domAvailability(doc *goquery.Document) string {
	if t := firstText(doc, availabilitySelectors); t != "" {
		return t
	}
	if href, ok := doc.Find(`link[itemprop="availability"]`).First().Attr("href"); ok {
		if av := schemaAvailability(href); av != model.AvailabilityUnknown {
			return string(av)
		}
	}
	return ""
}

// domImage returns the first product image, resolved to an absolute URL.
func domImage(doc *goquery.Document, pageURL string) string {
	for _, sel := range imageSelectors {
		src, ok := doc.Find(sel).First().Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			continue
		}
		src = strings.TrimSpace(src)
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			return src
		}
		base, err := url.Parse(pageURL)
		if err != nil {
			return src
		}
		ref, err := url.Parse(src)
		if err != nil {
			return src
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func firstHTML(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if h, err := node.Html(); err == nil && strings.TrimSpace(h) != "" {
			return strings.TrimSpace(h)
		}
	}
	return ""
}

// Package extract resolves canonical product records from rendered catalog
// pages, and discovers product links and pagination on listing pages.
//
// A product page can describe itself three ways: an embedded structured-data
// block, theme-dependent DOM markup, and an optional per-product JSON side
// channel. The extractor runs a fixed sequence of passes over one draft
// record, each filling only the fields still missing, so the precedence
// between sources stays in one place.
package extract

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/solutiontech/catalog-sync/internal/browser"
	"github.com/solutiontech/catalog-sync/internal/model"
	"github.com/solutiontech/catalog-sync/internal/normalize"
)

// Extractor resolves one CanonicalProduct per product page.
type Extractor struct {
	// DefaultCurrency is used when no source yields a currency code.
	DefaultCurrency string
}

// draft is the record being filled by the passes. Fields keep their raw
// texture until Canonical() runs.
type draft struct {
	pageURL string
	origin  string
	handle  string

	title            string
	vendor           string
	sku              string
	price            float64
	currency         string
	availabilityText string
	images           []string
	descriptionHTML  string

	// sideChannel holds the fetched side-channel payload when the pass ran,
	// for the availability reconciliation at the end.
	sideChannel *model.SideChannelProduct
}

// pass fills missing fields of the draft from one source. Pass failures are
// logged and skipped; they never abort extraction.
type pass interface {
	name() string
	fill(ctx context.Context, page browser.Page, d *draft) error
}

// Extract produces a best-effort canonical record for the product page
// currently loaded in page. It only errors when the page's DOM cannot be
// read at all; missing fields degrade to zero values, and delivery
// eligibility is the caller's concern.
func (e *Extractor) Extract(ctx context.Context, page browser.Page) (model.CanonicalProduct, error) {
	pageURL := page.URL()

	d := &draft{
		pageURL: pageURL,
		handle:  normalize.CanonicalHandle(pageURL),
	}
	if u, err := url.Parse(pageURL); err == nil {
		d.origin = u.Scheme + "://" + u.Host
	}

	// Probe the DOM once up front so an unreachable page surfaces as an
	// extraction error instead of five silent pass failures.
	if _, err := page.Document(); err != nil {
		return model.CanonicalProduct{}, eris.Wrapf(err, "extract: read page %s", pageURL)
	}

	passes := []pass{
		structuredDataPass{},
		domPass{},
		sideChannelPass{},
		titleModelPass{},
	}
	for _, p := range passes {
		if err := p.fill(ctx, page, d); err != nil {
			zap.L().Debug("extract: pass failed, continuing",
				zap.String("pass", p.name()),
				zap.String("url", pageURL),
				zap.Error(err),
			)
		}
	}

	return e.canonical(d), nil
}

// canonical reconciles the filled draft into the delivery-ready record.
func (e *Extractor) canonical(d *draft) model.CanonicalProduct {
	availability := reconcileAvailability(d)

	availText := d.availabilityText
	if availText == "" {
		availText = string(availability)
	}

	return model.CanonicalProduct{
		Op:              "upsert",
		Handle:          d.handle,
		Title:           d.title,
		Vendor:          d.vendor,
		SKU:             d.sku,
		Price:           normalize.ToMoneyString(d.price),
		Currency:        normalize.CurrencyOrDefault(d.currency, e.DefaultCurrency),
		Quantity:        normalize.StockFromAvailability(availText),
		Availability:    availability,
		Images:          d.images,
		SourceURL:       canonicalURL(d),
		DescriptionHTML: d.descriptionHTML,
	}
}

// reconcileAvailability applies the final availability rules: side-channel
// variants override an absent or trivially "in stock" DOM signal; with no
// signal at all the product counts as in stock.
func reconcileAvailability(d *draft) model.Availability {
	fromText := availabilityFromText(d.availabilityText)

	if d.sideChannel != nil && (d.availabilityText == "" || fromText == model.AvailabilityInStock) {
		for _, v := range d.sideChannel.Variants {
			if v.Available {
				return model.AvailabilityInStock
			}
		}
		if len(d.sideChannel.Variants) > 0 {
			return model.AvailabilityOutOfStock
		}
	}

	if d.availabilityText == "" {
		return model.AvailabilityInStock
	}
	return fromText
}

func availabilityFromText(text string) model.Availability {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return model.AvailabilityUnknown
	case strings.Contains(t, "out") || strings.Contains(t, "sold") || strings.Contains(t, "unavailable"):
		return model.AvailabilityOutOfStock
	case strings.Contains(t, "pre"):
		return model.AvailabilityOutOfStock
	case strings.Contains(t, "in") || strings.Contains(t, "low") || strings.Contains(t, "available"):
		return model.AvailabilityInStock
	default:
		return model.AvailabilityUnknown
	}
}

// canonicalURL is the product URL with query and fragment stripped, rebuilt
// from the handle when one parses.
func canonicalURL(d *draft) string {
	if d.origin != "" && d.handle != "" {
		return d.origin + "/products/" + d.handle
	}
	u, err := url.Parse(d.pageURL)
	if err != nil {
		return d.pageURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// titleModelPass derives the SKU from the title as a last resort.
type titleModelPass struct{}

func (titleModelPass) name() string { return "title_model" }

func (titleModelPass) fill(_ context.Context, _ browser.Page, d *draft) error {
	if d.sku == "" {
		d.sku = normalize.ModelFrom(d.title)
	}
	return nil
}

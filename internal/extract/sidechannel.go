package extract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/solutiontech/catalog-sync/internal/browser"
	"github.com/solutiontech/catalog-sync/internal/model"
)

// sideChannelPass fetches the per-product JSON endpoint
// (<origin>/products/<handle>.js) when the page sources left the SKU empty
// or the price unset. The endpoint is same-origin only, so the fetch goes
// through the page to ride the session's credentials. Side-channel prices
// are in minor units.
type sideChannelPass struct{}

func (sideChannelPass) name() string { return "side_channel" }

func (sideChannelPass) fill(ctx context.Context, page browser.Page, d *draft) error {
	if d.sku != "" && d.price > 0 {
		return nil
	}
	if d.origin == "" || d.handle == "" {
		return eris.New("extract: no handle for side-channel lookup")
	}

	endpoint := d.origin + "/products/" + d.handle + ".js"
	var payload model.SideChannelProduct
	if err := page.FetchJSON(ctx, endpoint, &payload); err != nil {
		return err
	}
	d.sideChannel = &payload

	if v := pickVariant(payload.Variants); v != nil {
		if d.sku == "" && v.SKU != "" {
			d.sku = strings.TrimSpace(v.SKU)
		}
		if d.price <= 0 && v.Price > 0 {
			d.price = v.Price / 100
		}
	}
	if len(d.images) == 0 && len(payload.Images) > 0 {
		d.images = payload.Images
	}
	if d.title == "" {
		d.title = strings.TrimSpace(payload.Title)
	}
	if d.vendor == "" {
		d.vendor = strings.TrimSpace(payload.Vendor)
	}
	return nil
}

// pickVariant prefers the first available variant, else the first variant.
func pickVariant(variants []model.SideChannelVariant) *model.SideChannelVariant {
	for i := range variants {
		if variants[i].Available {
			return &variants[i]
		}
	}
	if len(variants) > 0 {
		return &variants[0]
	}
	return nil
}

package model

import (
	"strconv"
)

// Availability is the coarse stock state of a product.
type Availability string

const (
	AvailabilityInStock    Availability = "InStock"
	AvailabilityOutOfStock Availability = "OutOfStock"
	AvailabilityUnknown    Availability = "Unknown"
)

// SideChannelProduct is the per-product JSON endpoint payload
// (e.g. Shopify's /products/<handle>.js).
type SideChannelProduct struct {
	Title    string               `json:"title"`
	Vendor   string               `json:"vendor"`
	Variants []SideChannelVariant `json:"variants"`
	Images   []string             `json:"images"`
}

// SideChannelVariant is one purchasable variant from the side-channel JSON.
// Price is in minor currency units (cents).
type SideChannelVariant struct {
	SKU       string  `json:"sku"`
	Price     float64 `json:"price"`
	Available bool    `json:"available"`
}

// StructuredProduct is the product entity parsed from an embedded
// structured-data block (JSON-LD).
type StructuredProduct struct {
	Name         string
	SKU          string
	Price        float64
	Currency     string
	Availability Availability
	Images       []string
}

// CanonicalProduct is the reconciled, delivery-ready record.
type CanonicalProduct struct {
	Op              string       `json:"op"`
	Handle          string       `json:"handle"`
	Title           string       `json:"title"`
	Vendor          string       `json:"vendor"`
	SKU             string       `json:"sku"`
	Price           string       `json:"price"` // major units, two decimals
	Currency        string       `json:"currency"`
	Quantity        int          `json:"quantity"`
	Availability    Availability `json:"availability"`
	Images          []string     `json:"images"`
	SourceURL       string       `json:"source_url"`
	DescriptionHTML string       `json:"description_html,omitempty"`
}

// Eligible reports whether the record may be delivered downstream:
// a non-empty SKU and a positive price.
func (p CanonicalProduct) Eligible() bool {
	return p.SKU != "" && p.PriceValue() > 0
}

// PriceValue returns the numeric price. The Price field is always written by
// normalize.ToMoneyString, so parse failures read as zero.
func (p CanonicalProduct) PriceValue() float64 {
	v, err := strconv.ParseFloat(p.Price, 64)
	if err != nil {
		return 0
	}
	return v
}

// DedupKey is the run-scoped identity of the product: the SKU when present,
// else the handle parsed from its canonical URL.
func (p CanonicalProduct) DedupKey() string {
	if p.SKU != "" {
		return p.SKU
	}
	return p.Handle
}

// DeliveryBatch is the envelope POSTed to the downstream webhook.
type DeliveryBatch struct {
	Source       string             `json:"source"`
	BatchID      string             `json:"batchId"`
	Vendor       string             `json:"vendor"`
	Index        int                `json:"index,omitempty"`
	TotalBatches int                `json:"totalBatches,omitempty"`
	Count        int                `json:"count,omitempty"`
	Items        []CanonicalProduct `json:"items"`
}

// Report holds the run-level counters surfaced at the end of every run.
type Report struct {
	RunID          string `json:"run_id"`
	PagesVisited   int    `json:"pages_visited"`
	ItemsScraped   int    `json:"items_scraped"`
	ItemsDelivered int    `json:"items_delivered"`
	ItemsSkipped   int    `json:"items_skipped"`
	ItemFailures   int    `json:"item_failures"`
	DryRun         bool   `json:"dry_run"`
}

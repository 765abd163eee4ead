package deliver

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/solutiontech/catalog-sync/internal/model"
)

// NewRunID returns the identifier shared by all batches of one run.
func NewRunID() string {
	return uuid.NewString()
}

// Envelope builds the per-batch wire shape. The vendor field carries the
// first item's vendor, falling back to defaultVendor, matching what the
// downstream upsert flow keys on.
func Envelope(source, batchID, defaultVendor string, items []model.CanonicalProduct) model.DeliveryBatch {
	vendor := defaultVendor
	for _, item := range items {
		if item.Vendor != "" {
			vendor = item.Vendor
			break
		}
	}
	return model.DeliveryBatch{
		Source:  source,
		BatchID: batchID,
		Vendor:  vendor,
		Count:   len(items),
		Items:   items,
	}
}

// Chunk splits items into envelopes of at most size entries, stamping each
// with its index and the total so the downstream can reassemble the run.
func Chunk(source, runID, defaultVendor string, items []model.CanonicalProduct, size int) []model.DeliveryBatch {
	if size <= 0 {
		size = len(items)
	}
	if len(items) == 0 {
		return nil
	}

	total := (len(items) + size - 1) / size
	batches := make([]model.DeliveryBatch, 0, total)
	for i := 0; i < total; i++ {
		start := i * size
		end := min(start+size, len(items))

		b := Envelope(source, fmt.Sprintf("%s-%d", runID, i+1), defaultVendor, items[start:end])
		b.Index = i + 1
		b.TotalBatches = total
		batches = append(batches, b)
	}
	return batches
}

package cart

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/config"
)

// VendorGroup is the per-vendor slice of a cart. Shipping is charged per
// group; the flat fee is waived once the group's subtotal meets the
// free-shipping threshold.
type VendorGroup struct {
	VendorID      uuid.UUID  `json:"vendor_id"`
	Items         []CartItem `json:"items"`
	SubtotalCents int64      `json:"subtotal_cents"`
	ItemCount     int        `json:"item_count"`
	ShippingCents int64      `json:"shipping_cents"`
}

// Quote is the derived money view of a cart.
type Quote struct {
	SubtotalCents int64         `json:"subtotal_cents"`
	ShippingCents int64         `json:"shipping_cents"`
	TaxCents      int64         `json:"tax_cents"`
	TotalCents    int64         `json:"total_cents"`
	VendorGroups  []VendorGroup `json:"vendor_groups"`
}

// BuildQuote groups the cart by vendor and derives subtotal, shipping, tax
// and total. Tax is floor(subtotal * taxBps / 10000). Groups come back in a
// stable vendor-ID order so repeated quotes of the same cart are identical.
func BuildQuote(items []CartItem, cfg config.CheckoutConfig) Quote {
	grouped := make(map[uuid.UUID]*VendorGroup)
	order := make([]uuid.UUID, 0)
	for _, item := range items {
		group, ok := grouped[item.VendorID]
		if !ok {
			group = &VendorGroup{VendorID: item.VendorID}
			grouped[item.VendorID] = group
			order = append(order, item.VendorID)
		}
		group.Items = append(group.Items, item)
		group.SubtotalCents += item.LineSubtotalCents()
		group.ItemCount += item.Quantity
	}

	sort.Slice(order, func(i, j int) bool {
		return order[i].String() < order[j].String()
	})

	quote := Quote{VendorGroups: make([]VendorGroup, 0, len(order))}
	for _, vendorID := range order {
		group := grouped[vendorID]
		if group.SubtotalCents < cfg.FreeShippingThreshold {
			group.ShippingCents = cfg.ShippingFlatFeeCents
		}
		quote.SubtotalCents += group.SubtotalCents
		quote.ShippingCents += group.ShippingCents
		quote.VendorGroups = append(quote.VendorGroups, *group)
	}

	quote.TaxCents = TaxFor(quote.SubtotalCents, cfg.TaxRateBps)
	quote.TotalCents = quote.SubtotalCents + quote.ShippingCents + quote.TaxCents
	return quote
}

// TaxFor computes floor(subtotal * taxBps / 10000) in minor units.
func TaxFor(subtotalCents, taxBps int64) int64 {
	return decimal.NewFromInt(subtotalCents).
		Mul(decimal.NewFromInt(taxBps)).
		Div(decimal.NewFromInt(10000)).
		Floor().
		IntPart()
}

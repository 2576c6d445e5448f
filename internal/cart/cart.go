package cart

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the redis-resident document holding a buyer's pending items.
// Totals are never stored; every read re-derives them from the live lines.
type Cart struct {
	UserID    uuid.UUID  `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem is one cart line. VariantID is the nil UUID when the product has
// no variants. UnitPriceCents is a display snapshot taken at add time;
// checkout reprices from the live catalog.
type CartItem struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	VariantID      uuid.UUID `json:"variant_id"`
	VendorID       uuid.UUID `json:"vendor_id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
}

// LineSubtotalCents is the snapshot line amount.
func (i CartItem) LineSubtotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

func (c *Cart) findItem(itemID uuid.UUID) *CartItem {
	for idx := range c.Items {
		if c.Items[idx].ID == itemID {
			return &c.Items[idx]
		}
	}
	return nil
}

func (c *Cart) findLine(productID, variantID uuid.UUID) *CartItem {
	for idx := range c.Items {
		if c.Items[idx].ProductID == productID && c.Items[idx].VariantID == variantID {
			return &c.Items[idx]
		}
	}
	return nil
}

func (c *Cart) removeItem(itemID uuid.UUID) bool {
	for idx := range c.Items {
		if c.Items[idx].ID == itemID {
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
			return true
		}
	}
	return false
}

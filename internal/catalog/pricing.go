package catalog

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
)

// LivePrice resolves the current unit price for a product, honoring a
// variant override when the item references one. Cart snapshots are never
// trusted for money; everything reprices through here at checkout time.
func LivePrice(product *models.Product, variantID uuid.UUID) (int64, error) {
	if product == nil {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if variantID == uuid.Nil {
		return product.PriceCents, nil
	}
	for _, variant := range product.Variants {
		if variant.ID != variantID {
			continue
		}
		if variant.PriceCents != nil {
			return *variant.PriceCents, nil
		}
		return product.PriceCents, nil
	}
	return 0, pkgerrors.New(pkgerrors.CodeNotFound,
		fmt.Sprintf("variant %s not found on product %s", variantID, product.ID))
}

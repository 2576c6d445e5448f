package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/internal/cart"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/catalog"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
)

type catalogReader interface {
	FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	AvailableQty(ctx context.Context, productID, variantID uuid.UUID) (int, error)
}

// validateLines re-checks every cart line against the live catalog and
// collects every problem before failing, so the buyer sees the full list in
// one round trip instead of fixing lines one at a time.
func validateLines(ctx context.Context, reader catalogReader, items []cart.CartItem) error {
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := reader.FindProducts(ctx, ids)
	if err != nil {
		return err
	}

	var issues []string
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			issues = append(issues, fmt.Sprintf("%s: product no longer exists", item.Name))
			continue
		}
		if !product.IsActive {
			issues = append(issues, fmt.Sprintf("%s: product is no longer available", item.Name))
			continue
		}

		livePrice, err := catalog.LivePrice(&product, item.VariantID)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: variant no longer exists", item.Name))
			continue
		}
		if livePrice != item.UnitPriceCents {
			issues = append(issues, fmt.Sprintf("%s: price changed from %d to %d",
				item.Name, item.UnitPriceCents, livePrice))
		}

		available, err := reader.AvailableQty(ctx, item.ProductID, item.VariantID)
		if err != nil {
			return err
		}
		if item.Quantity > available {
			issues = append(issues, fmt.Sprintf("%s: requested %d, only %d in stock",
				item.Name, item.Quantity, available))
		}
	}

	if len(issues) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation,
			"cart failed validation: "+strings.Join(issues, "; "))
	}
	return nil
}

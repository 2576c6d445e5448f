package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
)

// Repository exposes the read and stock paths the checkout pipeline needs.
// Catalog CRUD lives in the vendor-facing service; this side only prices
// items and moves inventory.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindProduct loads a product with its variants.
func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		First(&product, "id = ?", id).
		Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", id))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}

// FindProducts loads the given products keyed by ID. Missing IDs are simply
// absent from the map; callers decide whether that is an error.
func (r *Repository) FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]models.Product{}, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("id IN ?", ids).
		Find(&rows).
		Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	out := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// AvailableQty returns the current stock for a product/variant pair. A
// missing inventory row reads as zero stock.
func (r *Repository) AvailableQty(ctx context.Context, productID, variantID uuid.UUID) (int, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		First(&item, "product_id = ? AND variant_id = ?", productID, variantID).
		Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	return item.AvailableQty, nil
}

// DecrementStock atomically takes qty units out of inventory. The guarded
// UPDATE only fires when enough stock remains, so concurrent checkouts
// cannot drive available_qty negative.
func (r *Repository) DecrementStock(ctx context.Context, productID, variantID uuid.UUID, qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ? AND variant_id = ? AND available_qty >= ?", productID, variantID, qty).
		Update("available_qty", gorm.Expr("available_qty - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("insufficient stock for product %s", productID))
	}
	return nil
}

// Restock returns qty units to inventory, typically after a cancellation.
func (r *Repository) Restock(ctx context.Context, productID, variantID uuid.UUID, qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ? AND variant_id = ?", productID, variantID).
		Update("available_qty", gorm.Expr("available_qty + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("no inventory row for product %s", productID))
	}
	return nil
}

// UpsertInventory creates or replaces the stock row for a product/variant.
func (r *Repository) UpsertInventory(ctx context.Context, item *models.InventoryItem) (*models.InventoryItem, error) {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert inventory")
	}
	return item, nil
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
)

// Product is the live catalog row the checkout pipeline validates against.
// Catalog CRUD is owned elsewhere; this subsystem only reads and decrements
// inventory.
type Product struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID     uuid.UUID             `gorm:"column:store_id;type:uuid;not null;index"`
	OwnerUserID uuid.UUID             `gorm:"column:owner_user_id;type:uuid;not null"`
	Name        string                `gorm:"column:name;not null"`
	PriceCents  int64                 `gorm:"column:price_cents;not null"`
	Category    enums.ProductCategory `gorm:"column:category;type:text;not null;default:'other'"`
	IsActive    bool                  `gorm:"column:is_active;not null;default:true"`
	Variants    []ProductVariant      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant optionally overrides the parent product's price.
type ProductVariant struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	PriceCents *int64    `gorm:"column:price_cents"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// InventoryItem tracks available stock per product (and variant, when the
// product has variants). variant_id uses the nil UUID for variant-less rows
// so the composite unique index holds.
type InventoryItem struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_inventory_product_variant"`
	VariantID    uuid.UUID `gorm:"column:variant_id;type:uuid;not null;default:'00000000-0000-0000-0000-000000000000';uniqueIndex:ux_inventory_product_variant"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

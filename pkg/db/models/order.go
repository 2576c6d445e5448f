package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/types"
)

// Order is the per-vendor order produced from a checkout. One checkout can
// fan out into several orders, one per vendor group.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	VendorID         uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null"`
	OrderNumber      string              `gorm:"column:order_number;uniqueIndex:ux_orders_order_number;not null"`
	Status           enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentReference *string             `gorm:"column:payment_reference;index"`
	SubtotalCents    int64               `gorm:"column:subtotal_cents;not null"`
	ShippingCents    int64               `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents         int64               `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents    int64               `gorm:"column:discount_cents;not null;default:0"`
	TotalCents       int64               `gorm:"column:total_cents;not null"`
	Currency         enums.Currency      `gorm:"column:currency;type:text;not null;default:'NGN'"`
	ShippingAddress  *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress   *types.Address      `gorm:"column:billing_address;type:jsonb;serializer:json"`
	Notes            *string             `gorm:"column:notes"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

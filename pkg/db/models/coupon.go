package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
)

// Coupon is a discount code. Codes are stored upper-case so lookups are
// case-insensitive. For percentage coupons Value is basis points; for fixed
// coupons it is minor currency units.
type Coupon struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code              string                   `gorm:"column:code;uniqueIndex:ux_coupons_code;not null"`
	DiscountType      enums.CouponDiscountType `gorm:"column:discount_type;type:text;not null"`
	Value             int64                    `gorm:"column:value;not null"`
	MaxDiscountCents  *int64                   `gorm:"column:max_discount_cents"`
	MinOrderCents     *int64                   `gorm:"column:min_order_cents"`
	StoreID           *uuid.UUID               `gorm:"column:store_id;type:uuid"`
	UsageLimit        int                      `gorm:"column:usage_limit;not null;default:0"`
	UsedCount         int                      `gorm:"column:used_count;not null;default:0"`
	StartsAt          *time.Time               `gorm:"column:starts_at"`
	EndsAt            *time.Time               `gorm:"column:ends_at"`
	IsActive          bool                     `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// CouponUsage enforces one redemption per user per coupon. Append-only.
type CouponUsage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID  uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:ux_coupon_usages_coupon_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_coupon_usages_coupon_user"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

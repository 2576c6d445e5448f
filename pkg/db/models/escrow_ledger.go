package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
)

// EscrowLedger holds a buyer's payment for one order until it is released
// to the vendor or refunded. amountReleased + amountRefunded never exceeds
// amountHeld.
type EscrowLedger struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID             uuid.UUID          `gorm:"column:order_id;type:uuid;uniqueIndex:ux_escrow_ledgers_order;not null"`
	BuyerID             uuid.UUID          `gorm:"column:buyer_id;type:uuid;not null"`
	SellerIDs           []uuid.UUID        `gorm:"column:seller_ids;type:jsonb;serializer:json"`
	AmountHeldCents     int64              `gorm:"column:amount_held_cents;not null"`
	AmountReleasedCents int64              `gorm:"column:amount_released_cents;not null;default:0"`
	AmountRefundedCents int64              `gorm:"column:amount_refunded_cents;not null;default:0"`
	Status              enums.EscrowStatus `gorm:"column:status;type:text;not null;default:'held'"`
	DisputeID           *uuid.UUID         `gorm:"column:dispute_id;type:uuid"`
	ReleaseReason       *string            `gorm:"column:release_reason"`
	RefundReason        *string            `gorm:"column:refund_reason"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// RemainingCents is the balance still held in escrow.
func (e EscrowLedger) RemainingCents() int64 {
	return e.AmountHeldCents - e.AmountReleasedCents - e.AmountRefundedCents
}

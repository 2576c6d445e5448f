package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
)

// CommissionRecord is the immutable audit row linking an order to the rule
// applied at settlement time and the amounts computed from it.
type CommissionRecord struct {
	ID                    uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	RuleID                *uuid.UUID             `gorm:"column:rule_id;type:uuid"`
	Scope                 *enums.CommissionScope `gorm:"column:scope;type:text"`
	BaseAmountCents       int64                  `gorm:"column:base_amount_cents;not null"`
	CommissionAmountCents int64                  `gorm:"column:commission_amount_cents;not null"`
	NetAmountCents        int64                  `gorm:"column:net_amount_cents;not null"`
	CreatedAt             time.Time              `gorm:"column:created_at;autoCreateTime"`
}

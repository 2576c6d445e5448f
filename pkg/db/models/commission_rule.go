package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
)

// CommissionRule defines the platform fee at a given scope. Resolution
// priority is store > category > global; within a tier the most recently
// created active rule wins.
type CommissionRule struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Scope         enums.CommissionScope  `gorm:"column:scope;type:text;not null;index"`
	StoreID       *uuid.UUID             `gorm:"column:store_id;type:uuid;index"`
	Category      *enums.ProductCategory `gorm:"column:category;type:text;index"`
	PercentBps    int64                  `gorm:"column:percent_bps;not null;default:0"`
	FixedFeeCents int64                  `gorm:"column:fixed_fee_cents;not null;default:0"`
	StartsAt      *time.Time             `gorm:"column:starts_at"`
	EndsAt        *time.Time             `gorm:"column:ends_at"`
	IsActive      bool                   `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// ActiveWithin reports whether the rule's optional window covers now.
func (r CommissionRule) ActiveWithin(now time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.StartsAt != nil && now.Before(*r.StartsAt) {
		return false
	}
	if r.EndsAt != nil && now.After(*r.EndsAt) {
		return false
	}
	return true
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is the platform balance ledger for one user. Balance never goes
// negative; debits are guarded at the storage layer.
type Wallet struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;uniqueIndex:ux_wallets_user;not null"`
	BalanceCents int64     `gorm:"column:balance_cents;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

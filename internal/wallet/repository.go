package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
)

// Repository moves money in and out of platform wallets. Debits are guarded
// at the UPDATE so a balance can never go negative, whatever the callers
// race on.
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

// Get loads a user's wallet.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return &wallet, nil
}

// Debit takes amount out of the user's wallet. The WHERE clause carries the
// balance check, so an insufficient balance simply affects zero rows.
func (r *Repository) Debit(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "debit amount must be positive")
	}

	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ? AND balance_cents >= ?", userID, amountCents).
		Update("balance_cents", gorm.Expr("balance_cents - ?", amountCents))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "debit wallet")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds,
			fmt.Sprintf("wallet balance too low for debit of %d", amountCents))
	}
	return nil
}

// Credit adds amount to the user's wallet, creating the wallet row when the
// user has none yet.
func (r *Repository) Credit(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"balance_cents": gorm.Expr("balance_cents + ?", amountCents)}),
		}).
		Create(&models.Wallet{UserID: userID, BalanceCents: amountCents}).
		Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit wallet")
	}
	return nil
}

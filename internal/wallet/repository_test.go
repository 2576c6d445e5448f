package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  user_id TEXT NOT NULL,
  balance_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_wallets_user ON wallets(user_id);
`

func newTestRepo(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()
	dsn := "file:wallet_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec(testSchema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return NewRepository(db), db
}

func TestDebitGuardsBalance(t *testing.T) {
	t.Parallel()

	repo, db := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	if err := db.Create(&models.Wallet{UserID: userID, BalanceCents: 1000}).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	if err := repo.Debit(ctx, userID, 600); err != nil {
		t.Fatalf("debit: %v", err)
	}

	err := repo.Debit(ctx, userID, 600)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	wallet, err := repo.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if wallet.BalanceCents != 400 {
		t.Fatalf("failed debit must not move money, got %d", wallet.BalanceCents)
	}
}

func TestDebitMissingWallet(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepo(t)
	err := repo.Debit(context.Background(), uuid.New(), 100)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("missing wallet reads as no funds, got %v", err)
	}
}

func TestCreditUpserts(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	if err := repo.Credit(ctx, userID, 500); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	if err := repo.Credit(ctx, userID, 250); err != nil {
		t.Fatalf("second credit: %v", err)
	}

	wallet, err := repo.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if wallet.BalanceCents != 750 {
		t.Fatalf("expected 750, got %d", wallet.BalanceCents)
	}
}

func TestAmountValidation(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Debit(ctx, uuid.New(), 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("zero debit: got %v", err)
	}
	if err := repo.Credit(ctx, uuid.New(), -5); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("negative credit: got %v", err)
	}
}

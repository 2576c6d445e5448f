package escrow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/outbox"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS escrow_ledgers (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(6)))),
  order_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  seller_ids TEXT,
  amount_held_cents INTEGER NOT NULL,
  amount_released_cents INTEGER NOT NULL DEFAULT 0,
  amount_refunded_cents INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'held',
  dispute_id TEXT,
  release_reason TEXT,
  refund_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_escrow_ledgers_order ON escrow_ledgers(order_id);
`

type stubTxRunner struct {
	db *gorm.DB
}

func (s stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn)
}

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *recordingEmitter) {
	t.Helper()
	dsn := "file:escrow_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec(testSchema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	emitter := &recordingEmitter{}
	svc, err := NewService(NewRepository(db), stubTxRunner{db: db}, emitter, logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db, emitter
}

func createHeld(t *testing.T, svc *Service, amount int64) *models.EscrowLedger {
	t.Helper()
	ledger, err := svc.Create(context.Background(), CreateInput{
		OrderID:     uuid.New(),
		BuyerID:     uuid.New(),
		SellerIDs:   []uuid.UUID{uuid.New()},
		AmountCents: amount,
	})
	if err != nil {
		t.Fatalf("create escrow: %v", err)
	}
	return ledger
}

func TestCreate(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ledger := createHeld(t, svc, 10000)

	if ledger.Status != enums.EscrowStatusHeld {
		t.Fatalf("new ledger must be held, got %s", ledger.Status)
	}
	if ledger.RemainingCents() != 10000 {
		t.Fatalf("remaining: got %d", ledger.RemainingCents())
	}

	_, err := svc.Create(context.Background(), CreateInput{
		OrderID:     ledger.OrderID,
		BuyerID:     uuid.New(),
		AmountCents: 500,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("second ledger for the same order must conflict, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateInput{OrderID: uuid.New(), AmountCents: 0})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("zero amount: got %v", err)
	}
}

func TestReleaseThenRefundConflicts(t *testing.T) {
	t.Parallel()

	svc, _, emitter := newTestService(t)
	ctx := context.Background()
	ledger := createHeld(t, svc, 10000)

	released, err := svc.Release(ctx, ledger.ID, "delivered")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.Status != enums.EscrowStatusReleased {
		t.Fatalf("status: got %s", released.Status)
	}
	if released.AmountReleasedCents != 10000 || released.RemainingCents() != 0 {
		t.Fatalf("amounts: %+v", released)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventEscrowReleased {
		t.Fatalf("expected one release event, got %+v", emitter.events)
	}

	// The ledger is terminal now; both settlement directions must refuse.
	if _, err := svc.Refund(ctx, ledger.ID, "change of heart"); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("refund after release: got %v", err)
	}
	if _, err := svc.Release(ctx, ledger.ID, "again"); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("double release: got %v", err)
	}
}

func TestRefund(t *testing.T) {
	t.Parallel()

	svc, _, emitter := newTestService(t)
	ledger := createHeld(t, svc, 4200)

	refunded, err := svc.Refund(context.Background(), ledger.ID, "order cancelled")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Status != enums.EscrowStatusRefunded || refunded.AmountRefundedCents != 4200 {
		t.Fatalf("refund state: %+v", refunded)
	}
	if refunded.AmountReleasedCents+refunded.AmountRefundedCents+refunded.RemainingCents() != refunded.AmountHeldCents {
		t.Fatalf("held must equal released + refunded + remaining: %+v", refunded)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventEscrowRefunded {
		t.Fatalf("expected one refund event, got %+v", emitter.events)
	}
}

func TestSettleByOrderID(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ledger := createHeld(t, svc, 900)

	released, err := svc.ReleaseForOrder(context.Background(), ledger.OrderID, "delivered")
	if err != nil {
		t.Fatalf("release for order: %v", err)
	}
	if released.ID != ledger.ID || released.Status != enums.EscrowStatusReleased {
		t.Fatalf("wrong ledger settled: %+v", released)
	}

	if _, err := svc.RefundForOrder(context.Background(), uuid.New(), "x"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("unknown order: got %v", err)
	}
}

func TestAttachDisputeKeepsStateAndAmounts(t *testing.T) {
	t.Parallel()

	svc, _, emitter := newTestService(t)
	ledger := createHeld(t, svc, 5000)
	disputeID := uuid.New()

	updated, err := svc.AttachDispute(context.Background(), ledger.ID, disputeID)
	if err != nil {
		t.Fatalf("attach dispute: %v", err)
	}
	if updated.DisputeID == nil || *updated.DisputeID != disputeID {
		t.Fatalf("dispute id not attached: %+v", updated)
	}
	if updated.Status != enums.EscrowStatusHeld || updated.RemainingCents() != 5000 {
		t.Fatalf("dispute must not move money or state: %+v", updated)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventEscrowDisputed {
		t.Fatalf("expected dispute event, got %+v", emitter.events)
	}

	// A disputed ledger can still settle.
	if _, err := svc.Release(context.Background(), ledger.ID, "dispute resolved"); err != nil {
		t.Fatalf("release after dispute: %v", err)
	}
}

func TestFailedSettlementRollsBack(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ledger := createHeld(t, svc, 1000)

	// Force the emit step to fail and verify the amounts roll back.
	failing, err := NewService(NewRepository(db), stubTxRunner{db: db}, failingEmitter{}, logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := failing.Release(context.Background(), ledger.ID, "delivered"); err == nil {
		t.Fatal("expected release to fail")
	}

	var reloaded models.EscrowLedger
	if err := db.First(&reloaded, "id = ?", ledger.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.EscrowStatusHeld || reloaded.AmountReleasedCents != 0 {
		t.Fatalf("settlement must be atomic with the event, got %+v", reloaded)
	}
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return pkgerrors.New(pkgerrors.CodeDependency, "emit failed")
}

package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/outbox"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// boundRunner satisfies txRunner with an already-open transaction, so a
// caller who holds one can run escrow transitions inside it.
type boundRunner struct {
	tx *gorm.DB
}

func (b boundRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(b.tx)
}

// CreateInput opens a held ledger for an order.
type CreateInput struct {
	OrderID     uuid.UUID
	BuyerID     uuid.UUID
	SellerIDs   []uuid.UUID
	AmountCents int64
}

// Service owns escrow state transitions. Funds enter held and leave exactly
// once, to the vendor (release) or back to the buyer (refund).
type Service struct {
	repo   *Repository
	tx     txRunner
	events eventEmitter
	logg   *logger.Logger
}

// NewService builds the escrow ledger service.
func NewService(repo *Repository, tx txRunner, events eventEmitter, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("escrow repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, tx: tx, events: events, logg: logg}, nil
}

// WithTx returns a service that runs every transition on the provided
// transaction instead of opening its own.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{repo: s.repo, tx: boundRunner{tx: tx}, events: s.events, logg: s.logg}
}

// Create opens a held ledger for the order's total.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.EscrowLedger, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escrow amount must be positive")
	}

	ledger := &models.EscrowLedger{
		OrderID:         input.OrderID,
		BuyerID:         input.BuyerID,
		SellerIDs:       input.SellerIDs,
		AmountHeldCents: input.AmountCents,
		Status:          enums.EscrowStatusHeld,
	}

	var created *models.EscrowLedger
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = s.repo.WithTx(tx).Create(ctx, ledger)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get loads a ledger by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.EscrowLedger, error) {
	return s.repo.FindByID(ctx, id)
}

// Release moves the remaining held balance to the vendor side and closes
// the ledger.
func (s *Service) Release(ctx context.Context, id uuid.UUID, reason string) (*models.EscrowLedger, error) {
	return s.settle(ctx, id, reason, enums.EscrowStatusReleased)
}

// Refund returns the remaining held balance to the buyer and closes the
// ledger.
func (s *Service) Refund(ctx context.Context, id uuid.UUID, reason string) (*models.EscrowLedger, error) {
	return s.settle(ctx, id, reason, enums.EscrowStatusRefunded)
}

// ReleaseForOrder settles the order's ledger by order ID. Used by the order
// lifecycle, which holds the transaction.
func (s *Service) ReleaseForOrder(ctx context.Context, orderID uuid.UUID, reason string) (*models.EscrowLedger, error) {
	return s.settleBy(ctx, func(tx *gorm.DB) (*models.EscrowLedger, error) {
		return s.repo.WithTx(tx).FindByOrderIDLocked(ctx, orderID)
	}, reason, enums.EscrowStatusReleased)
}

// RefundForOrder settles the order's ledger back to the buyer by order ID.
func (s *Service) RefundForOrder(ctx context.Context, orderID uuid.UUID, reason string) (*models.EscrowLedger, error) {
	return s.settleBy(ctx, func(tx *gorm.DB) (*models.EscrowLedger, error) {
		return s.repo.WithTx(tx).FindByOrderIDLocked(ctx, orderID)
	}, reason, enums.EscrowStatusRefunded)
}

// AttachDispute annotates the ledger with a dispute reference. Status and
// amounts stay untouched.
func (s *Service) AttachDispute(ctx context.Context, id, disputeID uuid.UUID) (*models.EscrowLedger, error) {
	if disputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}

	var updated *models.EscrowLedger
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledger, err := repo.FindByIDLocked(ctx, id)
		if err != nil {
			return err
		}
		ledger.DisputeID = &disputeID
		if err := repo.Save(ctx, ledger); err != nil {
			return err
		}
		updated = ledger
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEscrowDisputed,
			AggregateType: enums.AggregateEscrowLedger,
			AggregateID:   ledger.ID,
			Data: payloads.EscrowSettledEvent{
				EscrowID:    ledger.ID,
				OrderID:     ledger.OrderID,
				Status:      ledger.Status,
				AmountCents: ledger.RemainingCents(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) settle(ctx context.Context, id uuid.UUID, reason string, target enums.EscrowStatus) (*models.EscrowLedger, error) {
	return s.settleBy(ctx, func(tx *gorm.DB) (*models.EscrowLedger, error) {
		return s.repo.WithTx(tx).FindByIDLocked(ctx, id)
	}, reason, target)
}

func (s *Service) settleBy(ctx context.Context, load func(tx *gorm.DB) (*models.EscrowLedger, error), reason string, target enums.EscrowStatus) (*models.EscrowLedger, error) {
	var settled *models.EscrowLedger
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger, err := load(tx)
		if err != nil {
			return err
		}
		if ledger.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("escrow %s is already %s", ledger.ID, ledger.Status))
		}
		remaining := ledger.RemainingCents()
		if remaining <= 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "nothing left in escrow")
		}

		eventType := enums.EventEscrowReleased
		switch target {
		case enums.EscrowStatusReleased:
			ledger.AmountReleasedCents += remaining
			ledger.ReleaseReason = &reason
		case enums.EscrowStatusRefunded:
			ledger.AmountRefundedCents += remaining
			ledger.RefundReason = &reason
			eventType = enums.EventEscrowRefunded
		default:
			return pkgerrors.New(pkgerrors.CodeInternal,
				fmt.Sprintf("illegal settlement target %s", target))
		}
		ledger.Status = target

		if ledger.AmountReleasedCents+ledger.AmountRefundedCents > ledger.AmountHeldCents {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"escrow_id":       ledger.ID.String(),
				"amount_held":     ledger.AmountHeldCents,
				"amount_released": ledger.AmountReleasedCents,
				"amount_refunded": ledger.AmountRefundedCents,
			})
			err := pkgerrors.New(pkgerrors.CodeInvariant, "escrow balance overdrawn")
			s.logg.Error(logCtx, "escrow balance invariant violated", err)
			return err
		}

		if err := s.repo.WithTx(tx).Save(ctx, ledger); err != nil {
			return err
		}
		settled = ledger
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateEscrowLedger,
			AggregateID:   ledger.ID,
			OccurredAt:    time.Now(),
			Data: payloads.EscrowSettledEvent{
				EscrowID:    ledger.ID,
				OrderID:     ledger.OrderID,
				Status:      ledger.Status,
				AmountCents: remaining,
				Reason:      reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dorceinnovative/dorce.ai-sub002/internal/catalog"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/commission"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/escrow"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/wallet"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/outbox"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/outbox/payloads"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the order lifecycle after checkout. Delivery settles the
// escrow toward the vendor; cancellation refunds the buyer and restocks.
type Service struct {
	repo       *Repository
	tx         txRunner
	escrow     *escrow.Service
	commission *commission.Service
	wallet     *wallet.Repository
	catalog    *catalog.Repository
	events     eventEmitter
	logg       *logger.Logger
}

// NewService builds the order lifecycle service.
func NewService(
	repo *Repository,
	tx txRunner,
	escrowSvc *escrow.Service,
	commissionSvc *commission.Service,
	walletRepo *wallet.Repository,
	catalogRepo *catalog.Repository,
	events eventEmitter,
	logg *logger.Logger,
) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if escrowSvc == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	if commissionSvc == nil {
		return nil, fmt.Errorf("commission service required")
	}
	if walletRepo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:       repo,
		tx:         tx,
		escrow:     escrowSvc,
		commission: commissionSvc,
		wallet:     walletRepo,
		catalog:    catalogRepo,
		events:     events,
		logg:       logg,
	}, nil
}

// Get loads an order with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.FindByID(ctx, id)
}

// Page is one slice of a buyer's order history.
type Page struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ListForUser returns a page of the buyer's orders.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	rows, next, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	return &Page{Orders: rows, NextCursor: next}, nil
}

// MarkShipped moves a confirmed order to shipped.
func (s *Service) MarkShipped(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDLocked(ctx, orderID)
		if err != nil {
			return err
		}
		if err := requireTransition(order, enums.OrderStatusShipped); err != nil {
			return err
		}
		from := order.Status
		order.Status = enums.OrderStatusShipped
		if err := repo.Save(ctx, order); err != nil {
			return err
		}
		updated = order
		return s.emitStateChange(ctx, tx, order, from, enums.EventOrderShipped, "")
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Deliver marks the order delivered and settles its money: the escrow
// releases, the platform commission is recorded, and the vendor wallet is
// credited with the net amount. One transaction covers all of it.
func (s *Service) Deliver(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDLocked(ctx, orderID)
		if err != nil {
			return err
		}
		if err := requireTransition(order, enums.OrderStatusDelivered); err != nil {
			return err
		}
		if order.PaymentStatus != enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order %s is not paid", order.ID))
		}

		from := order.Status
		order.Status = enums.OrderStatusDelivered
		if err := repo.Save(ctx, order); err != nil {
			return err
		}

		ledger, err := s.escrow.WithTx(tx).ReleaseForOrder(ctx, order.ID, "order delivered")
		if err != nil {
			return err
		}
		released := ledger.AmountReleasedCents

		commissionSvc := s.commission.WithTx(tx)
		quote, err := commissionSvc.Resolve(ctx, &order.VendorID, nil, released)
		if err != nil {
			return err
		}
		if _, err := commissionSvc.RecordFor(ctx, order.ID, quote, released); err != nil {
			return err
		}

		if quote.NetCents > 0 {
			if err := s.wallet.WithTx(tx).Credit(ctx, order.VendorID, quote.NetCents); err != nil {
				return err
			}
		}

		updated = order
		return s.emitStateChange(ctx, tx, order, from, enums.EventOrderDelivered, "")
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel voids the order: the escrow refunds to the buyer, inventory goes
// back on the shelf, and a settled payment is returned to the buyer wallet.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDLocked(ctx, orderID)
		if err != nil {
			return err
		}
		if err := requireTransition(order, enums.OrderStatusCancelled); err != nil {
			return err
		}

		from := order.Status
		wasPaid := order.PaymentStatus == enums.PaymentStatusPaid
		order.Status = enums.OrderStatusCancelled
		if wasPaid {
			order.PaymentStatus = enums.PaymentStatusRefunded
		}
		if err := repo.Save(ctx, order); err != nil {
			return err
		}

		if _, err := s.escrow.WithTx(tx).RefundForOrder(ctx, order.ID, reason); err != nil {
			return err
		}

		catalogRepo := s.catalog.WithTx(tx)
		for _, item := range order.Items {
			variantID := uuid.Nil
			if item.VariantID != nil {
				variantID = *item.VariantID
			}
			if err := catalogRepo.Restock(ctx, item.ProductID, variantID, item.Quantity); err != nil {
				return err
			}
		}

		if wasPaid {
			if err := s.wallet.WithTx(tx).Credit(ctx, order.UserID, order.TotalCents); err != nil {
				return err
			}
		}

		updated = order
		return s.emitStateChange(ctx, tx, order, from, enums.EventOrderCancelled, reason)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) emitStateChange(ctx context.Context, tx *gorm.DB, order *models.Order, from enums.OrderStatus, eventType enums.OutboxEventType, reason string) error {
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderStateChangedEvent{
			OrderID:  order.ID,
			UserID:   order.UserID,
			VendorID: order.VendorID,
			From:     from,
			To:       order.Status,
			Reason:   reason,
		},
	})
}

func requireTransition(order *models.Order, next enums.OrderStatus) error {
	if !order.Status.CanTransitionTo(next) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order %s cannot move from %s to %s", order.ID, order.Status, next))
	}
	return nil
}

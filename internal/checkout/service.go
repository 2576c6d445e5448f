package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dorceinnovative/dorce.ai-sub002/internal/cart"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/catalog"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/coupon"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/escrow"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/orders"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/payments"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/wallet"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/config"
	pkgdb "github.com/dorceinnovative/dorce.ai-sub002/pkg/db"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/metrics"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/outbox"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/outbox/payloads"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cartStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*cart.View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// Input is a checkout request for the caller's whole cart.
type Input struct {
	UserID          uuid.UUID
	PaymentMethod   enums.PaymentMethod
	CouponCode      string
	ShippingAddress *types.Address
	BillingAddress  *types.Address
	Notes           *string
}

// Result is what a committed checkout hands back. Payment is set for
// gateway methods and carries what the client needs to complete the charge;
// wallet checkouts settle inline and leave it nil.
type Result struct {
	Reference     string                   `json:"reference"`
	Orders        []models.Order           `json:"orders"`
	AmountCents   int64                    `json:"amount_cents"`
	DiscountCents int64                    `json:"discount_cents"`
	Payment       *payments.Initialization `json:"payment,omitempty"`
}

// Service turns a cart into per-vendor orders, held escrows and a payment,
// all inside one database transaction.
type Service struct {
	carts   cartStore
	catalog *catalog.Repository
	orders  *orders.Repository
	escrow  *escrow.Service
	coupons *coupon.Service
	wallets *wallet.Repository
	gateway payments.Gateway
	tx      txRunner
	events  eventEmitter
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	cfg     config.CheckoutConfig
	now     func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(
	carts cartStore,
	catalogRepo *catalog.Repository,
	ordersRepo *orders.Repository,
	escrowSvc *escrow.Service,
	couponSvc *coupon.Service,
	walletRepo *wallet.Repository,
	gateway payments.Gateway,
	tx txRunner,
	events eventEmitter,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
	cfg config.CheckoutConfig,
) (*Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if escrowSvc == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if walletRepo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
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
	return &Service{
		carts:   carts,
		catalog: catalogRepo,
		orders:  ordersRepo,
		escrow:  escrowSvc,
		coupons: couponSvc,
		wallets: walletRepo,
		gateway: gateway,
		tx:      tx,
		events:  events,
		metrics: checkoutMetrics,
		logg:    logg,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

// Execute runs the checkout pipeline for the user's cart.
func (s *Service) Execute(ctx context.Context, input Input) (*Result, error) {
	start := s.now()
	result, err := s.execute(ctx, input)
	if s.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			code := pkgerrors.CodeInternal
			if typed := pkgerrors.As(err); typed != nil {
				code = typed.Code()
			}
			s.metrics.IncFailure(string(code))
		} else {
			s.metrics.AddOrders(len(result.Orders))
		}
		s.metrics.ObserveDuration(outcome, s.now().Sub(start))
	}
	return result, err
}

func (s *Service) execute(ctx context.Context, input Input) (*Result, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown payment method %q", input.PaymentMethod))
	}

	view, err := s.carts.Get(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if len(view.Cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if err := validateLines(ctx, s.catalog, view.Cart.Items); err != nil {
		return nil, err
	}

	reference := "chk_" + uuid.NewString()
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":   input.UserID.String(),
		"reference": reference,
	})

	// The order number unique index is the collision guarantee; a lost race
	// aborts the whole transaction, so the retry re-runs everything with
	// fresh numbers.
	attempts := s.cfg.OrderNumberAttempts
	if attempts < 1 {
		attempts = 1
	}
	var result *Result
	for attempt := 0; attempt < attempts; attempt++ {
		result, err = s.commit(ctx, input, view.Quote, reference)
		if err == nil {
			break
		}
		if pkgerrors.As(err) != nil || !pkgdb.IsUniqueViolation(err, "order_number") {
			return nil, err
		}
		s.logg.Warn(ctx, "order number collision, retrying checkout")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "committing checkout")
	}

	if clearErr := s.carts.Clear(ctx, input.UserID); clearErr != nil {
		s.logg.Error(ctx, "clearing cart after checkout", clearErr)
	}
	s.logg.Info(ctx, "checkout committed")

	if input.PaymentMethod != enums.PaymentMethodWallet && result.AmountCents > 0 {
		gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
		defer cancel()
		init, err := s.gateway.InitializePayment(gwCtx, payments.InitializeRequest{
			Reference:   reference,
			AmountCents: result.AmountCents,
			Currency:    enums.Currency(s.cfg.Currency),
			UserID:      input.UserID.String(),
			Metadata:    map[string]string{"order_count": fmt.Sprintf("%d", len(result.Orders))},
		})
		if err != nil {
			// Orders are committed and stay queryable by reference; the
			// client retries payment initialization against the same
			// reference.
			s.logg.Error(ctx, "payment initialization failed after commit", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initializing payment")
		}
		result.Payment = init
	}
	return result, nil
}

// commit is the transactional slice of checkout: coupon redemption, order
// rows, stock decrements, escrow holds and outbox events all commit or roll
// back together.
func (s *Service) commit(ctx context.Context, input Input, quote cart.Quote, reference string) (*Result, error) {
	walletPay := input.PaymentMethod == enums.PaymentMethodWallet

	var (
		built         []models.Order
		grandTotal    int64
		discountCents int64
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		built = nil
		grandTotal = 0
		discountCents = 0

		if input.CouponCode != "" {
			redemption, err := s.coupons.WithTx(tx).Apply(
				ctx, input.UserID, input.CouponCode, quote.SubtotalCents, couponScope(quote))
			if err != nil {
				return err
			}
			discountCents = redemption.DiscountCents
		}
		shares := prorateDiscount(discountCents, quote.VendorGroups)

		ordersRepo := s.orders.WithTx(tx)
		catalogRepo := s.catalog.WithTx(tx)
		escrowSvc := s.escrow.WithTx(tx)
		now := s.now()

		for i, group := range quote.VendorGroups {
			number, err := newOrderNumber(now)
			if err != nil {
				return err
			}
			tax := cart.TaxFor(group.SubtotalCents, s.cfg.TaxRateBps)
			total := group.SubtotalCents + group.ShippingCents + tax - shares[i]

			order := &models.Order{
				UserID:           input.UserID,
				VendorID:         group.VendorID,
				OrderNumber:      number,
				Status:           enums.OrderStatusPending,
				PaymentStatus:    enums.PaymentStatusPending,
				PaymentMethod:    input.PaymentMethod,
				PaymentReference: &reference,
				SubtotalCents:    group.SubtotalCents,
				ShippingCents:    group.ShippingCents,
				TaxCents:         tax,
				DiscountCents:    shares[i],
				TotalCents:       total,
				Currency:         enums.Currency(s.cfg.Currency),
				ShippingAddress:  input.ShippingAddress,
				BillingAddress:   input.BillingAddress,
				Notes:            input.Notes,
				Items:            orderItems(group.Items),
			}
			if walletPay {
				order.Status = enums.OrderStatusConfirmed
				order.PaymentStatus = enums.PaymentStatusPaid
			}
			if err := ordersRepo.Create(ctx, order); err != nil {
				return err
			}

			for _, item := range group.Items {
				if err := catalogRepo.DecrementStock(ctx, item.ProductID, item.VariantID, item.Quantity); err != nil {
					return err
				}
			}

			if total > 0 {
				if _, err := escrowSvc.Create(ctx, escrow.CreateInput{
					OrderID:     order.ID,
					BuyerID:     input.UserID,
					SellerIDs:   []uuid.UUID{group.VendorID},
					AmountCents: total,
				}); err != nil {
					return err
				}
			}

			built = append(built, *order)
			grandTotal += total
		}

		orderIDs := make([]uuid.UUID, len(built))
		for i := range built {
			orderIDs[i] = built[i].ID
		}
		for i := range built {
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   built[i].ID,
				Version:       1,
				Data: payloads.OrderCreatedEvent{
					OrderID:     built[i].ID,
					UserID:      built[i].UserID,
					VendorID:    built[i].VendorID,
					OrderNumber: built[i].OrderNumber,
					TotalCents:  built[i].TotalCents,
					Currency:    built[i].Currency,
					Method:      built[i].PaymentMethod,
					Status:      built[i].Status,
					Payment:     built[i].PaymentStatus,
					SiblingIDs:  siblings(orderIDs, built[i].ID),
				},
			}); err != nil {
				return err
			}
		}

		if walletPay && grandTotal > 0 {
			if err := s.wallets.WithTx(tx).Debit(ctx, input.UserID, grandTotal); err != nil {
				return err
			}
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentConfirmed,
				AggregateType: enums.AggregateCheckout,
				AggregateID:   input.UserID,
				Data: payloads.PaymentConfirmedEvent{
					Reference:   reference,
					OrderIDs:    orderIDs,
					AmountCents: grandTotal,
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Reference:     reference,
		Orders:        built,
		AmountCents:   grandTotal,
		DiscountCents: discountCents,
	}, nil
}

// ConfirmPayment verifies a gateway charge and marks the reference's orders
// paid. Calling it again for a settled reference is a no-op.
func (s *Service) ConfirmPayment(ctx context.Context, reference string) ([]models.Order, error) {
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	verification, err := s.gateway.VerifyPayment(ctx, reference)
	if err != nil {
		return nil, err
	}
	if verification.Status != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment %s is %s, not paid", reference, verification.Status))
	}

	var confirmed []models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		list, err := repo.FindByPaymentReference(ctx, reference)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("no orders for payment reference %s", reference))
		}

		var pendingIDs, allIDs []uuid.UUID
		var expected int64
		for i := range list {
			allIDs = append(allIDs, list[i].ID)
			expected += list[i].TotalCents
			if list[i].PaymentStatus == enums.PaymentStatusPending {
				pendingIDs = append(pendingIDs, list[i].ID)
			}
		}
		if len(pendingIDs) == 0 {
			confirmed = list
			return nil
		}
		if verification.AmountCents != expected {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("gateway settled %d but orders sum to %d", verification.AmountCents, expected))
		}

		if err := repo.MarkPaid(ctx, pendingIDs); err != nil {
			return err
		}
		for i := range list {
			if list[i].PaymentStatus == enums.PaymentStatusPending {
				list[i].PaymentStatus = enums.PaymentStatusPaid
				list[i].Status = enums.OrderStatusConfirmed
			}
		}
		confirmed = list

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentConfirmed,
			AggregateType: enums.AggregateCheckout,
			AggregateID:   confirmed[0].UserID,
			Data: payloads.PaymentConfirmedEvent{
				Reference:   reference,
				OrderIDs:    allIDs,
				AmountCents: verification.AmountCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// OrdersForReference exposes the orders behind a payment reference so a
// client can recover after a failed gateway initialization.
func (s *Service) OrdersForReference(ctx context.Context, reference string) ([]models.Order, error) {
	list, err := s.orders.FindByPaymentReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("no orders for payment reference %s", reference))
	}
	return list, nil
}

// couponScope returns the store a coupon must match. Store-scoped coupons
// only make sense when the cart holds a single vendor's goods.
func couponScope(quote cart.Quote) *uuid.UUID {
	if len(quote.VendorGroups) == 1 {
		return &quote.VendorGroups[0].VendorID
	}
	return nil
}

func orderItems(lines []cart.CartItem) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		var variantID *uuid.UUID
		if line.VariantID != uuid.Nil {
			v := line.VariantID
			variantID = &v
		}
		items = append(items, models.OrderItem{
			ProductID:      line.ProductID,
			VariantID:      variantID,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			LineTotalCents: line.LineSubtotalCents(),
		})
	}
	return items
}

func siblings(all []uuid.UUID, self uuid.UUID) []uuid.UUID {
	if len(all) < 2 {
		return nil
	}
	out := make([]uuid.UUID, 0, len(all)-1)
	for _, id := range all {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

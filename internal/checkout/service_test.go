package checkout

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dorceinnovative/dorce.ai-sub002/internal/cart"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/catalog"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/coupon"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/escrow"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/orders"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/payments"
	"github.com/dorceinnovative/dorce.ai-sub002/internal/wallet"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/config"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/outbox"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(6)))),
  store_id TEXT NOT NULL,
  owner_user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  category TEXT NOT NULL DEFAULT 'other',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS product_variants (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(6)))),
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price_cents INTEGER,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS inventory_items (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(6)))),
  product_id TEXT NOT NULL,
  variant_id TEXT NOT NULL DEFAULT '00000000-0000-0000-0000-000000000000',
  available_qty INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_inventory_product_variant ON inventory_items(product_id, variant_id);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(6)))),
  user_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  order_number TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL,
  payment_reference TEXT,
  subtotal_cents INTEGER NOT NULL,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  tax_cents INTEGER NOT NULL DEFAULT 0,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'NGN',
  shipping_address TEXT,
  billing_address TEXT,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_order_number ON orders(order_number);
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(6)))),
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  line_total_cents INTEGER NOT NULL,
  created_at DATETIME
);
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
CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(6)))),
  code TEXT NOT NULL,
  discount_type TEXT NOT NULL,
  value INTEGER NOT NULL,
  max_discount_cents INTEGER,
  min_order_cents INTEGER,
  store_id TEXT,
  usage_limit INTEGER NOT NULL DEFAULT 0,
  used_count INTEGER NOT NULL DEFAULT 0,
  starts_at DATETIME,
  ends_at DATETIME,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_coupons_code ON coupons(code);
CREATE TABLE IF NOT EXISTS coupon_usages (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(6)))),
  coupon_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  created_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_coupon_usages_coupon_user ON coupon_usages(coupon_id, user_id);
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(2)) || '-' || hex(randomblob(6)))),
  user_id TEXT NOT NULL,
  balance_cents INTEGER NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_wallets_user ON wallets(user_id);
`

var testCfg = config.CheckoutConfig{
	Currency:              "NGN",
	TaxRateBps:            500,
	ShippingFlatFeeCents:  500,
	FreeShippingThreshold: 20000,
	CartTTL:               time.Hour,
	GatewayTimeout:        time.Second,
	OrderNumberAttempts:   3,
}

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

func (r *recordingEmitter) count(eventType enums.OutboxEventType) int {
	n := 0
	for _, e := range r.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type fakeCartStore struct {
	view    *cart.View
	cleared bool
}

func (f *fakeCartStore) Get(context.Context, uuid.UUID) (*cart.View, error) {
	return f.view, nil
}

func (f *fakeCartStore) Clear(context.Context, uuid.UUID) error {
	f.cleared = true
	return nil
}

type fakeGateway struct {
	initCalls []payments.InitializeRequest
	initErr   error
	verify    *payments.Verification
	verifyErr error
}

func (f *fakeGateway) InitializePayment(_ context.Context, req payments.InitializeRequest) (*payments.Initialization, error) {
	f.initCalls = append(f.initCalls, req)
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &payments.Initialization{Reference: req.Reference, ClientSecret: "secret", ProviderID: "pi_test"}, nil
}

func (f *fakeGateway) VerifyPayment(context.Context, string) (*payments.Verification, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verify, nil
}

type checkoutFixture struct {
	svc     *Service
	db      *gorm.DB
	carts   *fakeCartStore
	gateway *fakeGateway
	emitter *recordingEmitter
	userID  uuid.UUID
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec(testSchema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}

	userID := uuid.New()
	emitter := &recordingEmitter{}
	carts := &fakeCartStore{view: &cart.View{
		Cart: cart.Cart{UserID: userID, Items: []cart.CartItem{}},
	}}
	gateway := &fakeGateway{}
	logg := logger.New(logger.Options{})
	runner := stubTxRunner{db: db}

	escrowSvc, err := escrow.NewService(escrow.NewRepository(db), runner, emitter, logg)
	if err != nil {
		t.Fatalf("escrow service: %v", err)
	}
	couponSvc, err := coupon.NewService(coupon.NewRepository(db))
	if err != nil {
		t.Fatalf("coupon service: %v", err)
	}

	svc, err := NewService(
		carts,
		catalog.NewRepository(db),
		orders.NewRepository(db),
		escrowSvc,
		couponSvc,
		wallet.NewRepository(db),
		gateway,
		runner,
		emitter,
		nil,
		logg,
		testCfg,
	)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	return &checkoutFixture{svc: svc, db: db, carts: carts, gateway: gateway, emitter: emitter, userID: userID}
}

func seedProduct(t *testing.T, db *gorm.DB, storeID uuid.UUID, name string, priceCents int64, qty int) *models.Product {
	t.Helper()
	product := &models.Product{
		StoreID:     storeID,
		OwnerUserID: uuid.New(),
		Name:        name,
		PriceCents:  priceCents,
		IsActive:    true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	inv := &models.InventoryItem{ProductID: product.ID, AvailableQty: qty}
	if err := db.Create(inv).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return product
}

func lineFor(product *models.Product, qty int) cart.CartItem {
	return cart.CartItem{
		ID:             uuid.New(),
		ProductID:      product.ID,
		VariantID:      uuid.Nil,
		VendorID:       product.StoreID,
		Name:           product.Name,
		UnitPriceCents: product.PriceCents,
		Quantity:       qty,
	}
}

func seedCoupon(t *testing.T, db *gorm.DB, coupon *models.Coupon) {
	t.Helper()
	if err := db.Create(coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
}

// Mirrors the worked money example: 10,000 subtotal, 500 shipping, 5% tax,
// a 1,000 fixed coupon, card payment. The grand total and the escrow hold
// both land on 10,000.
func TestExecuteCardCheckout(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	product := seedProduct(t, f.db, uuid.New(), "speaker", 5000, 10)
	items := []cart.CartItem{lineFor(product, 2)}
	f.carts.view = &cart.View{
		Cart:  cart.Cart{UserID: f.userID, Items: items},
		Quote: cart.BuildQuote(items, testCfg),
	}
	seedCoupon(t, f.db, &models.Coupon{
		Code:         "TENOFF",
		DiscountType: enums.CouponDiscountFixed,
		Value:        1000,
		IsActive:     true,
	})

	result, err := f.svc.Execute(context.Background(), Input{
		UserID:        f.userID,
		PaymentMethod: enums.PaymentMethodCard,
		CouponCode:    "TENOFF",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(result.Orders) != 1 {
		t.Fatalf("orders: got %d", len(result.Orders))
	}
	order := result.Orders[0]
	if order.SubtotalCents != 10000 || order.ShippingCents != 500 || order.TaxCents != 500 {
		t.Fatalf("money breakdown: %+v", order)
	}
	if order.DiscountCents != 1000 || order.TotalCents != 10000 {
		t.Fatalf("discount/total: %+v", order)
	}
	if result.AmountCents != 10000 || result.DiscountCents != 1000 {
		t.Fatalf("result amounts: %+v", result)
	}
	if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("card orders start pending: %+v", order)
	}
	if result.Payment == nil || result.Payment.ClientSecret == "" {
		t.Fatalf("payment initialization missing: %+v", result.Payment)
	}
	if len(f.gateway.initCalls) != 1 || f.gateway.initCalls[0].AmountCents != 10000 {
		t.Fatalf("gateway call: %+v", f.gateway.initCalls)
	}
	if !f.carts.cleared {
		t.Fatal("cart must clear after checkout")
	}

	var ledger models.EscrowLedger
	if err := f.db.First(&ledger, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load escrow: %v", err)
	}
	if ledger.AmountHeldCents != 10000 || ledger.Status != enums.EscrowStatusHeld {
		t.Fatalf("escrow hold: %+v", ledger)
	}

	var inv models.InventoryItem
	if err := f.db.First(&inv, "product_id = ?", order.Items[0].ProductID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 8 {
		t.Fatalf("stock: got %d, want 8", inv.AvailableQty)
	}

	if f.emitter.count(enums.EventOrderCreated) != 1 {
		t.Fatalf("events: %+v", f.emitter.events)
	}

	// Gateway confirms; orders flip to confirmed/paid exactly once.
	f.gateway.verify = &payments.Verification{
		Reference:   result.Reference,
		Status:      enums.PaymentStatusPaid,
		AmountCents: 10000,
	}
	confirmed, err := f.svc.ConfirmPayment(context.Background(), result.Reference)
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if confirmed[0].Status != enums.OrderStatusConfirmed || confirmed[0].PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("confirmed order: %+v", confirmed[0])
	}
	if f.emitter.count(enums.EventPaymentConfirmed) != 1 {
		t.Fatalf("events after confirm: %+v", f.emitter.events)
	}

	// Re-confirming is a no-op.
	again, err := f.svc.ConfirmPayment(context.Background(), result.Reference)
	if err != nil {
		t.Fatalf("re-confirm: %v", err)
	}
	if len(again) != 1 || f.emitter.count(enums.EventPaymentConfirmed) != 1 {
		t.Fatalf("confirm must be idempotent: %+v", f.emitter.events)
	}
}

func TestExecuteWalletCheckout(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	product := seedProduct(t, f.db, uuid.New(), "lamp", 5000, 10)
	items := []cart.CartItem{lineFor(product, 2)}
	f.carts.view = &cart.View{
		Cart:  cart.Cart{UserID: f.userID, Items: items},
		Quote: cart.BuildQuote(items, testCfg),
	}
	if err := f.db.Create(&models.Wallet{UserID: f.userID, BalanceCents: 20000}).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	result, err := f.svc.Execute(context.Background(), Input{
		UserID:        f.userID,
		PaymentMethod: enums.PaymentMethodWallet,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	// subtotal 10000 + shipping 500 + tax 500
	if result.AmountCents != 11000 {
		t.Fatalf("amount: got %d", result.AmountCents)
	}
	order := result.Orders[0]
	if order.Status != enums.OrderStatusConfirmed || order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("wallet orders settle inline: %+v", order)
	}
	if result.Payment != nil {
		t.Fatalf("wallet checkout must not initialize a gateway charge: %+v", result.Payment)
	}
	if len(f.gateway.initCalls) != 0 {
		t.Fatalf("gateway must not be called: %+v", f.gateway.initCalls)
	}

	var w models.Wallet
	if err := f.db.First(&w, "user_id = ?", f.userID).Error; err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	if w.BalanceCents != 9000 {
		t.Fatalf("wallet balance: got %d, want 9000", w.BalanceCents)
	}
	if f.emitter.count(enums.EventPaymentConfirmed) != 1 {
		t.Fatalf("events: %+v", f.emitter.events)
	}
}

func TestExecuteWalletInsufficientFundsRollsBack(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	product := seedProduct(t, f.db, uuid.New(), "rug", 5000, 10)
	items := []cart.CartItem{lineFor(product, 2)}
	f.carts.view = &cart.View{
		Cart:  cart.Cart{UserID: f.userID, Items: items},
		Quote: cart.BuildQuote(items, testCfg),
	}
	if err := f.db.Create(&models.Wallet{UserID: f.userID, BalanceCents: 100}).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	_, err := f.svc.Execute(context.Background(), Input{
		UserID:        f.userID,
		PaymentMethod: enums.PaymentMethodWallet,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	var orderCount int64
	f.db.Model(&models.Order{}).Count(&orderCount)
	if orderCount != 0 {
		t.Fatalf("orders must roll back, found %d", orderCount)
	}
	var inv models.InventoryItem
	if err := f.db.First(&inv, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 10 {
		t.Fatalf("stock must roll back, got %d", inv.AvailableQty)
	}
}

func TestExecuteEmptyCart(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.carts.view = &cart.View{Cart: cart.Cart{UserID: f.userID, Items: []cart.CartItem{}}}

	_, err := f.svc.Execute(context.Background(), Input{
		UserID:        f.userID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("empty cart: got %v", err)
	}
}

func TestExecuteReportsEveryLineIssue(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	storeID := uuid.New()

	inactive := seedProduct(t, f.db, storeID, "inactive thing", 1000, 10)
	f.db.Model(&models.Product{}).Where("id = ?", inactive.ID).Update("is_active", false)
	scarce := seedProduct(t, f.db, storeID, "scarce thing", 2000, 1)
	drift := seedProduct(t, f.db, storeID, "drifting thing", 3000, 10)

	driftLine := lineFor(drift, 1)
	driftLine.UnitPriceCents = 2500 // stale snapshot
	items := []cart.CartItem{lineFor(inactive, 1), lineFor(scarce, 5), driftLine}
	f.carts.view = &cart.View{
		Cart:  cart.Cart{UserID: f.userID, Items: items},
		Quote: cart.BuildQuote(items, testCfg),
	}

	_, err := f.svc.Execute(context.Background(), Input{
		UserID:        f.userID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{"no longer available", "in stock", "price changed"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error must list every issue, missing %q in %q", want, msg)
		}
	}

	var orderCount int64
	f.db.Model(&models.Order{}).Count(&orderCount)
	if orderCount != 0 {
		t.Fatalf("no orders on validation failure, found %d", orderCount)
	}
}

func TestExecuteMultiVendorProration(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	vendorA, vendorB := uuid.New(), uuid.New()
	pa := seedProduct(t, f.db, vendorA, "table", 6000, 5)
	pb := seedProduct(t, f.db, vendorB, "chair", 4000, 5)
	items := []cart.CartItem{lineFor(pa, 1), lineFor(pb, 1)}
	f.carts.view = &cart.View{
		Cart:  cart.Cart{UserID: f.userID, Items: items},
		Quote: cart.BuildQuote(items, testCfg),
	}
	seedCoupon(t, f.db, &models.Coupon{
		Code:         "SPLIT10",
		DiscountType: enums.CouponDiscountPercentage,
		Value:        1000, // 10%
		IsActive:     true,
	})

	result, err := f.svc.Execute(context.Background(), Input{
		UserID:        f.userID,
		PaymentMethod: enums.PaymentMethodCard,
		CouponCode:    "SPLIT10",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(result.Orders) != 2 {
		t.Fatalf("orders: got %d", len(result.Orders))
	}
	if result.DiscountCents != 1000 {
		t.Fatalf("discount: got %d", result.DiscountCents)
	}
	var discountSum, totalSum int64
	byVendor := map[uuid.UUID]models.Order{}
	for _, o := range result.Orders {
		discountSum += o.DiscountCents
		totalSum += o.TotalCents
		byVendor[o.VendorID] = o
	}
	if discountSum != 1000 {
		t.Fatalf("prorated shares must sum to the discount, got %d", discountSum)
	}
	if byVendor[vendorA].DiscountCents != 600 || byVendor[vendorB].DiscountCents != 400 {
		t.Fatalf("shares: %d/%d", byVendor[vendorA].DiscountCents, byVendor[vendorB].DiscountCents)
	}
	if result.AmountCents != totalSum {
		t.Fatalf("charged amount must equal order totals: %d vs %d", result.AmountCents, totalSum)
	}

	var ledgerCount int64
	f.db.Model(&models.EscrowLedger{}).Count(&ledgerCount)
	if ledgerCount != 2 {
		t.Fatalf("one escrow per order, got %d", ledgerCount)
	}
}

func TestConfirmPaymentAmountMismatch(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	product := seedProduct(t, f.db, uuid.New(), "mug", 5000, 10)
	items := []cart.CartItem{lineFor(product, 1)}
	f.carts.view = &cart.View{
		Cart:  cart.Cart{UserID: f.userID, Items: items},
		Quote: cart.BuildQuote(items, testCfg),
	}

	result, err := f.svc.Execute(context.Background(), Input{
		UserID:        f.userID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	f.gateway.verify = &payments.Verification{
		Reference:   result.Reference,
		Status:      enums.PaymentStatusPaid,
		AmountCents: result.AmountCents - 1,
	}
	_, err = f.svc.ConfirmPayment(context.Background(), result.Reference)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("amount mismatch: got %v", err)
	}
}

func TestConfirmPaymentNotSettled(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	f.gateway.verify = &payments.Verification{
		Reference: "chk_x",
		Status:    enums.PaymentStatusPending,
	}
	_, err := f.svc.ConfirmPayment(context.Background(), "chk_x")
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("pending verification: got %v", err)
	}
}

func TestGatewayFailureLeavesOrdersQueryable(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t)
	product := seedProduct(t, f.db, uuid.New(), "desk", 5000, 10)
	items := []cart.CartItem{lineFor(product, 1)}
	f.carts.view = &cart.View{
		Cart:  cart.Cart{UserID: f.userID, Items: items},
		Quote: cart.BuildQuote(items, testCfg),
	}
	f.gateway.initErr = pkgerrors.New(pkgerrors.CodeDependency, "gateway down")

	_, err := f.svc.Execute(context.Background(), Input{
		UserID:        f.userID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("gateway failure: got %v", err)
	}

	// The transaction committed before the gateway call, so the orders
	// survive and stay pending until a retried initialization settles.
	var persisted []models.Order
	if err := f.db.Find(&persisted).Error; err != nil {
		t.Fatalf("load orders: %v", err)
	}
	if len(persisted) != 1 || persisted[0].PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("orders must survive gateway failure: %+v", persisted)
	}

	recovered, err := f.svc.OrdersForReference(context.Background(), *persisted[0].PaymentReference)
	if err != nil || len(recovered) != 1 {
		t.Fatalf("recover by reference: %v %d", err, len(recovered))
	}
}

func TestProrateDiscount(t *testing.T) {
	t.Parallel()

	groups := []cart.VendorGroup{
		{SubtotalCents: 3333},
		{SubtotalCents: 3333},
		{SubtotalCents: 3334},
	}
	shares := prorateDiscount(1000, groups)
	var sum int64
	for _, s := range shares {
		sum += s
	}
	if sum != 1000 {
		t.Fatalf("shares must sum to the discount, got %d", sum)
	}
	for i, s := range shares {
		if s > groups[i].SubtotalCents {
			t.Fatalf("share %d exceeds its subtotal", i)
		}
	}

	// Full-subtotal discount caps at each group's subtotal.
	shares = prorateDiscount(10000, groups)
	sum = 0
	for i, s := range shares {
		sum += s
		if s != groups[i].SubtotalCents {
			t.Fatalf("full discount share %d: got %d", i, s)
		}
	}
	if sum != 10000 {
		t.Fatalf("full discount sum: got %d", sum)
	}

	if got := prorateDiscount(0, groups); got[0]+got[1]+got[2] != 0 {
		t.Fatalf("zero discount must allocate nothing")
	}
}

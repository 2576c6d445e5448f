package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
)

const testSchema = `
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
CREATE UNIQUE INDEX IF NOT EXISTS ux_coupon_usages_coupon_user
  ON coupon_usages(coupon_id, user_id);
`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:coupon_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec(testSchema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func seedCoupon(t *testing.T, db *gorm.DB, coupon *models.Coupon) *models.Coupon {
	t.Helper()
	created, err := NewRepository(db).Create(context.Background(), coupon)
	if err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return created
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	otherStore := uuid.New()

	inactive := seedCoupon(t, db, &models.Coupon{Code: "INACTIVE", DiscountType: enums.CouponDiscountFixed, Value: 100, IsActive: true})
	if err := db.Model(&models.Coupon{}).Where("id = ?", inactive.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate coupon: %v", err)
	}
	seedCoupon(t, db, &models.Coupon{Code: "NOTYET", DiscountType: enums.CouponDiscountFixed, Value: 100, IsActive: true, StartsAt: &future})
	seedCoupon(t, db, &models.Coupon{Code: "EXPIRED", DiscountType: enums.CouponDiscountFixed, Value: 100, IsActive: true, EndsAt: &past})
	seedCoupon(t, db, &models.Coupon{Code: "SCOPED", DiscountType: enums.CouponDiscountFixed, Value: 100, IsActive: true, StoreID: &otherStore})
	minOrder := int64(5000)
	seedCoupon(t, db, &models.Coupon{Code: "BIGONLY", DiscountType: enums.CouponDiscountFixed, Value: 100, IsActive: true, MinOrderCents: &minOrder})
	seedCoupon(t, db, &models.Coupon{Code: "MAXED", DiscountType: enums.CouponDiscountFixed, Value: 100, IsActive: true, UsageLimit: 1, UsedCount: 1})

	if _, err := svc.Validate(ctx, "MISSING", 1000, nil); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("unknown code: got %v", err)
	}
	for _, code := range []string{"INACTIVE", "NOTYET", "EXPIRED", "SCOPED", "MAXED"} {
		if _, err := svc.Validate(ctx, code, 10000, nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", code, err)
		}
	}
	if _, err := svc.Validate(ctx, "BIGONLY", 1000, nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("below minimum: got %v", err)
	}
	if _, err := svc.Validate(ctx, "BIGONLY", 5000, nil); err != nil {
		t.Fatalf("at minimum must pass: %v", err)
	}
}

func TestValidateCaseInsensitive(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	seedCoupon(t, db, &models.Coupon{Code: "save10", DiscountType: enums.CouponDiscountFixed, Value: 100, IsActive: true})

	coupon, err := svc.Validate(context.Background(), "Save10", 1000, nil)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if coupon.Code != "SAVE10" {
		t.Fatalf("codes store upper-case, got %q", coupon.Code)
	}
}

func TestValidateStoreScope(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	storeID := uuid.New()
	seedCoupon(t, db, &models.Coupon{Code: "STORE", DiscountType: enums.CouponDiscountFixed, Value: 100, IsActive: true, StoreID: &storeID})

	if _, err := svc.Validate(context.Background(), "STORE", 1000, &storeID); err != nil {
		t.Fatalf("matching store must pass: %v", err)
	}
}

func TestApplyIdempotence(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedCoupon(t, db, &models.Coupon{Code: "ONCE", DiscountType: enums.CouponDiscountFixed, Value: 500, IsActive: true})
	userID := uuid.New()

	redemption, err := svc.Apply(ctx, userID, "ONCE", 10000, nil)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if redemption.DiscountCents != 500 {
		t.Fatalf("discount: got %d", redemption.DiscountCents)
	}

	if _, err := svc.Apply(ctx, userID, "ONCE", 10000, nil); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("second apply must conflict, got %v", err)
	}

	var coupon models.Coupon
	if err := db.First(&coupon, "code = ?", "ONCE").Error; err != nil {
		t.Fatalf("reload coupon: %v", err)
	}
	if coupon.UsedCount != 1 {
		t.Fatalf("used count must increase exactly once, got %d", coupon.UsedCount)
	}
}

func TestRedeemRaceClosedByUniqueIndex(t *testing.T) {
	t.Parallel()

	_, db := newTestService(t)
	ctx := context.Background()
	coupon := seedCoupon(t, db, &models.Coupon{Code: "RACE", DiscountType: enums.CouponDiscountFixed, Value: 100, IsActive: true})
	repo := NewRepository(db)
	userID := uuid.New()

	if err := repo.Redeem(ctx, coupon.ID, userID); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	// Simulates the loser of a concurrent apply: the usage row already
	// exists by the time the insert runs.
	if err := repo.Redeem(ctx, coupon.ID, userID); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict from unique index, got %v", err)
	}
}

func TestDiscountComputation(t *testing.T) {
	t.Parallel()

	maxDiscount := int64(800)
	cases := []struct {
		name   string
		coupon models.Coupon
		amount int64
		want   int64
	}{
		{"percentage floors", models.Coupon{DiscountType: enums.CouponDiscountPercentage, Value: 1000}, 9999, 999},
		{"percentage capped", models.Coupon{DiscountType: enums.CouponDiscountPercentage, Value: 1000, MaxDiscountCents: &maxDiscount}, 10000, 800},
		{"fixed", models.Coupon{DiscountType: enums.CouponDiscountFixed, Value: 1000}, 10000, 1000},
		{"fixed never exceeds amount", models.Coupon{DiscountType: enums.CouponDiscountFixed, Value: 5000}, 3000, 3000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Discount(&tc.coupon, tc.amount); got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}

package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
)

// Redemption is the result of applying a coupon to an order amount.
type Redemption struct {
	Coupon        *models.Coupon
	DiscountCents int64
}

// Service validates and redeems coupons. Redeeming must run inside the
// checkout transaction; callers bind the service with WithTx first.
type Service struct {
	repo *Repository
	now  func() time.Time
}

// NewService builds the coupon engine.
func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &Service{repo: repo, now: time.Now}, nil
}

// WithTx returns a service whose persistence runs on the transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{repo: s.repo.WithTx(tx), now: s.now}
}

// Validate checks a code against its activation, window, scope, usage-limit
// and minimum-amount constraints and returns the coupon when it is usable.
func (s *Service) Validate(ctx context.Context, code string, orderAmountCents int64, storeID *uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case !coupon.IsActive:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon is not active")
	case coupon.StartsAt != nil && now.Before(*coupon.StartsAt):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon is not yet active")
	case coupon.EndsAt != nil && now.After(*coupon.EndsAt):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon has expired")
	case coupon.StoreID != nil && (storeID == nil || *coupon.StoreID != *storeID):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon is not valid for this store")
	case coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon usage limit reached")
	case coupon.MinOrderCents != nil && orderAmountCents < *coupon.MinOrderCents:
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("order amount below coupon minimum of %d", *coupon.MinOrderCents))
	}

	return coupon, nil
}

// Apply validates the code for the user, records the usage row and bumps
// used_count, and returns the computed discount. A user who already
// redeemed this coupon gets CONFLICT.
func (s *Service) Apply(ctx context.Context, userID uuid.UUID, code string, orderAmountCents int64, storeID *uuid.UUID) (*Redemption, error) {
	coupon, err := s.Validate(ctx, code, orderAmountCents, storeID)
	if err != nil {
		return nil, err
	}

	used, err := s.repo.HasUsage(ctx, coupon.ID, userID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon already used")
	}

	if err := s.repo.Redeem(ctx, coupon.ID, userID); err != nil {
		return nil, err
	}

	return &Redemption{
		Coupon:        coupon,
		DiscountCents: Discount(coupon, orderAmountCents),
	}, nil
}

// Discount computes the discount a coupon grants on an order amount. A
// percentage coupon's value is basis points and the result floors; a fixed
// coupon never exceeds the order amount.
func Discount(coupon *models.Coupon, orderAmountCents int64) int64 {
	var discount int64
	switch coupon.DiscountType {
	case enums.CouponDiscountPercentage:
		discount = decimal.NewFromInt(orderAmountCents).
			Mul(decimal.NewFromInt(coupon.Value)).
			Div(decimal.NewFromInt(10000)).
			Floor().
			IntPart()
		if coupon.MaxDiscountCents != nil && discount > *coupon.MaxDiscountCents {
			discount = *coupon.MaxDiscountCents
		}
	case enums.CouponDiscountFixed:
		discount = coupon.Value
	}
	if discount > orderAmountCents {
		discount = orderAmountCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

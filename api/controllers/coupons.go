package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/api/responses"
	"github.com/dorceinnovative/dorce.ai-sub002/api/validators"
	couponsvc "github.com/dorceinnovative/dorce.ai-sub002/internal/coupon"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
)

// CouponStore is the slice of the coupon repository the HTTP layer needs.
type CouponStore interface {
	Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
}

type createCouponRequest struct {
	Code             string     `json:"code" validate:"required,min=3,max=32"`
	DiscountType     string     `json:"discount_type" validate:"required"`
	Value            int64      `json:"value" validate:"required,min=1"`
	MaxDiscountCents *int64     `json:"max_discount_cents,omitempty"`
	MinOrderCents    *int64     `json:"min_order_cents,omitempty"`
	StoreID          *uuid.UUID `json:"store_id,omitempty"`
	UsageLimit       int        `json:"usage_limit,omitempty" validate:"omitempty,min=0"`
	StartsAt         *time.Time `json:"starts_at,omitempty"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
}

// CouponCreate registers a discount code.
func CouponCreate(store CouponStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon store unavailable"))
			return
		}

		if _, err := identityFromContext(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discountType, err := enums.ParseCouponDiscountType(payload.DiscountType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type"))
			return
		}
		if discountType == enums.CouponDiscountPercentage && payload.Value > 10000 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "percentage value exceeds 10000 basis points"))
			return
		}
		if payload.StartsAt != nil && payload.EndsAt != nil && payload.EndsAt.Before(*payload.StartsAt) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "ends_at precedes starts_at"))
			return
		}

		coupon, err := store.Create(r.Context(), &models.Coupon{
			Code:             couponsvc.NormalizeCode(payload.Code),
			DiscountType:     discountType,
			Value:            payload.Value,
			MaxDiscountCents: payload.MaxDiscountCents,
			MinOrderCents:    payload.MinOrderCents,
			StoreID:          payload.StoreID,
			UsageLimit:       payload.UsageLimit,
			StartsAt:         payload.StartsAt,
			EndsAt:           payload.EndsAt,
			IsActive:         true,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, coupon)
	}
}

// CouponDetail returns a coupon by code. With an amount query parameter the
// response includes the discount the coupon would grant on that amount.
func CouponDetail(store CouponStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon store unavailable"))
			return
		}

		if _, err := identityFromContext(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		code := couponsvc.NormalizeCode(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required"))
			return
		}

		coupon, err := store.FindByCode(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body := map[string]any{"coupon": coupon}
		if raw := strings.TrimSpace(r.URL.Query().Get("amount")); raw != "" {
			amount, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || amount < 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid amount"))
				return
			}
			body["discount_cents"] = couponsvc.Discount(coupon, amount)
		}
		responses.WriteSuccess(w, body)
	}
}

package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/api/responses"
	"github.com/dorceinnovative/dorce.ai-sub002/api/validators"
	checkoutsvc "github.com/dorceinnovative/dorce.ai-sub002/internal/checkout"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/types"
)

// CheckoutService is the slice of the checkout orchestrator the HTTP layer
// needs.
type CheckoutService interface {
	Execute(ctx context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error)
	ConfirmPayment(ctx context.Context, reference string) ([]models.Order, error)
	OrdersForReference(ctx context.Context, reference string) ([]models.Order, error)
}

type checkoutRequest struct {
	PaymentMethod   string         `json:"payment_method" validate:"required"`
	CouponCode      string         `json:"coupon_code,omitempty"`
	ShippingAddress *types.Address `json:"shipping_address,omitempty"`
	BillingAddress  *types.Address `json:"billing_address,omitempty"`
	Notes           *string        `json:"notes,omitempty"`
}

type confirmPaymentRequest struct {
	Reference string `json:"reference" validate:"required"`
}

// CheckoutExecute turns the caller's cart into orders plus a pending payment.
func CheckoutExecute(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := identityFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		if payload.ShippingAddress != nil {
			if err := payload.ShippingAddress.Validate(); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address"))
				return
			}
		}

		result, err := svc.Execute(r.Context(), checkoutsvc.Input{
			UserID:          userID,
			PaymentMethod:   method,
			CouponCode:      strings.TrimSpace(payload.CouponCode),
			ShippingAddress: payload.ShippingAddress,
			BillingAddress:  payload.BillingAddress,
			Notes:           payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutConfirm verifies a gateway payment and marks the referenced orders
// paid. Safe to call more than once for the same reference.
func CheckoutConfirm(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		if _, err := identityFromContext(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.ConfirmPayment(r.Context(), strings.TrimSpace(payload.Reference))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"reference": payload.Reference,
			"orders":    orders,
		})
	}
}

// CheckoutFetch looks up the orders behind a payment reference so a client
// can recover after losing the Execute response.
func CheckoutFetch(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := identityFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reference := strings.TrimSpace(r.URL.Query().Get("reference"))
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference is required"))
			return
		}

		orders, err := svc.OrdersForReference(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filtered := ownOrders(orders, userID)
		if len(filtered) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no orders for reference"))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"reference": reference,
			"orders":    filtered,
		})
	}
}

func ownOrders(orders []models.Order, userID uuid.UUID) []models.Order {
	out := make([]models.Order, 0, len(orders))
	for _, order := range orders {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	return out
}

package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/api/responses"
	"github.com/dorceinnovative/dorce.ai-sub002/api/validators"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
)

// EscrowService is the slice of the escrow ledger the HTTP layer needs.
type EscrowService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.EscrowLedger, error)
	Release(ctx context.Context, id uuid.UUID, reason string) (*models.EscrowLedger, error)
	Refund(ctx context.Context, id uuid.UUID, reason string) (*models.EscrowLedger, error)
	AttachDispute(ctx context.Context, id, disputeID uuid.UUID) (*models.EscrowLedger, error)
}

type settleEscrowRequest struct {
	Reason string `json:"reason,omitempty"`
}

type disputeEscrowRequest struct {
	DisputeID uuid.UUID `json:"dispute_id" validate:"required"`
}

// EscrowDetail returns a single ledger entry.
func EscrowDetail(svc EscrowService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}

		if _, err := identityFromContext(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		escrowID, err := parseUUIDParam(r, "escrowID", "escrow id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ledger, err := svc.Get(r.Context(), escrowID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ledger)
	}
}

// EscrowRelease pays held funds out to the vendor side.
func EscrowRelease(svc EscrowService, logg *logger.Logger) http.HandlerFunc {
	return escrowSettlement(svc, logg, "released manually", func(ctx context.Context, svc EscrowService, id uuid.UUID, reason string) (*models.EscrowLedger, error) {
		return svc.Release(ctx, id, reason)
	})
}

// EscrowRefund returns held funds to the buyer side.
func EscrowRefund(svc EscrowService, logg *logger.Logger) http.HandlerFunc {
	return escrowSettlement(svc, logg, "refunded manually", func(ctx context.Context, svc EscrowService, id uuid.UUID, reason string) (*models.EscrowLedger, error) {
		return svc.Refund(ctx, id, reason)
	})
}

// EscrowDispute pins a dispute reference onto a held ledger entry.
func EscrowDispute(svc EscrowService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}

		if _, err := identityFromContext(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		escrowID, err := parseUUIDParam(r, "escrowID", "escrow id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload disputeEscrowRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ledger, err := svc.AttachDispute(r.Context(), escrowID, payload.DisputeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ledger)
	}
}

func escrowSettlement(svc EscrowService, logg *logger.Logger, defaultReason string, fn func(context.Context, EscrowService, uuid.UUID, string) (*models.EscrowLedger, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}

		if _, err := identityFromContext(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		escrowID, err := parseUUIDParam(r, "escrowID", "escrow id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload settleEscrowRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason := validators.SanitizeString(payload.Reason, 500)
		if reason == "" {
			reason = defaultReason
		}

		ledger, err := fn(r.Context(), svc, escrowID, reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ledger)
	}
}

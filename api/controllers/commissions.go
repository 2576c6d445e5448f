package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/api/responses"
	"github.com/dorceinnovative/dorce.ai-sub002/api/validators"
	commissionsvc "github.com/dorceinnovative/dorce.ai-sub002/internal/commission"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
)

// CommissionRuleWriter persists new fee rules.
type CommissionRuleWriter interface {
	CreateRule(ctx context.Context, rule *models.CommissionRule) (*models.CommissionRule, error)
}

// CommissionResolver answers what fee a hypothetical sale would carry.
type CommissionResolver interface {
	Resolve(ctx context.Context, storeID *uuid.UUID, category *enums.ProductCategory, amountCents int64) (*commissionsvc.Quote, error)
}

type createCommissionRuleRequest struct {
	Scope         string     `json:"scope" validate:"required"`
	StoreID       *uuid.UUID `json:"store_id,omitempty"`
	Category      *string    `json:"category,omitempty"`
	PercentBps    int64      `json:"percent_bps" validate:"min=0,max=10000"`
	FixedFeeCents int64      `json:"fixed_fee_cents" validate:"min=0"`
	StartsAt      *time.Time `json:"starts_at,omitempty"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
}

// CommissionRuleCreate registers a platform fee rule.
func CommissionRuleCreate(writer CommissionRuleWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if writer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission repository unavailable"))
			return
		}

		if _, err := identityFromContext(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createCommissionRuleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		scope, err := enums.ParseCommissionScope(payload.Scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope"))
			return
		}

		rule := &models.CommissionRule{
			Scope:         scope,
			PercentBps:    payload.PercentBps,
			FixedFeeCents: payload.FixedFeeCents,
			StartsAt:      payload.StartsAt,
			EndsAt:        payload.EndsAt,
			IsActive:      true,
		}

		switch scope {
		case enums.CommissionScopeStore:
			if payload.StoreID == nil || *payload.StoreID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "store_id is required for store scope"))
				return
			}
			rule.StoreID = payload.StoreID
		case enums.CommissionScopeCategory:
			if payload.Category == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "category is required for category scope"))
				return
			}
			category, err := enums.ParseProductCategory(*payload.Category)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			rule.Category = &category
		}

		created, err := writer.CreateRule(r.Context(), rule)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// CommissionQuote resolves the fee split a sale of the given amount would
// see, without recording anything.
func CommissionQuote(resolver CommissionResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resolver == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission resolver unavailable"))
			return
		}

		if _, err := identityFromContext(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rawAmount := strings.TrimSpace(r.URL.Query().Get("amount"))
		if rawAmount == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount is required"))
			return
		}
		amount, err := strconv.ParseInt(rawAmount, 10, 64)
		if err != nil || amount < 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid amount"))
			return
		}

		var storeID *uuid.UUID
		if raw := strings.TrimSpace(r.URL.Query().Get("store_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id"))
				return
			}
			storeID = &id
		}

		var category *enums.ProductCategory
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			parsed, err := enums.ParseProductCategory(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			category = &parsed
		}

		quote, err := resolver.Resolve(r.Context(), storeID, category, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body := map[string]any{
			"amount_cents":     amount,
			"commission_cents": quote.CommissionCents,
			"net_cents":        quote.NetCents,
		}
		if quote.RuleApplied != nil {
			body["rule_id"] = quote.RuleApplied.ID
			body["scope"] = quote.RuleApplied.Scope
		}
		responses.WriteSuccess(w, body)
	}
}

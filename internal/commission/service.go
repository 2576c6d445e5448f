package commission

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

// Quote is the outcome of resolving the platform fee for an amount.
// RuleApplied is nil when no rule matched, in which case the commission is
// zero and the vendor keeps everything.
type Quote struct {
	RuleApplied     *models.CommissionRule
	CommissionCents int64
	NetCents        int64
}

// Service resolves the commission rule for a sale and computes the split.
type Service struct {
	repo *Repository
	now  func() time.Time
}

// NewService builds the commission resolver.
func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	return &Service{repo: repo, now: time.Now}, nil
}

// WithTx returns a service whose persistence runs on the transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{repo: s.repo.WithTx(tx), now: s.now}
}

// Resolve finds the applicable rule (store scope beats category beats
// global; newest active rule wins inside a tier) and computes the split.
func (s *Service) Resolve(ctx context.Context, storeID *uuid.UUID, category *enums.ProductCategory, amountCents int64) (*Quote, error) {
	if amountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}

	rule, err := s.lookup(ctx, storeID, category)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return &Quote{CommissionCents: 0, NetCents: amountCents}, nil
	}

	commission := Compute(rule, amountCents)
	return &Quote{
		RuleApplied:     rule,
		CommissionCents: commission,
		NetCents:        amountCents - commission,
	}, nil
}

// RecordFor persists the audit row for an order settlement.
func (s *Service) RecordFor(ctx context.Context, orderID uuid.UUID, quote *Quote, baseCents int64) (*models.CommissionRecord, error) {
	record := &models.CommissionRecord{
		OrderID:               orderID,
		BaseAmountCents:       baseCents,
		CommissionAmountCents: quote.CommissionCents,
		NetAmountCents:        quote.NetCents,
	}
	if quote.RuleApplied != nil {
		record.RuleID = &quote.RuleApplied.ID
		scope := quote.RuleApplied.Scope
		record.Scope = &scope
	}
	return s.repo.CreateRecord(ctx, record)
}

func (s *Service) lookup(ctx context.Context, storeID *uuid.UUID, category *enums.ProductCategory) (*models.CommissionRule, error) {
	now := s.now()
	for _, scope := range []enums.CommissionScope{
		enums.CommissionScopeStore,
		enums.CommissionScopeCategory,
		enums.CommissionScopeGlobal,
	} {
		rules, err := s.repo.FindRulesForScope(ctx, scope, storeID, category)
		if err != nil {
			return nil, err
		}
		for i := range rules {
			if rules[i].ActiveWithin(now) {
				return &rules[i], nil
			}
		}
	}
	return nil, nil
}

// Compute derives the commission a rule takes from an amount:
// floor(amount * percentBps / 10000) + fixedFee, clamped to [0, amount].
func Compute(rule *models.CommissionRule, amountCents int64) int64 {
	commission := decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(rule.PercentBps)).
		Div(decimal.NewFromInt(10000)).
		Floor().
		IntPart()
	commission += rule.FixedFeeCents
	if commission > amountCents {
		commission = amountCents
	}
	if commission < 0 {
		commission = 0
	}
	return commission
}

package commission

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS commission_rules (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  scope TEXT NOT NULL,
  store_id TEXT,
  category TEXT,
  percent_bps INTEGER NOT NULL DEFAULT 0,
  fixed_fee_cents INTEGER NOT NULL DEFAULT 0,
  starts_at DATETIME,
  ends_at DATETIME,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS commission_records (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  order_id TEXT NOT NULL,
  rule_id TEXT,
  scope TEXT,
  base_amount_cents INTEGER NOT NULL,
  commission_amount_cents INTEGER NOT NULL,
  net_amount_cents INTEGER NOT NULL,
  created_at DATETIME
);
`

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := "file:commission_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec(testSchema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func seedRule(t *testing.T, db *gorm.DB, rule models.CommissionRule) models.CommissionRule {
	t.Helper()
	rule.IsActive = true
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	return rule
}

func TestResolveScopePriority(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	storeID := uuid.New()
	category := enums.ProductCategoryElectronics

	seedRule(t, db, models.CommissionRule{Scope: enums.CommissionScopeGlobal, PercentBps: 1000})
	seedRule(t, db, models.CommissionRule{Scope: enums.CommissionScopeCategory, Category: &category, PercentBps: 800})
	storeRule := seedRule(t, db, models.CommissionRule{Scope: enums.CommissionScopeStore, StoreID: &storeID, PercentBps: 500})

	quote, err := svc.Resolve(ctx, &storeID, &category, 10000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.RuleApplied == nil || quote.RuleApplied.ID != storeRule.ID {
		t.Fatalf("store rule must win: %+v", quote.RuleApplied)
	}
	if quote.CommissionCents != 500 || quote.NetCents != 9500 {
		t.Fatalf("split: %+v", quote)
	}

	// Without a store match the category tier applies.
	otherStore := uuid.New()
	quote, err = svc.Resolve(ctx, &otherStore, &category, 10000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.CommissionCents != 800 {
		t.Fatalf("category rule must apply, got %d", quote.CommissionCents)
	}

	// Neither store nor category: global.
	quote, err = svc.Resolve(ctx, nil, nil, 10000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.CommissionCents != 1000 {
		t.Fatalf("global rule must apply, got %d", quote.CommissionCents)
	}
}

func TestResolveNoRuleYieldsZero(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	quote, err := svc.Resolve(context.Background(), nil, nil, 12345)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.RuleApplied != nil || quote.CommissionCents != 0 || quote.NetCents != 12345 {
		t.Fatalf("expected zero commission: %+v", quote)
	}
}

func TestResolveSkipsRulesOutsideWindow(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	past := time.Now().Add(-time.Hour)
	earlier := time.Now().Add(-2 * time.Hour)

	seedRule(t, db, models.CommissionRule{Scope: enums.CommissionScopeGlobal, PercentBps: 9000, StartsAt: &earlier, EndsAt: &past})
	seedRule(t, db, models.CommissionRule{Scope: enums.CommissionScopeGlobal, PercentBps: 1000})

	quote, err := svc.Resolve(context.Background(), nil, nil, 10000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.CommissionCents != 1000 {
		t.Fatalf("expired rule must be skipped, got %d", quote.CommissionCents)
	}
}

func TestComputeClamps(t *testing.T) {
	t.Parallel()

	rule := &models.CommissionRule{PercentBps: 10000, FixedFeeCents: 500}
	if got := Compute(rule, 1000); got != 1000 {
		t.Fatalf("commission must never exceed amount, got %d", got)
	}

	rule = &models.CommissionRule{PercentBps: 333}
	// 999 * 333 / 10000 = 33.2667, floors to 33.
	if got := Compute(rule, 999); got != 33 {
		t.Fatalf("commission must floor, got %d", got)
	}

	rule = &models.CommissionRule{PercentBps: 250, FixedFeeCents: 100}
	if got := Compute(rule, 10000); got != 350 {
		t.Fatalf("percent plus fixed: got %d", got)
	}
}

func TestRecordFor(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	storeID := uuid.New()
	rule := seedRule(t, db, models.CommissionRule{Scope: enums.CommissionScopeStore, StoreID: &storeID, PercentBps: 1000})

	quote, err := svc.Resolve(ctx, &storeID, nil, 10000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	orderID := uuid.New()
	record, err := svc.RecordFor(ctx, orderID, quote, 10000)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if record.RuleID == nil || *record.RuleID != rule.ID {
		t.Fatalf("record must reference the rule: %+v", record)
	}
	if record.CommissionAmountCents+record.NetAmountCents != record.BaseAmountCents {
		t.Fatalf("record amounts must balance: %+v", record)
	}
}

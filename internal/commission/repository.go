package commission

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
)

// Repository persists commission rules and settlement records.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// CreateRule inserts a commission rule.
func (r *Repository) CreateRule(ctx context.Context, rule *models.CommissionRule) (*models.CommissionRule, error) {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert commission rule")
	}
	return rule, nil
}

// FindRuleForScope returns the most recently created active rule matching
// the scope and its key, or nil when none exists. Window filtering happens
// in the resolver so clock handling stays in one place.
func (r *Repository) FindRulesForScope(ctx context.Context, scope enums.CommissionScope, storeID *uuid.UUID, category *enums.ProductCategory) ([]models.CommissionRule, error) {
	q := r.db.WithContext(ctx).
		Where("scope = ? AND is_active = ?", scope, true)
	switch scope {
	case enums.CommissionScopeStore:
		if storeID == nil {
			return nil, nil
		}
		q = q.Where("store_id = ?", *storeID)
	case enums.CommissionScopeCategory:
		if category == nil {
			return nil, nil
		}
		q = q.Where("category = ?", *category)
	}

	var rules []models.CommissionRule
	if err := q.Order("created_at DESC").Find(&rules).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission rules")
	}
	return rules, nil
}

// CreateRecord persists the settlement audit row for an order.
func (r *Repository) CreateRecord(ctx context.Context, record *models.CommissionRecord) (*models.CommissionRecord, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert commission record")
	}
	return record, nil
}

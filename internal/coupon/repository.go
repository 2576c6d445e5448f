package coupon

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/dorceinnovative/dorce.ai-sub002/pkg/db"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
)

// Repository persists coupons and their usage ledger.
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

// Create inserts a coupon. Codes are normalized upper-case so lookups are
// case-insensitive.
func (r *Repository) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	coupon.Code = NormalizeCode(coupon.Code)
	if err := r.db.WithContext(ctx).Create(coupon).Error; err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("coupon code %s already exists", coupon.Code))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert coupon")
	}
	return coupon, nil
}

// FindByCode loads a coupon by its normalized code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		First(&coupon, "code = ?", NormalizeCode(code)).
		Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return &coupon, nil
}

// HasUsage reports whether the user already redeemed the coupon.
func (r *Repository) HasUsage(ctx context.Context, couponID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).
		Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usage")
	}
	return count > 0, nil
}

// Redeem records the usage row and bumps used_count in the same statement
// scope. The unique index on (coupon_id, user_id) closes the double-redeem
// race; a violation surfaces as CONFLICT.
func (r *Repository) Redeem(ctx context.Context, couponID, userID uuid.UUID) error {
	usage := models.CouponUsage{CouponID: couponID, UserID: userID}
	if err := r.db.WithContext(ctx).Create(&usage).Error; err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "coupon already used")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert coupon usage")
	}

	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", couponID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment coupon usage count")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return nil
}

// NormalizeCode upper-cases and trims a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

package escrow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pkgdb "github.com/dorceinnovative/dorce.ai-sub002/pkg/db"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
)

// Repository persists escrow ledgers.
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

// Create inserts a held ledger. Each order gets exactly one.
func (r *Repository) Create(ctx context.Context, ledger *models.EscrowLedger) (*models.EscrowLedger, error) {
	if err := r.db.WithContext(ctx).Create(ledger).Error; err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("escrow already exists for order %s", ledger.OrderID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert escrow ledger")
	}
	return ledger, nil
}

// FindByID loads a ledger.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EscrowLedger, error) {
	return r.find(ctx, "id = ?", id, false)
}

// FindByIDLocked loads a ledger under a row lock so the settlement math
// runs against a stable row. The lock only applies on Postgres; sqlite
// serializes writers on its own.
func (r *Repository) FindByIDLocked(ctx context.Context, id uuid.UUID) (*models.EscrowLedger, error) {
	return r.find(ctx, "id = ?", id, true)
}

// FindByOrderIDLocked loads the ledger for an order under a row lock.
func (r *Repository) FindByOrderIDLocked(ctx context.Context, orderID uuid.UUID) (*models.EscrowLedger, error) {
	return r.find(ctx, "order_id = ?", orderID, true)
}

func (r *Repository) find(ctx context.Context, query string, arg uuid.UUID, locked bool) (*models.EscrowLedger, error) {
	q := r.db.WithContext(ctx)
	if locked && r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var ledger models.EscrowLedger
	if err := q.First(&ledger, query, arg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow ledger not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow ledger")
	}
	return &ledger, nil
}

// Save writes the full ledger row back.
func (r *Repository) Save(ctx context.Context, ledger *models.EscrowLedger) error {
	if err := r.db.WithContext(ctx).Save(ledger).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save escrow ledger")
	}
	return nil
}

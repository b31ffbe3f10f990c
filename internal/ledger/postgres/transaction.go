package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	ledgerdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/ledger"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
)

const statusPending = "pending"

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *ledgerdm.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*ledgerdm.Transaction, error) {
	var out ledgerdm.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (r *TransactionRepository) LockByID(ctx context.Context, id string) (*ledgerdm.Transaction, error) {
	var out ledgerdm.Transaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&out).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (r *TransactionRepository) ApprovedForCustody(ctx context.Context, custodyID string) ([]*ledgerdm.Transaction, error) {
	var out []*ledgerdm.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND (custody_id = ? OR source_custody_id = ?)", "approved", custodyID, custodyID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *TransactionRepository) ListForCustody(ctx context.Context, custodyID string, limit, offset int) ([]*ledgerdm.Transaction, error) {
	var out []*ledgerdm.Transaction
	err := r.db.WithContext(ctx).
		Where("custody_id = ? OR source_custody_id = ?", custodyID, custodyID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

func (r *TransactionRepository) ListPending(ctx context.Context, companyID string) ([]*ledgerdm.Transaction, error) {
	var out []*ledgerdm.Transaction
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND status = ?", companyID, statusPending).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// Decide only touches rows that are still pending.
func (r *TransactionRepository) Decide(ctx context.Context, id, status, decidedBy, comment string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&ledgerdm.Transaction{}).
		Where("id = ? AND status = ?", id, statusPending).
		Updates(map[string]interface{}{
			"status":           status,
			"decided_by":       decidedBy,
			"decision_comment": comment,
			"decided_at":       at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return uow.ErrStale
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uow.ErrNotFound
	}
	return err
}

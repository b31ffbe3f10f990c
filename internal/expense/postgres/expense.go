package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	expensedm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/expense"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
)

// ExpenseRepository implements uow.ExpenseRepository using GORM
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, exp *expensedm.Expense) error {
	return r.db.WithContext(ctx).Create(exp).Error
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*expensedm.Expense, error) {
	var exp expensedm.Expense
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&exp).Error; err != nil {
		return nil, notFound(err)
	}
	return &exp, nil
}

func (r *ExpenseRepository) LockByID(ctx context.Context, id string) (*expensedm.Expense, error) {
	var exp expensedm.Expense
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&exp).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &exp, nil
}

func (r *ExpenseRepository) Save(ctx context.Context, exp *expensedm.Expense) error {
	exp.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(exp).Error
}

// List retrieves expenses with pagination, newest first
func (r *ExpenseRepository) List(ctx context.Context, f uow.ExpenseFilter) ([]*expensedm.Expense, error) {
	q := r.db.WithContext(ctx).Where("company_id = ?", f.CompanyID)
	if f.CreatedBy != "" {
		q = q.Where("created_by = ?", f.CreatedBy)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	var expenses []*expensedm.Expense
	err := q.Order("created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&expenses).Error
	return expenses, err
}

// Transition moves an expense between statuses only if it is still in the expected one.
func (r *ExpenseRepository) Transition(ctx context.Context, id, from, to string, fields map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).Model(&expensedm.Expense{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return uow.ErrStale
	}
	return nil
}

type ApprovalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

func (r *ApprovalRepository) Create(ctx context.Context, a *expensedm.Approval) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*expensedm.Approval, error) {
	var a expensedm.Approval
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *ApprovalRepository) LockByID(ctx context.Context, id string) (*expensedm.Approval, error) {
	var a expensedm.Approval
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *ApprovalRepository) GetByExpenseID(ctx context.Context, expenseID string) (*expensedm.Approval, error) {
	var a expensedm.Approval
	if err := r.db.WithContext(ctx).Where("expense_id = ?", expenseID).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListPending is FIFO for approvers.
func (r *ApprovalRepository) ListPending(ctx context.Context, companyID string) ([]*expensedm.Approval, error) {
	var out []*expensedm.Approval
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND status = ?", companyID, "pending").
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *ApprovalRepository) Decide(ctx context.Context, id, status, decidedBy, comment string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&expensedm.Approval{}).
		Where("id = ? AND status = ?", id, "pending").
		Updates(map[string]interface{}{
			"status":     status,
			"decided_by": decidedBy,
			"comment":    comment,
			"decided_at": at,
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

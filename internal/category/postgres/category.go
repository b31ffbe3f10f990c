package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	categorydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/category"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context, companyID string, activeOnly bool) ([]*categorydm.ExpenseCategory, error) {
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []*categorydm.ExpenseCategory
	err := q.Order("name ASC").Find(&out).Error
	return out, err
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*categorydm.ExpenseCategory, error) {
	var out categorydm.ExpenseCategory
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, uow.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *categorydm.ExpenseCategory) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CategoryRepository) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&categorydm.ExpenseCategory{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": active, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return uow.ErrNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	policydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/policy"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
)

type PolicyRepository struct {
	db *gorm.DB
}

func NewPolicyRepository(db *gorm.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func (r *PolicyRepository) List(ctx context.Context, companyID string, activeOnly bool) ([]*policydm.Policy, error) {
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []*policydm.Policy
	err := q.Order("priority ASC").Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *PolicyRepository) GetByID(ctx context.Context, id string) (*policydm.Policy, error) {
	var out policydm.Policy
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, uow.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *PolicyRepository) Create(ctx context.Context, p *policydm.Policy) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PolicyRepository) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&policydm.Policy{}).
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

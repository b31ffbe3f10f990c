package postgres

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	customerdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/customer"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
)

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// CreateIfAbsent relies on the unique (company_id, lower(name)) index. DO NOTHING leaves an
// enclosing transaction usable, unlike a unique violation.
func (r *CustomerRepository) CreateIfAbsent(ctx context.Context, c *customerdm.Customer) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customerdm.Customer, error) {
	var out customerdm.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, uow.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// FindByName matches case-insensitively within one company.
func (r *CustomerRepository) FindByName(ctx context.Context, companyID, name string) (*customerdm.Customer, error) {
	var out customerdm.Customer
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND LOWER(name) = ?", companyID, strings.ToLower(strings.TrimSpace(name))).
		Order("created_at ASC").
		First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, uow.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *CustomerRepository) List(ctx context.Context, companyID, query string, limit int) ([]*customerdm.Customer, error) {
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if query = strings.TrimSpace(query); query != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(query)+"%")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []*customerdm.Customer
	err := q.Order("name ASC").Limit(limit).Find(&out).Error
	return out, err
}

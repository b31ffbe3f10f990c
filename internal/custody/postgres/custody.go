package postgres

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	custodydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/custody"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
)

type CustodyRepository struct {
	db *gorm.DB
}

func NewCustodyRepository(db *gorm.DB) *CustodyRepository {
	return &CustodyRepository{db: db}
}

func (r *CustodyRepository) Create(ctx context.Context, c *custodydm.Custody) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CustodyRepository) GetByID(ctx context.Context, id string) (*custodydm.Custody, error) {
	var out custodydm.Custody
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (r *CustodyRepository) LockByIDs(ctx context.Context, ids ...string) ([]*custodydm.Custody, error) {
	sorted := uniqueSorted(ids)
	out := make([]*custodydm.Custody, 0, len(sorted))
	for _, id := range sorted {
		var c custodydm.Custody
		err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&c).Error
		if err != nil {
			return nil, notFound(err)
		}
		out = append(out, &c)
	}
	return out, nil
}

func (r *CustodyRepository) FindActiveByUser(ctx context.Context, companyID, userID string, forUpdate bool) (*custodydm.Custody, error) {
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var out custodydm.Custody
	err := q.Where("company_id = ? AND user_id = ? AND status = ?", companyID, userID, "active").
		First(&out).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (r *CustodyRepository) ListByCompany(ctx context.Context, companyID, userID string) ([]*custodydm.Custody, error) {
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var out []*custodydm.Custody
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *CustodyRepository) ListActive(ctx context.Context) ([]*custodydm.Custody, error) {
	var out []*custodydm.Custody
	err := r.db.WithContext(ctx).Where("status = ?", "active").Order("id ASC").Find(&out).Error
	return out, err
}

func (r *CustodyRepository) TransitionStatus(ctx context.Context, id, from, to string, at time.Time) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	if to == "closed" {
		updates["closed_at"] = at
	}
	res := r.db.WithContext(ctx).Model(&custodydm.Custody{}).
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

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uow.ErrNotFound
	}
	return err
}

package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	memberdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/member"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) GetByID(ctx context.Context, id string) (*memberdm.Member, error) {
	var m memberdm.Member
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *MemberRepository) GetByEmail(ctx context.Context, email string) (*memberdm.Member, error) {
	var m memberdm.Member
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *MemberRepository) List(ctx context.Context, companyID string, limit, offset int) ([]*memberdm.Member, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []*memberdm.Member
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("full_name ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

// ActiveIDsByRoles returns the ids of active members holding any of the roles.
func (r *MemberRepository) ActiveIDsByRoles(ctx context.Context, companyID string, roles []string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&memberdm.Member{}).
		Where("company_id = ? AND is_active = ? AND role IN ?", companyID, true, roles).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *MemberRepository) Create(ctx context.Context, m *memberdm.Member) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MemberRepository) UpdateRole(ctx context.Context, id, role string) error {
	res := r.db.WithContext(ctx).Model(&memberdm.Member{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"role": role, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return uow.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uow.ErrNotFound
	}
	return err
}

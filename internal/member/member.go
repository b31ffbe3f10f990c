package member

import (
	"context"
	"time"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	memberdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/member"
)

// Member is a user inside one company.
type Member struct {
	ID           string             `json:"id"`
	CompanyID    string             `json:"company_id"`
	Email        string             `json:"email"`
	FullName     string             `json:"full_name"`
	PasswordHash string             `json:"-"`
	Role         authz.Role         `json:"role"`
	IsActive     bool               `json:"is_active"`
	Capabilities []authz.Capability `json:"capabilities,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func (m *Member) Actor() authz.Actor {
	return authz.Actor{UserID: m.ID, CompanyID: m.CompanyID, Role: m.Role, Email: m.Email}
}

type RepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*memberdm.Member, error)
	GetByEmail(ctx context.Context, email string) (*memberdm.Member, error)
	List(ctx context.Context, companyID string, limit, offset int) ([]*memberdm.Member, error)
	Create(ctx context.Context, m *memberdm.Member) error
	UpdateRole(ctx context.Context, id, role string) error
}

func ToDataModel(m *Member) *memberdm.Member {
	return &memberdm.Member{
		ID:           m.ID,
		CompanyID:    m.CompanyID,
		Email:        m.Email,
		FullName:     m.FullName,
		PasswordHash: m.PasswordHash,
		Role:         string(m.Role),
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func FromDataModel(m *memberdm.Member) *Member {
	return &Member{
		ID:           m.ID,
		CompanyID:    m.CompanyID,
		Email:        m.Email,
		FullName:     m.FullName,
		PasswordHash: m.PasswordHash,
		Role:         authz.Role(m.Role),
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

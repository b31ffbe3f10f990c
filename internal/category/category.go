package category

import (
	"context"
	"time"

	categorydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/category"
)

type Category struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type RepositoryAPI interface {
	List(ctx context.Context, companyID string, activeOnly bool) ([]*categorydm.ExpenseCategory, error)
	GetByID(ctx context.Context, id string) (*categorydm.ExpenseCategory, error)
	Create(ctx context.Context, c *categorydm.ExpenseCategory) error
	SetActive(ctx context.Context, id string, active bool) error
}

func ToDataModel(c *Category) *categorydm.ExpenseCategory {
	return &categorydm.ExpenseCategory{
		ID:          c.ID,
		CompanyID:   c.CompanyID,
		Name:        c.Name,
		Description: c.Description,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func FromDataModel(c *categorydm.ExpenseCategory) *Category {
	return &Category{
		ID:          c.ID,
		CompanyID:   c.CompanyID,
		Name:        c.Name,
		Description: c.Description,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

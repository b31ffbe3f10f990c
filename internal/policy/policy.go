// Package policy keeps the company's expense rules. Active policies are evaluated in priority
// order whenever an expense is drafted, edited or submitted.
package policy

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	policydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/policy"
	"github.com/frahmantamala/custody-ledger/internal/core/money"
)

type Policy struct {
	ID          string         `json:"id"`
	CompanyID   string         `json:"-"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Rules       policydm.Rules `json:"policy_rules"`
	Priority    int            `json:"priority"`
	IsActive    bool           `json:"is_active"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type RepositoryAPI interface {
	List(ctx context.Context, companyID string, activeOnly bool) ([]*policydm.Policy, error)
	GetByID(ctx context.Context, id string) (*policydm.Policy, error)
	Create(ctx context.Context, p *policydm.Policy) error
	SetActive(ctx context.Context, id string, active bool) error
}

// Set is the active policies of one company, lowest priority number first.
type Set []*Policy

// Check returns the first rule the expense breaks. Rules that only shape the approval flow
// (auto approval, approval thresholds) are informational here: every submitted expense is
// decided by a second member.
func (s Set) Check(categoryID string, amount decimal.Decimal, hasAttachment bool) error {
	for _, p := range s {
		r := p.Rules
		if slices.Contains(r.BlockedCategories, categoryID) ||
			(len(r.AllowedCategories) > 0 && !slices.Contains(r.AllowedCategories, categoryID)) {
			return apperrors.NewValidationFieldError("category_id",
				"category is not allowed by policy "+p.Name, apperrors.ErrCodeCategoryBlocked)
		}
		if r.RequireAttachmentAbove != nil && !hasAttachment && amount.GreaterThan(*r.RequireAttachmentAbove) {
			return apperrors.NewValidationFieldError("attachment_path",
				"an attachment is required above "+money.Format(*r.RequireAttachmentAbove)+" by policy "+p.Name,
				apperrors.ErrCodeAttachRequired)
		}
	}
	return nil
}

func ToDataModel(p *Policy) *policydm.Policy {
	return &policydm.Policy{
		ID:          p.ID,
		CompanyID:   p.CompanyID,
		Name:        p.Name,
		Description: p.Description,
		Rules:       p.Rules,
		Priority:    p.Priority,
		IsActive:    p.IsActive,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func FromDataModel(p *policydm.Policy) *Policy {
	return &Policy{
		ID:          p.ID,
		CompanyID:   p.CompanyID,
		Name:        p.Name,
		Description: p.Description,
		Rules:       p.Rules,
		Priority:    p.Priority,
		IsActive:    p.IsActive,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

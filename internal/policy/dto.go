package policy

import "github.com/shopspring/decimal"

type RulesDTO struct {
	AutoApproveAmount        *decimal.Decimal `json:"auto_approve_amount" validate:"omitempty,money"`
	RequireAttachmentAbove   *decimal.Decimal `json:"require_attachment_above" validate:"omitempty,money"`
	RequireApproval          *bool            `json:"require_approval"`
	MaxAmountWithoutApproval *decimal.Decimal `json:"max_amount_without_approval" validate:"omitempty,money"`
	AllowedCategories        []string         `json:"allowed_categories" validate:"max=100,dive,required,max=36"`
	BlockedCategories        []string         `json:"blocked_categories" validate:"max=100,dive,required,max=36"`
}

type CreatePolicyDTO struct {
	Name        string   `json:"name" validate:"required,min=3,max=100"`
	Description string   `json:"description" validate:"max=500"`
	Rules       RulesDTO `json:"policy_rules"`
	Priority    int      `json:"priority" validate:"gte=0"`
	IsActive    *bool    `json:"is_active"`
}

type PoliciesResponse struct {
	Policies []*Policy `json:"policies"`
}

package policy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rules is stored as one JSON document per policy.
type Rules struct {
	AutoApproveAmount        *decimal.Decimal `json:"auto_approve_amount,omitempty"`
	RequireAttachmentAbove   *decimal.Decimal `json:"require_attachment_above,omitempty"`
	RequireApproval          *bool            `json:"require_approval,omitempty"`
	MaxAmountWithoutApproval *decimal.Decimal `json:"max_amount_without_approval,omitempty"`
	AllowedCategories        []string         `json:"allowed_categories,omitempty"`
	BlockedCategories        []string         `json:"blocked_categories,omitempty"`
}

type Policy struct {
	ID          string    `gorm:"primaryKey;size:36"`
	CompanyID   string    `gorm:"column:company_id;size:36;not null;index:idx_policies_company_priority,priority:1"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description"`
	Rules       Rules     `gorm:"column:policy_rules;serializer:json;not null"`
	Priority    int       `gorm:"column:priority;not null;index:idx_policies_company_priority,priority:2"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedBy   string    `gorm:"column:created_by;size:36;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Policy) TableName() string { return "policies" }

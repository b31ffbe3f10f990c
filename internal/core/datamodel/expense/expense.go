package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

type Expense struct {
	ID             string          `gorm:"primaryKey;size:36"`
	CompanyID      string          `gorm:"column:company_id;size:36;not null;index"`
	CreatedBy      string          `gorm:"column:created_by;size:36;not null;index"`
	CustodyID      *string         `gorm:"column:custody_id;size:36"`
	CategoryID     string          `gorm:"column:category_id;size:36;not null"`
	ProjectID      *string         `gorm:"column:project_id;size:36"`
	CostCenterID   *string         `gorm:"column:cost_center_id;size:36"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null"`
	Currency       string          `gorm:"column:currency;size:3;not null"`
	ExpenseDate    time.Time       `gorm:"column:expense_date;not null"`
	Description    string          `gorm:"column:description;not null"`
	Notes          string          `gorm:"column:notes"`
	AttachmentPath *string         `gorm:"column:attachment_path"`
	Status         string          `gorm:"column:status;size:16;not null;index"`
	SubmittedAt    *time.Time      `gorm:"column:submitted_at"`
	DecidedAt      *time.Time      `gorm:"column:decided_at"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Expense) TableName() string { return "expenses" }

// Approval exists once per submitted expense.
type Approval struct {
	ID        string     `gorm:"primaryKey;size:36"`
	CompanyID string     `gorm:"column:company_id;size:36;not null;index"`
	ExpenseID string     `gorm:"column:expense_id;size:36;not null;uniqueIndex"`
	Status    string     `gorm:"column:status;size:16;not null;index"`
	Comment   string     `gorm:"column:comment"`
	DecidedBy *string    `gorm:"column:decided_by;size:36"`
	DecidedAt *time.Time `gorm:"column:decided_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Approval) TableName() string { return "approvals" }

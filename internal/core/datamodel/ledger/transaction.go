package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one row of the custody ledger. Amount is always positive; its sign is implied
// by Type and by which custody column references the custody being replayed.
type Transaction struct {
	ID              string          `gorm:"primaryKey;size:36"`
	CompanyID       string          `gorm:"column:company_id;size:36;not null;index"`
	CustodyID       string          `gorm:"column:custody_id;size:36;not null;index"`
	SourceCustodyID *string         `gorm:"column:source_custody_id;size:36;index"`
	Type            string          `gorm:"column:type;size:24;not null"`
	Source          string          `gorm:"column:source;size:24;not null"`
	Status          string          `gorm:"column:status;size:16;not null;index"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null"`
	FromUserID      *string         `gorm:"column:from_user_id;size:36"`
	ToUserID        *string         `gorm:"column:to_user_id;size:36"`
	CustomerID      *string         `gorm:"column:customer_id;size:36"`
	AttachmentPath  *string         `gorm:"column:attachment_path"`
	ExpenseID       *string         `gorm:"column:expense_id;size:36;uniqueIndex"`
	Notes           string          `gorm:"column:notes"`
	DecisionComment string          `gorm:"column:decision_comment"`
	CreatedBy       string          `gorm:"column:created_by;size:36;not null"`
	DecidedBy       *string         `gorm:"column:decided_by;size:36"`
	DecidedAt       *time.Time      `gorm:"column:decided_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Transaction) TableName() string { return "custody_transactions" }

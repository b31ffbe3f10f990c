package custody

import (
	"time"

	"github.com/shopspring/decimal"
)

// Custody has no balance column. Balances are always replayed from approved transactions.
type Custody struct {
	ID            string          `gorm:"primaryKey;size:36"`
	CompanyID     string          `gorm:"column:company_id;size:36;not null;index:idx_custody_company_user"`
	UserID        string          `gorm:"column:user_id;size:36;not null;index:idx_custody_company_user"`
	InitialAmount decimal.Decimal `gorm:"column:initial_amount;type:numeric(20,2);not null"`
	Currency      string          `gorm:"column:currency;size:3;not null"`
	Status        string          `gorm:"column:status;size:16;not null;index"`
	Notes         string          `gorm:"column:notes"`
	CreatedBy     string          `gorm:"column:created_by;size:36;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	ClosedAt      *time.Time      `gorm:"column:closed_at"`
}

func (Custody) TableName() string { return "custodies" }

const (
	StatusActive = "active"
	StatusFrozen = "frozen"
	StatusClosed = "closed"
)

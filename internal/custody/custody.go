package custody

import (
	"time"

	"github.com/shopspring/decimal"

	custodydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/custody"
	"github.com/frahmantamala/custody-ledger/internal/core/money"
)

const (
	StatusActive = custodydm.StatusActive
	StatusFrozen = custodydm.StatusFrozen
	StatusClosed = custodydm.StatusClosed

	InitialFundingNote = "Initial custody funding"
)

type Custody struct {
	ID            string          `json:"id"`
	CompanyID     string          `json:"company_id"`
	UserID        string          `json:"user_id"`
	InitialAmount decimal.Decimal `json:"initial_amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
}

// transitions lists the allowed lifecycle moves. closed is terminal.
var transitions = map[string][]string{
	StatusActive: {StatusFrozen, StatusClosed},
	StatusFrozen: {StatusActive, StatusClosed},
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (c *Custody) IsActive() bool {
	return c.Status == StatusActive
}

type CustodyResponse struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	InitialAmount      string     `json:"initial_amount"`
	Balance            string     `json:"balance"`
	IntegrityViolation bool       `json:"integrity_violation,omitempty"`
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	Notes              string     `json:"notes,omitempty"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`
}

func (c *Custody) ToResponse(balance decimal.Decimal) CustodyResponse {
	return CustodyResponse{
		ID:            c.ID,
		UserID:        c.UserID,
		InitialAmount: money.Format(c.InitialAmount),
		Balance:       money.Format(balance),
		Currency:      c.Currency,
		Status:        c.Status,
		Notes:         c.Notes,
		CreatedBy:     c.CreatedBy,
		CreatedAt:     c.CreatedAt,
		ClosedAt:      c.ClosedAt,
	}
}

func ToDataModel(c *Custody) *custodydm.Custody {
	return &custodydm.Custody{
		ID:            c.ID,
		CompanyID:     c.CompanyID,
		UserID:        c.UserID,
		InitialAmount: c.InitialAmount,
		Currency:      c.Currency,
		Status:        c.Status,
		Notes:         c.Notes,
		CreatedBy:     c.CreatedBy,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		ClosedAt:      c.ClosedAt,
	}
}

func FromDataModel(c *custodydm.Custody) *Custody {
	return &Custody{
		ID:            c.ID,
		CompanyID:     c.CompanyID,
		UserID:        c.UserID,
		InitialAmount: c.InitialAmount,
		Currency:      c.Currency,
		Status:        c.Status,
		Notes:         c.Notes,
		CreatedBy:     c.CreatedBy,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		ClosedAt:      c.ClosedAt,
	}
}

package custody

import "github.com/shopspring/decimal"

type CreateCustodyDTO struct {
	UserID        string          `json:"user_id" validate:"required"`
	InitialAmount decimal.Decimal `json:"initial_amount" validate:"money"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
	Notes         string          `json:"notes" validate:"max=1000"`
	// SeedAsTopup books the initial amount as an approved top-up instead of initial_amount.
	SeedAsTopup bool `json:"seed_as_topup"`
}

type StatusChangeDTO struct {
	Reason string `json:"reason" validate:"max=500"`
}

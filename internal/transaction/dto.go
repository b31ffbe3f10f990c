package transaction

import "github.com/shopspring/decimal"

type TopupRequestDTO struct {
	ToUserID string          `json:"to_user_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount" validate:"amount"`
	Notes    string          `json:"notes" validate:"max=1000"`
}

type TransferRequestDTO struct {
	ToUserID string          `json:"to_user_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount" validate:"amount"`
	Notes    string          `json:"notes" validate:"max=1000"`
}

type DecisionDTO struct {
	Approve *bool  `json:"approve" validate:"required"`
	Comment string `json:"comment" validate:"max=1000"`
}

type CustomerPaymentDTO struct {
	Amount         decimal.Decimal `json:"amount" validate:"amount"`
	CustomerID     string          `json:"customer_id"`
	CustomerName   string          `json:"customer_name" validate:"max=200"`
	CustomerPhone  string          `json:"customer_phone" validate:"max=32"`
	AttachmentPath string          `json:"attachment_path" validate:"required"`
	Notes          string          `json:"notes" validate:"max=1000"`
}

package expense

import (
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/custody-ledger/internal/core/common/validation"
)

// ExpenseDTO is the body of both create and update. Update replaces every field.
type ExpenseDTO struct {
	CategoryID     string          `json:"category_id" validate:"required"`
	ProjectID      string          `json:"project_id" validate:"max=36"`
	CostCenterID   string          `json:"cost_center_id" validate:"max=36"`
	Amount         decimal.Decimal `json:"amount" validate:"amount"`
	Currency       string          `json:"currency" validate:"omitempty,len=3"`
	ExpenseDate    validation.Date `json:"expense_date" validate:"required,notfuture"`
	Description    string          `json:"description" validate:"required,min=3,max=500"`
	Notes          string          `json:"notes" validate:"max=1000"`
	AttachmentPath string          `json:"attachment_path"`
}

type ApprovalDecisionDTO struct {
	Action  string `json:"action" validate:"required,oneof=approve reject"`
	Comment string `json:"comment" validate:"max=1000"`
}

type ListQuery struct {
	Status string
	Limit  int
	Offset int
}

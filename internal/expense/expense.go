// Package expense runs the draft -> submitted -> approved|rejected flow. Approval books the
// expense against the submitter's custody.
package expense

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/custody-ledger/internal/core/common/validation"
	expensedm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/expense"
	"github.com/frahmantamala/custody-ledger/internal/core/money"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Expense struct {
	ID             string
	CompanyID      string
	CreatedBy      string
	CustodyID      *string
	CategoryID     string
	ProjectID      *string
	CostCenterID   *string
	Amount         decimal.Decimal
	Currency       string
	ExpenseDate    time.Time
	Description    string
	Notes          string
	AttachmentPath *string
	Status         Status
	SubmittedAt    *time.Time
	DecidedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (e *Expense) IsDraft() bool {
	return e.Status == StatusDraft
}

type Approval struct {
	ID        string
	CompanyID string
	ExpenseID string
	Status    ApprovalStatus
	Comment   string
	DecidedBy *string
	DecidedAt *time.Time
	CreatedAt time.Time
}

type ExpenseResponse struct {
	ID             string          `json:"id"`
	CreatedBy      string          `json:"created_by"`
	CustodyID      *string         `json:"custody_id,omitempty"`
	CategoryID     string          `json:"category_id"`
	ProjectID      *string         `json:"project_id,omitempty"`
	CostCenterID   *string         `json:"cost_center_id,omitempty"`
	Amount         string          `json:"amount"`
	Currency       string          `json:"currency"`
	ExpenseDate    validation.Date `json:"expense_date"`
	Description    string          `json:"description"`
	Notes          string          `json:"notes,omitempty"`
	AttachmentPath *string         `json:"attachment_path,omitempty"`
	Status         Status          `json:"status"`
	SubmittedAt    *time.Time      `json:"submitted_at,omitempty"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (e *Expense) ToResponse() ExpenseResponse {
	return ExpenseResponse{
		ID:             e.ID,
		CreatedBy:      e.CreatedBy,
		CustodyID:      e.CustodyID,
		CategoryID:     e.CategoryID,
		ProjectID:      e.ProjectID,
		CostCenterID:   e.CostCenterID,
		Amount:         money.Format(e.Amount),
		Currency:       e.Currency,
		ExpenseDate:    validation.NewDate(e.ExpenseDate),
		Description:    e.Description,
		Notes:          e.Notes,
		AttachmentPath: e.AttachmentPath,
		Status:         e.Status,
		SubmittedAt:    e.SubmittedAt,
		DecidedAt:      e.DecidedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

type ApprovalResponse struct {
	ID        string           `json:"id"`
	ExpenseID string           `json:"expense_id"`
	Status    ApprovalStatus   `json:"status"`
	Comment   string           `json:"comment,omitempty"`
	DecidedBy *string          `json:"decided_by,omitempty"`
	DecidedAt *time.Time       `json:"decided_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Expense   *ExpenseResponse `json:"expense,omitempty"`
}

func (a *Approval) ToResponse(e *Expense) ApprovalResponse {
	resp := ApprovalResponse{
		ID:        a.ID,
		ExpenseID: a.ExpenseID,
		Status:    a.Status,
		Comment:   a.Comment,
		DecidedBy: a.DecidedBy,
		DecidedAt: a.DecidedAt,
		CreatedAt: a.CreatedAt,
	}
	if e != nil {
		er := e.ToResponse()
		resp.Expense = &er
	}
	return resp
}

func ToDataModel(e *Expense) *expensedm.Expense {
	return &expensedm.Expense{
		ID:             e.ID,
		CompanyID:      e.CompanyID,
		CreatedBy:      e.CreatedBy,
		CustodyID:      e.CustodyID,
		CategoryID:     e.CategoryID,
		ProjectID:      e.ProjectID,
		CostCenterID:   e.CostCenterID,
		Amount:         e.Amount,
		Currency:       e.Currency,
		ExpenseDate:    e.ExpenseDate,
		Description:    e.Description,
		Notes:          e.Notes,
		AttachmentPath: e.AttachmentPath,
		Status:         string(e.Status),
		SubmittedAt:    e.SubmittedAt,
		DecidedAt:      e.DecidedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func FromDataModel(e *expensedm.Expense) *Expense {
	return &Expense{
		ID:             e.ID,
		CompanyID:      e.CompanyID,
		CreatedBy:      e.CreatedBy,
		CustodyID:      e.CustodyID,
		CategoryID:     e.CategoryID,
		ProjectID:      e.ProjectID,
		CostCenterID:   e.CostCenterID,
		Amount:         e.Amount,
		Currency:       e.Currency,
		ExpenseDate:    e.ExpenseDate,
		Description:    e.Description,
		Notes:          e.Notes,
		AttachmentPath: e.AttachmentPath,
		Status:         Status(e.Status),
		SubmittedAt:    e.SubmittedAt,
		DecidedAt:      e.DecidedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func FromDataModelSlice(rows []*expensedm.Expense) []*Expense {
	out := make([]*Expense, len(rows))
	for i, r := range rows {
		out[i] = FromDataModel(r)
	}
	return out
}

func ApprovalFromDataModel(a *expensedm.Approval) *Approval {
	return &Approval{
		ID:        a.ID,
		CompanyID: a.CompanyID,
		ExpenseID: a.ExpenseID,
		Status:    ApprovalStatus(a.Status),
		Comment:   a.Comment,
		DecidedBy: a.DecidedBy,
		DecidedAt: a.DecidedAt,
		CreatedAt: a.CreatedAt,
	}
}

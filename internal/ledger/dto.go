package ledger

import (
	"time"

	"github.com/frahmantamala/custody-ledger/internal/core/money"
)

type TransactionResponse struct {
	ID              string     `json:"id"`
	CustodyID       string     `json:"custody_id"`
	SourceCustodyID *string    `json:"source_custody_id,omitempty"`
	Type            Type       `json:"type"`
	Source          Source     `json:"source"`
	Status          Status     `json:"status"`
	Amount          string     `json:"amount"`
	FromUserID      *string    `json:"from_user_id,omitempty"`
	ToUserID        *string    `json:"to_user_id,omitempty"`
	CustomerID      *string    `json:"customer_id,omitempty"`
	AttachmentPath  *string    `json:"attachment_path,omitempty"`
	ExpenseID       *string    `json:"expense_id,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	DecisionComment string     `json:"decision_comment,omitempty"`
	CreatedBy       string     `json:"created_by"`
	DecidedBy       *string    `json:"decided_by,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (t *Transaction) ToResponse() TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		CustodyID:       t.CustodyID,
		SourceCustodyID: t.SourceCustodyID,
		Type:            t.Type,
		Source:          t.Source,
		Status:          t.Status,
		Amount:          money.Format(t.Amount),
		FromUserID:      t.FromUserID,
		ToUserID:        t.ToUserID,
		CustomerID:      t.CustomerID,
		AttachmentPath:  t.AttachmentPath,
		ExpenseID:       t.ExpenseID,
		Notes:           t.Notes,
		DecisionComment: t.DecisionComment,
		CreatedBy:       t.CreatedBy,
		DecidedBy:       t.DecidedBy,
		DecidedAt:       t.DecidedAt,
		CreatedAt:       t.CreatedAt,
	}
}

func ToResponses(txs []*Transaction) []TransactionResponse {
	out := make([]TransactionResponse, len(txs))
	for i, t := range txs {
		out[i] = t.ToResponse()
	}
	return out
}

// Package ledger derives custody balances from approved transactions. Balances are never stored.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	ledgerdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/ledger"
	"github.com/frahmantamala/custody-ledger/internal/core/money"
)

type Type string

const (
	TypeTopup            Type = "topup"
	TypeTransfer         Type = "transfer"
	TypeExpenseDeduction Type = "expense_deduction"
)

type Source string

const (
	SourceManualAdmin     Source = "manual_admin"
	SourceCustomerPayment Source = "customer_payment"
	SourceTransfer        Source = "transfer"
	SourceExpense         Source = "expense"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Transaction struct {
	ID              string          `json:"id"`
	CompanyID       string          `json:"company_id"`
	CustodyID       string          `json:"custody_id"`
	SourceCustodyID *string         `json:"source_custody_id,omitempty"`
	Type            Type            `json:"type"`
	Source          Source          `json:"source"`
	Status          Status          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	FromUserID      *string         `json:"from_user_id,omitempty"`
	ToUserID        *string         `json:"to_user_id,omitempty"`
	CustomerID      *string         `json:"customer_id,omitempty"`
	AttachmentPath  *string         `json:"attachment_path,omitempty"`
	ExpenseID       *string         `json:"expense_id,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	DecisionComment string          `json:"decision_comment,omitempty"`
	CreatedBy       string          `json:"created_by"`
	DecidedBy       *string         `json:"decided_by,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (t *Transaction) IsPending() bool {
	return t.Status == StatusPending
}

// RecipientID is the user credited by the transaction, when there is one.
func (t *Transaction) RecipientID() string {
	if t.ToUserID != nil {
		return *t.ToUserID
	}
	return ""
}

// EffectOn is the signed effect of one transaction on one custody. Only approved rows count.
func EffectOn(custodyID string, t *Transaction) decimal.Decimal {
	if t.Status != StatusApproved {
		return decimal.Zero
	}
	switch t.Type {
	case TypeTopup:
		if t.CustodyID == custodyID {
			return t.Amount
		}
	case TypeTransfer:
		if t.CustodyID == custodyID {
			return t.Amount
		}
		if t.SourceCustodyID != nil && *t.SourceCustodyID == custodyID {
			return t.Amount.Neg()
		}
	case TypeExpenseDeduction:
		if t.CustodyID == custodyID {
			return t.Amount.Neg()
		}
	}
	return decimal.Zero
}

// Balance replays entries on top of the initial amount. It never clamps.
func Balance(custodyID string, initial decimal.Decimal, entries []*Transaction) decimal.Decimal {
	bal := initial
	for _, e := range entries {
		bal = bal.Add(EffectOn(custodyID, e))
	}
	return bal.Round(money.Scale)
}

func ToDataModel(t *Transaction) *ledgerdm.Transaction {
	return &ledgerdm.Transaction{
		ID:              t.ID,
		CompanyID:       t.CompanyID,
		CustodyID:       t.CustodyID,
		SourceCustodyID: t.SourceCustodyID,
		Type:            string(t.Type),
		Source:          string(t.Source),
		Status:          string(t.Status),
		Amount:          t.Amount,
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

func FromDataModel(t *ledgerdm.Transaction) *Transaction {
	return &Transaction{
		ID:              t.ID,
		CompanyID:       t.CompanyID,
		CustodyID:       t.CustodyID,
		SourceCustodyID: t.SourceCustodyID,
		Type:            Type(t.Type),
		Source:          Source(t.Source),
		Status:          Status(t.Status),
		Amount:          t.Amount,
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

func FromDataModelSlice(rows []*ledgerdm.Transaction) []*Transaction {
	out := make([]*Transaction, len(rows))
	for i, r := range rows {
		out[i] = FromDataModel(r)
	}
	return out
}

// StringPtr is a small helper for the optional columns.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

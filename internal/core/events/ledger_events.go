package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeTransactionRequested    = "transaction.requested"
	EventTypeTransactionDecided      = "transaction.decided"
	EventTypeCustomerPaymentRecorded = "customer_payment.recorded"
	EventTypeExpenseSubmitted        = "expense.submitted"
	EventTypeExpenseDecided          = "expense.decided"
	EventTypeCustodyStatusChanged    = "custody.status_changed"
	EventTypeIntegrityViolation      = "ledger.integrity_violation"
)

func newBase(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

type TransactionRequestedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	CompanyID     string `json:"company_id"`
	Kind          string `json:"kind"`
	Amount        string `json:"amount"`
	RequestedBy   string `json:"requested_by"`
	RecipientID   string `json:"recipient_id"`
}

func NewTransactionRequestedEvent(txID, companyID, kind, amount, requestedBy, recipientID string) *TransactionRequestedEvent {
	return &TransactionRequestedEvent{
		BaseEvent: newBase(EventTypeTransactionRequested, map[string]interface{}{
			"transaction_id": txID,
			"company_id":     companyID,
			"kind":           kind,
			"amount":         amount,
			"requested_by":   requestedBy,
			"recipient_id":   recipientID,
		}),
		TransactionID: txID,
		CompanyID:     companyID,
		Kind:          kind,
		Amount:        amount,
		RequestedBy:   requestedBy,
		RecipientID:   recipientID,
	}
}

type TransactionDecidedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	CompanyID     string `json:"company_id"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	CreatedBy     string `json:"created_by"`
	RecipientID   string `json:"recipient_id"`
	DecidedBy     string `json:"decided_by"`
}

func NewTransactionDecidedEvent(txID, companyID, kind, status, amount, createdBy, recipientID, decidedBy string) *TransactionDecidedEvent {
	return &TransactionDecidedEvent{
		BaseEvent: newBase(EventTypeTransactionDecided, map[string]interface{}{
			"transaction_id": txID,
			"company_id":     companyID,
			"kind":           kind,
			"status":         status,
			"amount":         amount,
			"created_by":     createdBy,
			"recipient_id":   recipientID,
			"decided_by":     decidedBy,
		}),
		TransactionID: txID,
		CompanyID:     companyID,
		Kind:          kind,
		Status:        status,
		Amount:        amount,
		CreatedBy:     createdBy,
		RecipientID:   recipientID,
		DecidedBy:     decidedBy,
	}
}

type CustomerPaymentRecordedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	CompanyID     string `json:"company_id"`
	CustomerID    string `json:"customer_id"`
	Amount        string `json:"amount"`
	CollectedBy   string `json:"collected_by"`
}

func NewCustomerPaymentRecordedEvent(txID, companyID, customerID, amount, collectedBy string) *CustomerPaymentRecordedEvent {
	return &CustomerPaymentRecordedEvent{
		BaseEvent: newBase(EventTypeCustomerPaymentRecorded, map[string]interface{}{
			"transaction_id": txID,
			"company_id":     companyID,
			"customer_id":    customerID,
			"amount":         amount,
			"collected_by":   collectedBy,
		}),
		TransactionID: txID,
		CompanyID:     companyID,
		CustomerID:    customerID,
		Amount:        amount,
		CollectedBy:   collectedBy,
	}
}

type ExpenseSubmittedEvent struct {
	BaseEvent
	ExpenseID  string `json:"expense_id"`
	ApprovalID string `json:"approval_id"`
	CompanyID  string `json:"company_id"`
	CreatedBy  string `json:"created_by"`
	Amount     string `json:"amount"`
}

func NewExpenseSubmittedEvent(expenseID, approvalID, companyID, createdBy, amount string) *ExpenseSubmittedEvent {
	return &ExpenseSubmittedEvent{
		BaseEvent: newBase(EventTypeExpenseSubmitted, map[string]interface{}{
			"expense_id":  expenseID,
			"approval_id": approvalID,
			"company_id":  companyID,
			"created_by":  createdBy,
			"amount":      amount,
		}),
		ExpenseID:  expenseID,
		ApprovalID: approvalID,
		CompanyID:  companyID,
		CreatedBy:  createdBy,
		Amount:     amount,
	}
}

type ExpenseDecidedEvent struct {
	BaseEvent
	ExpenseID  string `json:"expense_id"`
	ApprovalID string `json:"approval_id"`
	CompanyID  string `json:"company_id"`
	Status     string `json:"status"`
	Amount     string `json:"amount"`
	CreatedBy  string `json:"created_by"`
	DecidedBy  string `json:"decided_by"`
}

func NewExpenseDecidedEvent(expenseID, approvalID, companyID, status, amount, createdBy, decidedBy string) *ExpenseDecidedEvent {
	return &ExpenseDecidedEvent{
		BaseEvent: newBase(EventTypeExpenseDecided, map[string]interface{}{
			"expense_id":  expenseID,
			"approval_id": approvalID,
			"company_id":  companyID,
			"status":      status,
			"amount":      amount,
			"created_by":  createdBy,
			"decided_by":  decidedBy,
		}),
		ExpenseID:  expenseID,
		ApprovalID: approvalID,
		CompanyID:  companyID,
		Status:     status,
		Amount:     amount,
		CreatedBy:  createdBy,
		DecidedBy:  decidedBy,
	}
}

type CustodyStatusChangedEvent struct {
	BaseEvent
	CustodyID string `json:"custody_id"`
	CompanyID string `json:"company_id"`
	UserID    string `json:"user_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	ChangedBy string `json:"changed_by"`
}

func NewCustodyStatusChangedEvent(custodyID, companyID, userID, from, to, changedBy string) *CustodyStatusChangedEvent {
	return &CustodyStatusChangedEvent{
		BaseEvent: newBase(EventTypeCustodyStatusChanged, map[string]interface{}{
			"custody_id": custodyID,
			"company_id": companyID,
			"user_id":    userID,
			"from":       from,
			"to":         to,
			"changed_by": changedBy,
		}),
		CustodyID: custodyID,
		CompanyID: companyID,
		UserID:    userID,
		From:      from,
		To:        to,
		ChangedBy: changedBy,
	}
}

type IntegrityViolationEvent struct {
	BaseEvent
	CustodyID string `json:"custody_id"`
	CompanyID string `json:"company_id"`
	Balance   string `json:"balance"`
}

func NewIntegrityViolationEvent(custodyID, companyID, balance string) *IntegrityViolationEvent {
	return &IntegrityViolationEvent{
		BaseEvent: newBase(EventTypeIntegrityViolation, map[string]interface{}{
			"custody_id": custodyID,
			"company_id": companyID,
			"balance":    balance,
		}),
		CustodyID: custodyID,
		CompanyID: companyID,
		Balance:   balance,
	}
}

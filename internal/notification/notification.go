package notification

import (
	"context"
	"time"

	notificationdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/notification"
)

type Kind string

const (
	KindTopupRequested     Kind = "topup_requested"
	KindTransferRequested  Kind = "transfer_requested"
	KindTransactionDecided Kind = "transaction_decided"
	KindPaymentRecorded    Kind = "customer_payment_recorded"
	KindExpenseSubmitted   Kind = "expense_submitted"
	KindExpenseDecided     Kind = "expense_decided"
	KindCustodyStatus      Kind = "custody_status_changed"
	KindIntegrity          Kind = "integrity_violation"
)

type Notification struct {
	ID         string     `json:"id"`
	CompanyID  string     `json:"-"`
	UserID     string     `json:"user_id"`
	Kind       Kind       `json:"kind"`
	Title      string     `json:"title"`
	Body       string     `json:"body,omitempty"`
	EntityType string     `json:"entity_type,omitempty"`
	EntityID   string     `json:"entity_id,omitempty"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ListQuery struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

type RepositoryAPI interface {
	Create(ctx context.Context, n *notificationdm.Notification) error
	ListForUser(ctx context.Context, userID string, q ListQuery) ([]*notificationdm.Notification, error)
	MarkRead(ctx context.Context, id, userID string, at time.Time) error
}

func ToDataModel(n *Notification) *notificationdm.Notification {
	return &notificationdm.Notification{
		ID:         n.ID,
		CompanyID:  n.CompanyID,
		UserID:     n.UserID,
		Kind:       string(n.Kind),
		Title:      n.Title,
		Body:       n.Body,
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
}

func FromDataModel(n *notificationdm.Notification) *Notification {
	return &Notification{
		ID:         n.ID,
		CompanyID:  n.CompanyID,
		UserID:     n.UserID,
		Kind:       Kind(n.Kind),
		Title:      n.Title,
		Body:       n.Body,
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
}

package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/events"
)

type Recipients interface {
	ActiveIDsByRoles(ctx context.Context, companyID string, roles []string) ([]string, error)
}

type Enqueuer interface {
	Enqueue(n *Notification) error
}

// Subscriber turns domain events into per-user notifications.
type Subscriber struct {
	recipients Recipients
	out        Enqueuer
	logger     *slog.Logger
}

func NewSubscriber(recipients Recipients, out Enqueuer, logger *slog.Logger) *Subscriber {
	return &Subscriber{recipients: recipients, out: out, logger: logger}
}

func (s *Subscriber) RegisterEventHandlers(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeTransactionRequested, s.HandleTransactionRequested)
	bus.Subscribe(events.EventTypeTransactionDecided, s.HandleTransactionDecided)
	bus.Subscribe(events.EventTypeCustomerPaymentRecorded, s.HandleCustomerPaymentRecorded)
	bus.Subscribe(events.EventTypeExpenseSubmitted, s.HandleExpenseSubmitted)
	bus.Subscribe(events.EventTypeExpenseDecided, s.HandleExpenseDecided)
	bus.Subscribe(events.EventTypeCustodyStatusChanged, s.HandleCustodyStatusChanged)
	bus.Subscribe(events.EventTypeIntegrityViolation, s.HandleIntegrityViolation)

	s.logger.Info("notification event handlers registered")
}

func (s *Subscriber) HandleTransactionRequested(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.TransactionRequestedEvent)
	if !ok {
		return unexpected(event)
	}
	kind, title := KindTopupRequested, "A top-up of "+e.Amount+" was requested for you"
	if e.Kind == "transfer" {
		kind, title = KindTransferRequested, "A transfer of "+e.Amount+" is waiting for your acceptance"
	}
	s.send(e.CompanyID, kind, title, "", "transaction", e.TransactionID, e.RecipientID)

	deciders, err := s.recipients.ActiveIDsByRoles(ctx, e.CompanyID, roleNames(authz.DecideTransaction))
	if err != nil {
		return fmt.Errorf("load deciders: %w", err)
	}
	s.send(e.CompanyID, kind, "New "+e.Kind+" request of "+e.Amount+" awaits a decision", "", "transaction", e.TransactionID,
		without(deciders, e.RequestedBy, e.RecipientID)...)
	return nil
}

func (s *Subscriber) HandleTransactionDecided(_ context.Context, event events.Event) error {
	e, ok := event.(*events.TransactionDecidedEvent)
	if !ok {
		return unexpected(event)
	}
	title := fmt.Sprintf("Your %s of %s was %s", e.Kind, e.Amount, e.Status)
	s.send(e.CompanyID, KindTransactionDecided, title, "", "transaction", e.TransactionID,
		without(unique(e.CreatedBy, e.RecipientID), e.DecidedBy)...)
	return nil
}

func (s *Subscriber) HandleCustomerPaymentRecorded(_ context.Context, event events.Event) error {
	e, ok := event.(*events.CustomerPaymentRecordedEvent)
	if !ok {
		return unexpected(event)
	}
	s.send(e.CompanyID, KindPaymentRecorded, "Customer payment of "+e.Amount+" added to your custody", "",
		"transaction", e.TransactionID, e.CollectedBy)
	return nil
}

func (s *Subscriber) HandleExpenseSubmitted(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.ExpenseSubmittedEvent)
	if !ok {
		return unexpected(event)
	}
	deciders, err := s.recipients.ActiveIDsByRoles(ctx, e.CompanyID, roleNames(authz.DecideExpense))
	if err != nil {
		return fmt.Errorf("load approvers: %w", err)
	}
	s.send(e.CompanyID, KindExpenseSubmitted, "Expense of "+e.Amount+" awaits approval", "",
		"approval", e.ApprovalID, without(deciders, e.CreatedBy)...)
	return nil
}

func (s *Subscriber) HandleExpenseDecided(_ context.Context, event events.Event) error {
	e, ok := event.(*events.ExpenseDecidedEvent)
	if !ok {
		return unexpected(event)
	}
	s.send(e.CompanyID, KindExpenseDecided, fmt.Sprintf("Your expense of %s was %s", e.Amount, e.Status), "",
		"expense", e.ExpenseID, e.CreatedBy)
	return nil
}

func (s *Subscriber) HandleCustodyStatusChanged(_ context.Context, event events.Event) error {
	e, ok := event.(*events.CustodyStatusChangedEvent)
	if !ok {
		return unexpected(event)
	}
	s.send(e.CompanyID, KindCustodyStatus, fmt.Sprintf("Your custody is now %s", e.To), "was "+e.From,
		"custody", e.CustodyID, without([]string{e.UserID}, e.ChangedBy)...)
	return nil
}

func (s *Subscriber) HandleIntegrityViolation(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.IntegrityViolationEvent)
	if !ok {
		return unexpected(event)
	}
	admins, err := s.recipients.ActiveIDsByRoles(ctx, e.CompanyID, roleNames(authz.ManageCustodies))
	if err != nil {
		return fmt.Errorf("load custody managers: %w", err)
	}
	s.send(e.CompanyID, KindIntegrity, "Custody balance is negative: "+e.Balance, "The custody needs review.",
		"custody", e.CustodyID, admins...)
	return nil
}

func (s *Subscriber) send(companyID string, kind Kind, title, body, entityType, entityID string, userIDs ...string) {
	now := time.Now().UTC()
	for _, uid := range userIDs {
		if uid == "" {
			continue
		}
		_ = s.out.Enqueue(&Notification{
			ID:         uuid.NewString(),
			CompanyID:  companyID,
			UserID:     uid,
			Kind:       kind,
			Title:      title,
			Body:       body,
			EntityType: entityType,
			EntityID:   entityID,
			CreatedAt:  now,
		})
	}
}

func unexpected(event events.Event) error {
	return fmt.Errorf("unexpected event %T for %s", event, event.EventType())
}

func roleNames(c authz.Capability) []string {
	roles := authz.RolesWith(c)
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func unique(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func without(ids []string, drop ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		skip := false
		for _, d := range drop {
			if id == d {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, id)
		}
	}
	return out
}

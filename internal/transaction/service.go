// Package transaction runs the pending -> approved|rejected workflow for top-ups and transfers
// and records customer payments.
package transaction

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/attachment"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/common/validation"
	custodydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/custody"
	"github.com/frahmantamala/custody-ledger/internal/core/events"
	"github.com/frahmantamala/custody-ledger/internal/core/money"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
	"github.com/frahmantamala/custody-ledger/internal/customer"
	"github.com/frahmantamala/custody-ledger/internal/ledger"
	"github.com/frahmantamala/custody-ledger/internal/metrics"
)

// BalanceChecker derives a balance inside the caller's unit of work.
type BalanceChecker interface {
	BalanceWithin(ctx context.Context, r uow.Repos, c *custodydm.Custody) (decimal.Decimal, error)
}

type AttachmentVerifier interface {
	Verify(ctx context.Context, actor authz.Actor, kind attachment.Kind, path string) error
}

type Service struct {
	uow         uow.UnitOfWork
	balances    BalanceChecker
	attachments AttachmentVerifier
	publisher   events.Publisher
	policy      authz.Policy
	logger      *slog.Logger
}

func NewService(u uow.UnitOfWork, balances BalanceChecker, attachments AttachmentVerifier, publisher events.Publisher, policy authz.Policy, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		uow:         u,
		balances:    balances,
		attachments: attachments,
		publisher:   publisher,
		policy:      policy,
		logger:      logger,
	}
}

var (
	errNotFound           = apperrors.NewNotFoundError("transaction not found", apperrors.ErrCodeTransactionNotFound)
	errRecipientNotActive = apperrors.NewConflictError("recipient has no active custody", apperrors.ErrCodeCustodyNotActive)
	errOwnNotActive       = apperrors.NewConflictError("you have no active custody", apperrors.ErrCodeCustodyNotActive)
	errSelfTransfer       = apperrors.NewValidationFieldError("to_user_id", "cannot transfer to yourself", apperrors.ErrCodeSelfTransfer)
)

func activeCustody(ctx context.Context, r uow.Repos, companyID, userID string, forUpdate bool, missing error) (*custodydm.Custody, error) {
	c, err := r.Custodies.FindActiveByUser(ctx, companyID, userID, forUpdate)
	if errors.Is(err, uow.ErrNotFound) {
		return nil, missing
	}
	return c, err
}

// RequestManualTopup files a pending top-up for the recipient's active custody.
func (s *Service) RequestManualTopup(ctx context.Context, actor authz.Actor, dto TopupRequestDTO) (*ledger.Transaction, error) {
	if err := s.policy.Require(actor, authz.RequestTopup); err != nil {
		s.logger.Warn("top-up request denied", "actor_id", actor.UserID, "role", actor.Role)
		return nil, err
	}
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}

	var t *ledger.Transaction
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		target, err := activeCustody(ctx, r, actor.CompanyID, dto.ToUserID, false, errRecipientNotActive)
		if err != nil {
			return err
		}
		t = &ledger.Transaction{
			ID:        uuid.NewString(),
			CompanyID: actor.CompanyID,
			CustodyID: target.ID,
			Type:      ledger.TypeTopup,
			Source:    ledger.SourceManualAdmin,
			Status:    ledger.StatusPending,
			Amount:    dto.Amount,
			ToUserID:  &target.UserID,
			Notes:     strings.TrimSpace(dto.Notes),
			CreatedBy: actor.UserID,
			CreatedAt: time.Now().UTC(),
		}
		return r.Transactions.Create(ctx, ledger.ToDataModel(t))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("top-up requested", "transaction_id", t.ID, "to_user_id", dto.ToUserID, "amount", money.Format(t.Amount))
	_ = s.publisher.Publish(ctx, events.NewTransactionRequestedEvent(t.ID, t.CompanyID, string(t.Type), money.Format(t.Amount), actor.UserID, t.RecipientID()))
	return t, nil
}

// RequestTransfer files a pending transfer from the actor's custody to the recipient's. The
// sender balance is only checked when the transfer is approved.
func (s *Service) RequestTransfer(ctx context.Context, actor authz.Actor, dto TransferRequestDTO) (*ledger.Transaction, error) {
	if err := s.policy.Require(actor, authz.RequestTransfer); err != nil {
		return nil, err
	}
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}
	if dto.ToUserID == actor.UserID {
		return nil, errSelfTransfer
	}

	var t *ledger.Transaction
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		from, err := activeCustody(ctx, r, actor.CompanyID, actor.UserID, false, errOwnNotActive)
		if err != nil {
			return err
		}
		to, err := activeCustody(ctx, r, actor.CompanyID, dto.ToUserID, false, errRecipientNotActive)
		if err != nil {
			return err
		}
		t = &ledger.Transaction{
			ID:              uuid.NewString(),
			CompanyID:       actor.CompanyID,
			CustodyID:       to.ID,
			SourceCustodyID: &from.ID,
			Type:            ledger.TypeTransfer,
			Source:          ledger.SourceTransfer,
			Status:          ledger.StatusPending,
			Amount:          dto.Amount,
			FromUserID:      &from.UserID,
			ToUserID:        &to.UserID,
			Notes:           strings.TrimSpace(dto.Notes),
			CreatedBy:       actor.UserID,
			CreatedAt:       time.Now().UTC(),
		}
		return r.Transactions.Create(ctx, ledger.ToDataModel(t))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transfer requested", "transaction_id", t.ID, "to_user_id", dto.ToUserID, "amount", money.Format(t.Amount))
	_ = s.publisher.Publish(ctx, events.NewTransactionRequestedEvent(t.ID, t.CompanyID, string(t.Type), money.Format(t.Amount), actor.UserID, t.RecipientID()))
	return t, nil
}

func (s *Service) DecideManualTopup(ctx context.Context, actor authz.Actor, id string, dto DecisionDTO) (*ledger.Transaction, error) {
	return s.decide(ctx, actor, id, dto, ledger.TypeTopup)
}

func (s *Service) DecideTransfer(ctx context.Context, actor authz.Actor, id string, dto DecisionDTO) (*ledger.Transaction, error) {
	return s.decide(ctx, actor, id, dto, ledger.TypeTransfer)
}

func inbound(t *ledger.Transaction) authz.Inbound {
	kind := authz.InboundTopup
	if t.Type == ledger.TypeTransfer {
		kind = authz.InboundTransfer
	}
	return authz.Inbound{Kind: kind, CompanyID: t.CompanyID, CreatedBy: t.CreatedBy, RecipientID: t.RecipientID()}
}

func (s *Service) decide(ctx context.Context, actor authz.Actor, id string, dto DecisionDTO, want ledger.Type) (*ledger.Transaction, error) {
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}
	approve := *dto.Approve
	comment := strings.TrimSpace(dto.Comment)
	if !approve && comment == "" {
		return nil, apperrors.ErrCommentRequired
	}

	var decided *ledger.Transaction
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		row, err := r.Transactions.LockByID(ctx, id)
		if err != nil {
			if errors.Is(err, uow.ErrNotFound) {
				return errNotFound
			}
			return err
		}
		if err := s.policy.Scope(actor, row.CompanyID, errNotFound); err != nil {
			return err
		}
		t := ledger.FromDataModel(row)
		if t.Type != want {
			return errNotFound
		}
		if !t.IsPending() {
			return apperrors.ErrAlreadyDecided
		}
		if err := s.policy.CanDecideTransaction(actor, inbound(t)); err != nil {
			return err
		}

		status := ledger.StatusRejected
		if approve {
			if err := s.checkApprovable(ctx, r, t); err != nil {
				return err
			}
			status = ledger.StatusApproved
		}

		now := time.Now().UTC()
		if err := r.Transactions.Decide(ctx, t.ID, string(status), actor.UserID, comment, now); err != nil {
			if errors.Is(err, uow.ErrStale) {
				return apperrors.ErrAlreadyDecided
			}
			return err
		}
		t.Status = status
		t.DecidedBy = &actor.UserID
		t.DecidedAt = &now
		t.DecisionComment = comment
		decided = t
		return nil
	})
	if err != nil {
		s.recordRefusal(want, actor, id, err)
		return nil, err
	}

	metrics.RecordDecision(string(want), string(decided.Status))
	s.logger.Info("transaction decided",
		"transaction_id", decided.ID,
		"type", decided.Type,
		"status", decided.Status,
		"amount", money.Format(decided.Amount),
		"decided_by", actor.UserID)
	_ = s.publisher.Publish(ctx, events.NewTransactionDecidedEvent(
		decided.ID, decided.CompanyID, string(decided.Type), string(decided.Status),
		money.Format(decided.Amount), decided.CreatedBy, decided.RecipientID(), actor.UserID))
	return decided, nil
}

// checkApprovable locks every custody the transaction touches, in id order, and re-derives the
// sender balance for transfers.
func (s *Service) checkApprovable(ctx context.Context, r uow.Repos, t *ledger.Transaction) error {
	ids := []string{t.CustodyID}
	if t.SourceCustodyID != nil {
		ids = append(ids, *t.SourceCustodyID)
	}
	locked, err := r.Custodies.LockByIDs(ctx, ids...)
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return apperrors.ErrCustodyNotActive
		}
		return err
	}

	for _, c := range locked {
		if c.Status != custodydm.StatusActive {
			return apperrors.ErrCustodyNotActive
		}
		bal, err := s.balances.BalanceWithin(ctx, r, c)
		if err != nil {
			return err
		}
		if t.SourceCustodyID != nil && c.ID == *t.SourceCustodyID && bal.LessThan(t.Amount) {
			return apperrors.ErrInsufficientBalance.WithDetails(map[string]string{
				"balance": money.Format(bal),
				"amount":  money.Format(t.Amount),
			})
		}
	}
	return nil
}

func (s *Service) recordRefusal(kind ledger.Type, actor authz.Actor, id string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		metrics.RecordInsufficientBalance(string(kind))
		metrics.RecordDecision(string(kind), "insufficient_balance")
	case errors.Is(err, apperrors.ErrAlreadyDecided):
		metrics.RecordDecision(string(kind), "conflict")
	case errors.Is(err, apperrors.ErrForbidden), errors.Is(err, apperrors.ErrSelfDecision), errors.Is(err, apperrors.ErrCrossTenant):
		metrics.RecordDecision(string(kind), "denied")
		s.logger.Warn("transaction decision denied", "transaction_id", id, "actor_id", actor.UserID, "error", err)
	}
}

// RecordCustomerPayment books money collected from a customer as an approved top-up on the
// collector's own custody.
func (s *Service) RecordCustomerPayment(ctx context.Context, actor authz.Actor, dto CustomerPaymentDTO) (*ledger.Transaction, error) {
	if err := s.policy.Require(actor, authz.CollectCustomerPayment); err != nil {
		return nil, err
	}
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}
	ref := customer.Ref{ID: dto.CustomerID, Name: dto.CustomerName, Phone: dto.CustomerPhone}
	if strings.TrimSpace(ref.ID) == "" && strings.TrimSpace(ref.Name) == "" {
		return nil, customer.ErrRefRequired
	}
	path := strings.TrimSpace(dto.AttachmentPath)
	if err := s.attachments.Verify(ctx, actor, attachment.KindCustomerPayment, path); err != nil {
		return nil, err
	}

	var t *ledger.Transaction
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		own, err := activeCustody(ctx, r, actor.CompanyID, actor.UserID, true, errOwnNotActive)
		if err != nil {
			return err
		}
		cust, created, err := customer.Resolve(ctx, r.Customers, actor.CompanyID, actor.UserID, ref)
		if err != nil {
			return err
		}
		if created {
			s.logger.Info("customer created from payment", "customer_id", cust.ID, "created_by", actor.UserID)
		}

		now := time.Now().UTC()
		t = &ledger.Transaction{
			ID:             uuid.NewString(),
			CompanyID:      actor.CompanyID,
			CustodyID:      own.ID,
			Type:           ledger.TypeTopup,
			Source:         ledger.SourceCustomerPayment,
			Status:         ledger.StatusApproved,
			Amount:         dto.Amount,
			ToUserID:       &own.UserID,
			CustomerID:     &cust.ID,
			AttachmentPath: &path,
			Notes:          strings.TrimSpace(dto.Notes),
			CreatedBy:      actor.UserID,
			DecidedBy:      &actor.UserID,
			DecidedAt:      &now,
			CreatedAt:      now,
		}
		return r.Transactions.Create(ctx, ledger.ToDataModel(t))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("customer payment recorded", "transaction_id", t.ID, "customer_id", *t.CustomerID, "amount", money.Format(t.Amount))
	_ = s.publisher.Publish(ctx, events.NewCustomerPaymentRecordedEvent(t.ID, t.CompanyID, *t.CustomerID, money.Format(t.Amount), actor.UserID))
	return t, nil
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, id string) (*ledger.Transaction, error) {
	row, err := s.uow.Repos().Transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return nil, errNotFound
		}
		return nil, err
	}
	if err := s.policy.Scope(actor, row.CompanyID, errNotFound); err != nil {
		return nil, err
	}
	t := ledger.FromDataModel(row)
	involved := []string{t.CreatedBy, t.RecipientID()}
	if t.FromUserID != nil {
		involved = append(involved, *t.FromUserID)
	}
	if err := s.policy.CanView(actor, t.CompanyID, involved...); err != nil {
		return nil, err
	}
	return t, nil
}

// ListInbox returns the pending requests the actor could decide right now.
func (s *Service) ListInbox(ctx context.Context, actor authz.Actor) ([]*ledger.Transaction, error) {
	rows, err := s.uow.Repos().Transactions.ListPending(ctx, actor.CompanyID)
	if err != nil {
		s.logger.Error("failed to list pending transactions", "error", err)
		return nil, err
	}
	out := make([]*ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		t := ledger.FromDataModel(row)
		if t.Type != ledger.TypeTopup && t.Type != ledger.TypeTransfer {
			continue
		}
		if s.policy.CanDecideTransaction(actor, inbound(t)) == nil {
			out = append(out, t)
		}
	}
	return out, nil
}

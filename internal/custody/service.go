package custody

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/common/validation"
	"github.com/frahmantamala/custody-ledger/internal/core/events"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
	"github.com/frahmantamala/custody-ledger/internal/ledger"
	"github.com/frahmantamala/custody-ledger/internal/member"
)

// MemberLookup returns nil, nil for unknown members.
type MemberLookup interface {
	FindMember(ctx context.Context, id string) (*member.Member, error)
}

type BalanceReader interface {
	CurrentBalance(ctx context.Context, actor authz.Actor, custodyID string) (*ledger.BalanceView, error)
	DisplayBalances(ctx context.Context, companyID string) (map[string]decimal.Decimal, error)
}

type Service struct {
	uow             uow.UnitOfWork
	members         MemberLookup
	balances        BalanceReader
	publisher       events.Publisher
	policy          authz.Policy
	defaultCurrency string
	logger          *slog.Logger
}

func NewService(u uow.UnitOfWork, members MemberLookup, balances BalanceReader, publisher events.Publisher, policy authz.Policy, defaultCurrency string, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if defaultCurrency == "" {
		defaultCurrency = "SAR"
	}
	return &Service{
		uow:             u,
		members:         members,
		balances:        balances,
		publisher:       publisher,
		policy:          policy,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

var (
	errNotFound     = apperrors.NewNotFoundError("custody not found", apperrors.ErrCodeCustodyNotFound)
	errActiveExists = apperrors.NewConflictError("user already has an active custody", apperrors.ErrCodeActiveCustodyExists)
)

// Create opens a custody for a member. With SeedAsTopup the opening amount is booked as an
// approved top-up and initial_amount stays zero.
func (s *Service) Create(ctx context.Context, actor authz.Actor, dto CreateCustodyDTO) (*View, error) {
	if err := s.policy.Require(actor, authz.ManageCustodies); err != nil {
		s.logger.Warn("create custody denied", "actor_id", actor.UserID, "role", actor.Role)
		return nil, err
	}
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}

	holder, err := s.members.FindMember(ctx, dto.UserID)
	if err != nil {
		return nil, err
	}
	if holder == nil || holder.CompanyID != actor.CompanyID {
		return nil, apperrors.NewNotFoundError("member not found", apperrors.ErrCodeMemberNotFound)
	}
	if !holder.IsActive {
		return nil, apperrors.ErrUserInactive
	}

	currency := strings.ToUpper(dto.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	now := time.Now().UTC()
	c := &Custody{
		ID:            uuid.NewString(),
		CompanyID:     actor.CompanyID,
		UserID:        holder.ID,
		InitialAmount: dto.InitialAmount,
		Currency:      currency,
		Status:        StatusActive,
		Notes:         dto.Notes,
		CreatedBy:     actor.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	seed := dto.SeedAsTopup && dto.InitialAmount.IsPositive()
	if seed {
		c.InitialAmount = decimal.Zero
	}

	err = s.uow.WithinTx(ctx, func(r uow.Repos) error {
		if _, err := r.Custodies.FindActiveByUser(ctx, actor.CompanyID, holder.ID, true); err == nil {
			return errActiveExists
		} else if !errors.Is(err, uow.ErrNotFound) {
			return err
		}

		if err := r.Custodies.Create(ctx, ToDataModel(c)); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errActiveExists
			}
			return err
		}

		if !seed {
			return nil
		}
		decidedAt := now
		return r.Transactions.Create(ctx, ledger.ToDataModel(&ledger.Transaction{
			ID:        uuid.NewString(),
			CompanyID: c.CompanyID,
			CustodyID: c.ID,
			Type:      ledger.TypeTopup,
			Source:    ledger.SourceManualAdmin,
			Status:    ledger.StatusApproved,
			Amount:    dto.InitialAmount,
			ToUserID:  &c.UserID,
			Notes:     InitialFundingNote,
			CreatedBy: actor.UserID,
			DecidedBy: &actor.UserID,
			DecidedAt: &decidedAt,
			CreatedAt: now,
		}))
	})
	if err != nil {
		if _, ok := apperrors.IsAppError(err); !ok {
			s.logger.Error("failed to create custody", "error", err, "user_id", holder.ID)
		}
		return nil, err
	}

	s.logger.Info("custody created",
		"custody_id", c.ID,
		"user_id", c.UserID,
		"initial_amount", dto.InitialAmount.StringFixed(2),
		"seeded_as_topup", seed,
		"created_by", actor.UserID)
	return &View{Custody: c, Balance: dto.InitialAmount}, nil
}

type View struct {
	Custody            *Custody
	Balance            decimal.Decimal
	IntegrityViolation bool
}

func (v View) ToResponse() CustodyResponse {
	resp := v.Custody.ToResponse(v.Balance)
	resp.IntegrityViolation = v.IntegrityViolation
	return resp
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, id string) (*View, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Scope(actor, c.CompanyID, errNotFound); err != nil {
		return nil, err
	}
	if err := s.policy.CanView(actor, c.CompanyID, c.UserID); err != nil {
		return nil, err
	}
	bal, err := s.balances.CurrentBalance(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return &View{Custody: c, Balance: bal.Balance, IntegrityViolation: bal.IntegrityViolation}, nil
}

// List returns company custodies for view_all holders and only the actor's own otherwise.
// Balances come from the display summary.
func (s *Service) List(ctx context.Context, actor authz.Actor) ([]View, error) {
	holder := actor.UserID
	if actor.Can(authz.ViewAll) {
		holder = ""
	}
	rows, err := s.uow.Repos().Custodies.ListByCompany(ctx, actor.CompanyID, holder)
	if err != nil {
		s.logger.Error("failed to list custodies", "error", err)
		return nil, err
	}
	balances, err := s.balances.DisplayBalances(ctx, actor.CompanyID)
	if err != nil {
		s.logger.Error("failed to load display balances", "error", err)
		return nil, err
	}

	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, View{Custody: FromDataModel(row), Balance: balances[row.ID]})
	}
	return out, nil
}

func (s *Service) Freeze(ctx context.Context, actor authz.Actor, id string) (*Custody, error) {
	return s.transition(ctx, actor, id, StatusFrozen)
}

// Unfreeze re-checks the one-active-custody rule before reactivating.
func (s *Service) Unfreeze(ctx context.Context, actor authz.Actor, id string) (*Custody, error) {
	return s.transition(ctx, actor, id, StatusActive)
}

func (s *Service) Close(ctx context.Context, actor authz.Actor, id string) (*Custody, error) {
	return s.transition(ctx, actor, id, StatusClosed)
}

func (s *Service) transition(ctx context.Context, actor authz.Actor, id, to string) (*Custody, error) {
	if err := s.policy.Require(actor, authz.ManageCustodies); err != nil {
		return nil, err
	}

	var (
		updated *Custody
		from    string
	)
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		locked, err := r.Custodies.LockByIDs(ctx, id)
		if err != nil {
			if errors.Is(err, uow.ErrNotFound) {
				return errNotFound
			}
			return err
		}
		c := locked[0]
		if err := s.policy.Scope(actor, c.CompanyID, errNotFound); err != nil {
			return err
		}
		from = c.Status
		if !CanTransition(from, to) {
			return apperrors.NewConflictError("cannot move custody from "+from+" to "+to, apperrors.ErrCodeInvalidStatus)
		}
		if to == StatusActive {
			if _, err := r.Custodies.FindActiveByUser(ctx, c.CompanyID, c.UserID, true); err == nil {
				return errActiveExists
			} else if !errors.Is(err, uow.ErrNotFound) {
				return err
			}
		}

		now := time.Now().UTC()
		if err := r.Custodies.TransitionStatus(ctx, c.ID, from, to, now); err != nil {
			if errors.Is(err, uow.ErrStale) {
				return apperrors.NewConflictError("custody changed concurrently", apperrors.ErrCodeInvalidStatus)
			}
			return err
		}
		fresh, err := r.Custodies.GetByID(ctx, c.ID)
		if err != nil {
			return err
		}
		updated = FromDataModel(fresh)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("custody status changed", "custody_id", id, "from", from, "to", to, "actor_id", actor.UserID)
	_ = s.publisher.Publish(ctx, events.NewCustodyStatusChangedEvent(updated.ID, updated.CompanyID, updated.UserID, from, to, actor.UserID))
	return updated, nil
}

func (s *Service) load(ctx context.Context, id string) (*Custody, error) {
	row, err := s.uow.Repos().Custodies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return nil, errNotFound
		}
		return nil, err
	}
	return FromDataModel(row), nil
}

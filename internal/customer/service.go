package customer

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/common/validation"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
)

type CreateCustomerDTO struct {
	Name  string `json:"name" validate:"required,min=2,max=200"`
	Phone string `json:"phone" validate:"max=32"`
	Email string `json:"email" validate:"omitempty,email"`
}

type Service struct {
	repo   uow.CustomerRepository
	logger *slog.Logger
}

func NewService(repo uow.CustomerRepository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// canUse covers the collectors who record payments and the back office.
func canUse(actor authz.Actor) error {
	if actor.Can(authz.CollectCustomerPayment) || actor.Can(authz.ViewAll) {
		return nil
	}
	return apperrors.ErrForbidden
}

func (s *Service) List(ctx context.Context, actor authz.Actor, query string, limit int) ([]*Customer, error) {
	if err := canUse(actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, actor.CompanyID, query, limit)
	if err != nil {
		s.logger.Error("failed to list customers", "error", err)
		return nil, err
	}
	out := make([]*Customer, len(rows))
	for i, r := range rows {
		out[i] = FromDataModel(r)
	}
	return out, nil
}

// Create is get-or-create by name so repeated submissions do not duplicate customers.
func (s *Service) Create(ctx context.Context, actor authz.Actor, dto CreateCustomerDTO) (*Customer, bool, error) {
	if err := canUse(actor); err != nil {
		return nil, false, err
	}
	if err := validation.Struct(dto); err != nil {
		return nil, false, err
	}
	row, created, err := Resolve(ctx, s.repo, actor.CompanyID, actor.UserID, Ref{Name: dto.Name, Phone: dto.Phone, Email: dto.Email})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("customer created", "customer_id", row.ID, "created_by", actor.UserID)
	}
	return FromDataModel(row), created, nil
}

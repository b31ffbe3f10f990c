package policy

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/common/validation"
	policydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/policy"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
)

type Service struct {
	repo   RepositoryAPI
	policy authz.Policy
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, policy authz.Policy, logger *slog.Logger) *Service {
	return &Service{repo: repo, policy: policy, logger: logger}
}

var errNotFound = apperrors.NewNotFoundError("policy not found", apperrors.ErrCodePolicyNotFound)

// List returns the company's active policies in evaluation order. Policy managers may ask
// for inactive ones too.
func (s *Service) List(ctx context.Context, actor authz.Actor, includeInactive bool) ([]*Policy, error) {
	activeOnly := !(includeInactive && actor.Can(authz.ManagePolicies))
	rows, err := s.repo.List(ctx, actor.CompanyID, activeOnly)
	if err != nil {
		s.logger.Error("failed to list policies", "error", err)
		return nil, err
	}
	out := make([]*Policy, len(rows))
	for i, r := range rows {
		out[i] = FromDataModel(r)
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, actor authz.Actor, dto CreatePolicyDTO) (*Policy, error) {
	if err := s.policy.Require(actor, authz.ManagePolicies); err != nil {
		return nil, err
	}
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &Policy{
		ID:          uuid.NewString(),
		CompanyID:   actor.CompanyID,
		Name:        strings.TrimSpace(dto.Name),
		Description: strings.TrimSpace(dto.Description),
		Rules: policydm.Rules{
			AutoApproveAmount:        dto.Rules.AutoApproveAmount,
			RequireAttachmentAbove:   dto.Rules.RequireAttachmentAbove,
			RequireApproval:          dto.Rules.RequireApproval,
			MaxAmountWithoutApproval: dto.Rules.MaxAmountWithoutApproval,
			AllowedCategories:        dto.Rules.AllowedCategories,
			BlockedCategories:        dto.Rules.BlockedCategories,
		},
		Priority:  dto.Priority,
		IsActive:  dto.IsActive == nil || *dto.IsActive,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, ToDataModel(p)); err != nil {
		s.logger.Error("failed to create policy", "error", err)
		return nil, err
	}
	s.logger.Info("policy created", "policy_id", p.ID, "name", p.Name, "priority", p.Priority)
	return p, nil
}

// Toggle flips is_active. Expenses already submitted are not re-checked.
func (s *Service) Toggle(ctx context.Context, actor authz.Actor, id string) (*Policy, error) {
	if err := s.policy.Require(actor, authz.ManagePolicies); err != nil {
		return nil, err
	}
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return nil, errNotFound
		}
		return nil, err
	}
	if err := s.policy.Scope(actor, row.CompanyID, errNotFound); err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, id, !row.IsActive); err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return nil, errNotFound
		}
		return nil, err
	}
	row.IsActive = !row.IsActive
	s.logger.Info("policy toggled", "policy_id", id, "is_active", row.IsActive)
	return FromDataModel(row), nil
}

// ActiveSet loads the rules an expense of the company must satisfy.
func (s *Service) ActiveSet(ctx context.Context, companyID string) (Set, error) {
	rows, err := s.repo.List(ctx, companyID, true)
	if err != nil {
		return nil, err
	}
	set := make(Set, len(rows))
	for i, r := range rows {
		set[i] = FromDataModel(r)
	}
	return set, nil
}

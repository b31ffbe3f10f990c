package member

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/common/validation"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
)

type Service struct {
	repo       RepositoryAPI
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, bcryptCost: bcryptCost, logger: logger}
}

var (
	errNotFound    = apperrors.NewNotFoundError("member not found", apperrors.ErrCodeMemberNotFound)
	errInvalidRole = apperrors.NewValidationFieldError("role", "unknown role", apperrors.ErrCodeInvalidRole)
	errOwnerGrant  = apperrors.NewForbiddenError("only owners may grant or revoke the owner role", apperrors.ErrCodeForbidden)
)

// FindMember returns nil without error when the member does not exist.
func (s *Service) FindMember(ctx context.Context, id string) (*Member, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return FromDataModel(row), nil
}

// FindByEmail returns nil without error when no member uses the address.
func (s *Service) FindByEmail(ctx context.Context, email string) (*Member, error) {
	row, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return FromDataModel(row), nil
}

func (s *Service) Me(ctx context.Context, actor authz.Actor) (*Member, error) {
	m, err := s.FindMember(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errNotFound
	}
	m.Capabilities = authz.Capabilities(m.Role)
	return m, nil
}

// List returns the members of the actor's company.
func (s *Service) List(ctx context.Context, actor authz.Actor, limit, offset int) ([]*Member, error) {
	rows, err := s.repo.List(ctx, actor.CompanyID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list members", "error", err)
		return nil, err
	}
	out := make([]*Member, len(rows))
	for i, r := range rows {
		out[i] = FromDataModel(r)
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, actor authz.Actor, dto CreateMemberDTO) (*Member, error) {
	if !actor.Can(authz.ManageUsers) {
		return nil, apperrors.ErrForbidden
	}
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}
	role, ok := authz.ParseRole(dto.Role)
	if !ok {
		return nil, errInvalidRole
	}
	if role == authz.RoleOwner && actor.Role != authz.RoleOwner {
		return nil, errOwnerGrant
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	now := time.Now().UTC()
	m := &Member{
		ID:           uuid.NewString(),
		CompanyID:    actor.CompanyID,
		Email:        normalizeEmail(dto.Email),
		FullName:     strings.TrimSpace(dto.FullName),
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, ToDataModel(m)); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.NewConflictError("email is already registered", apperrors.ErrCodeDuplicate)
		}
		s.logger.Error("failed to create member", "error", err)
		return nil, err
	}
	s.logger.Info("member created", "member_id", m.ID, "role", m.Role, "created_by", actor.UserID)
	return m, nil
}

// ChangeRole updates a member's role. Touching the owner role either way needs an owner.
func (s *Service) ChangeRole(ctx context.Context, actor authz.Actor, id string, dto ChangeRoleDTO) (*Member, error) {
	if !actor.Can(authz.ManageUsers) {
		return nil, apperrors.ErrForbidden
	}
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}
	role, ok := authz.ParseRole(dto.Role)
	if !ok {
		return nil, errInvalidRole
	}

	m, err := s.FindMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errNotFound
	}
	if m.CompanyID != actor.CompanyID {
		return nil, errNotFound
	}
	if (role == authz.RoleOwner || m.Role == authz.RoleOwner) && actor.Role != authz.RoleOwner {
		return nil, errOwnerGrant
	}
	if m.Role == role {
		return m, nil
	}

	if err := s.repo.UpdateRole(ctx, id, string(role)); err != nil {
		return nil, err
	}
	s.logger.Info("member role changed", "member_id", id, "from", m.Role, "to", role, "changed_by", actor.UserID)
	m.Role = role
	return m, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

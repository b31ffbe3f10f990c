package category

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/common/validation"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

var errNotFound = apperrors.NewNotFoundError("category not found", apperrors.ErrCodeCategoryNotFound)

// List returns the company's active categories. Category managers may ask for inactive ones too.
func (s *Service) List(ctx context.Context, actor authz.Actor, includeInactive bool) ([]*Category, error) {
	activeOnly := !(includeInactive && actor.Can(authz.ManageCategories))
	rows, err := s.repo.List(ctx, actor.CompanyID, activeOnly)
	if err != nil {
		s.logger.Error("failed to list categories", "error", err)
		return nil, err
	}
	out := make([]*Category, len(rows))
	for i, r := range rows {
		out[i] = FromDataModel(r)
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, actor authz.Actor, dto CreateCategoryDTO) (*Category, error) {
	if !actor.Can(authz.ManageCategories) {
		return nil, apperrors.ErrForbidden
	}
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &Category{
		ID:          uuid.NewString(),
		CompanyID:   actor.CompanyID,
		Name:        strings.TrimSpace(dto.Name),
		Description: strings.TrimSpace(dto.Description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, ToDataModel(c)); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.NewConflictError("a category with this name already exists", apperrors.ErrCodeDuplicate)
		}
		s.logger.Error("failed to create category", "error", err)
		return nil, err
	}
	s.logger.Info("category created", "category_id", c.ID, "name", c.Name)
	return c, nil
}

// Deactivate hides the category from new expenses. Existing expenses keep it.
func (s *Service) Deactivate(ctx context.Context, actor authz.Actor, id string) (*Category, error) {
	if !actor.Can(authz.ManageCategories) {
		return nil, apperrors.ErrForbidden
	}
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return nil, errNotFound
		}
		return nil, err
	}
	if row.CompanyID != actor.CompanyID {
		return nil, errNotFound
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return nil, err
	}
	row.IsActive = false
	s.logger.Info("category deactivated", "category_id", id)
	return FromDataModel(row), nil
}

// IsActive reports whether the category exists, belongs to the company and is active.
func (s *Service) IsActive(ctx context.Context, companyID, id string) (bool, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return row.CompanyID == companyID && row.IsActive, nil
}

package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ListForUser returns the actor's own notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, actor authz.Actor, q ListQuery) ([]*Notification, error) {
	rows, err := s.repo.ListForUser(ctx, actor.UserID, q)
	if err != nil {
		return nil, err
	}
	out := make([]*Notification, len(rows))
	for i, r := range rows {
		out[i] = FromDataModel(r)
	}
	return out, nil
}

// MarkRead is idempotent. Someone else's notification reads as missing.
func (s *Service) MarkRead(ctx context.Context, actor authz.Actor, id string) error {
	if err := s.repo.MarkRead(ctx, id, actor.UserID, time.Now().UTC()); err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return apperrors.NewNotFoundError("notification not found", apperrors.ErrCodeNotificationMissing)
		}
		return err
	}
	return nil
}

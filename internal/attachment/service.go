package attachment

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
)

type Upload struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type Service struct {
	store    Store
	maxBytes int64
	now      func() time.Time
	logger   *slog.Logger
}

func NewService(store Store, maxBytes int64, logger *slog.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Service{store: store, maxBytes: maxBytes, now: time.Now, logger: logger}
}

func requiredCapability(kind Kind) authz.Capability {
	if kind == KindCustomerPayment {
		return authz.CollectCustomerPayment
	}
	return authz.SubmitExpense
}

// Upload writes the file at the canonical key for the actor and returns that key.
func (s *Service) Upload(ctx context.Context, actor authz.Actor, kind Kind, filename, contentType string, r io.Reader) (*Upload, error) {
	if !actor.Can(requiredCapability(kind)) {
		return nil, apperrors.ErrForbidden
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, errInvalid("file name is required")
	}

	key := BuildPath(actor.CompanyID, kind, actor.UserID, s.now(), filename)
	limited := io.LimitReader(r, s.maxBytes+1)
	n, err := s.store.Put(ctx, key, limited, contentType)
	if err != nil {
		s.logger.Error("failed to store attachment", "key", key, "error", err)
		return nil, apperrors.NewInternalError("failed to store attachment", err)
	}
	if n > s.maxBytes {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to remove oversized attachment", "key", key, "error", err)
		}
		return nil, errInvalid("attachment is too large")
	}

	s.logger.Info("attachment stored", "key", key, "size", n, "user_id", actor.UserID)
	return &Upload{Path: key, Size: n, ContentType: contentType}, nil
}

// Verify checks that the path sits under the actor's prefix for the kind and exists.
func (s *Service) Verify(ctx context.Context, actor authz.Actor, kind Kind, path string) error {
	if err := CheckPath(actor.CompanyID, kind, actor.UserID, path); err != nil {
		return err
	}
	ok, err := s.store.Exists(ctx, strings.TrimSpace(path))
	if err != nil {
		s.logger.Error("failed to check attachment", "key", path, "error", err)
		return apperrors.NewInternalError("failed to check attachment", err)
	}
	if !ok {
		return errInvalid("attachment was not uploaded")
	}
	return nil
}

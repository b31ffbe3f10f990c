package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	notificationdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/notification"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
	"github.com/frahmantamala/custody-ledger/internal/notification"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notificationdm.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, q notification.ListQuery) ([]*notificationdm.Notification, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	tx := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if q.UnreadOnly {
		tx = tx.Where("read_at IS NULL")
	}
	var out []*notificationdm.Notification
	err := tx.Order("created_at DESC").Limit(q.Limit).Offset(q.Offset).Find(&out).Error
	return out, err
}

// MarkRead keeps the first read time.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) error {
	var n notificationdm.Notification
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uow.ErrNotFound
	}
	if err != nil {
		return err
	}
	if n.ReadAt != nil {
		return nil
	}
	return r.db.WithContext(ctx).Model(&notificationdm.Notification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", at).Error
}

package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chineduo/solarhub/internal/domain"
)

type NotificationRepo struct {
	db *gorm.DB
}

func NewNotificationRepo(db *gorm.DB) *NotificationRepo { return &NotificationRepo{db: db} }

func (r *NotificationRepo) Create(ctx context.Context, n *domain.AdminNotification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepo) List(ctx context.Context, unreadOnly bool, page, pageSize int) ([]domain.AdminNotification, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.AdminNotification{})
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var notes []domain.AdminNotification
	err := q.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&notes).Error
	return notes, total, err
}

func (r *NotificationRepo) UnreadCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.AdminNotification{}).
		Where("read = ?", false).
		Count(&count).Error
	return count, err
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&domain.AdminNotification{}).
		Where("id = ? AND read = ?", id, false).
		Updates(map[string]any{"read": true, "read_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n domain.AdminNotification
		if err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
			return translate(err)
		}
	}
	return nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context) error {
	return r.db.WithContext(ctx).Model(&domain.AdminNotification{}).
		Where("read = ?", false).
		Updates(map[string]any{"read": true, "read_at": time.Now()}).Error
}

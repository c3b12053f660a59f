package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AdminNotification is an append-only business event for the admin feed. It
// never mutates business state itself.
type AdminNotification struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Type        string         `gorm:"size:60;index"`
	Title       string         `gorm:"size:180"`
	Message     string         `gorm:"type:text"`
	Data        map[string]any `gorm:"type:jsonb;serializer:json"`
	RelatedID   *uuid.UUID     `gorm:"type:uuid"`
	RelatedType string         `gorm:"size:60"`
	Priority    string         `gorm:"size:12;default:normal"`
	Read        bool           `gorm:"default:false;index"`
	ReadAt      *time.Time
	CreatedAt   time.Time
}

type NotificationRepo interface {
	Create(ctx context.Context, n *AdminNotification) error
	List(ctx context.Context, unreadOnly bool, page, pageSize int) ([]AdminNotification, int64, error)
	UnreadCount(ctx context.Context) (int64, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context) error
}

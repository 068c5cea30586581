package repository

import (
	"context"

	"library-server/internal/domain"
)

// NotificationRepository stores per-user notifications.
type NotificationRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, n *domain.Notification) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	// MarkRead and Delete only touch notifications owned by userID.
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, userID, id int64) error
}

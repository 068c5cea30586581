package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"library-server/internal/domain"
	"library-server/internal/events"
	"library-server/internal/repository"
)

// NotificationService stores per-user notifications and announces each one.
type NotificationService interface {
	Notify(ctx context.Context, n *domain.Notification) error
	List(ctx context.Context, userID int64) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, userID, id int64) error
}

type notificationService struct {
	notifications repository.NotificationRepository
	emitter
}

func NewNotificationService(notifications repository.NotificationRepository, publisher events.Publisher, logger logrus.FieldLogger) NotificationService {
	return &notificationService{
		notifications: notifications,
		emitter:       emitter{publisher: publisher, logger: logger},
	}
}

func (s *notificationService) Notify(ctx context.Context, n *domain.Notification) error {
	if n.Type == "" {
		n.Type = domain.NotificationInfo
	}
	if _, err := s.notifications.Create(ctx, n); err != nil {
		return err
	}

	ev := events.Event{
		Type:   events.NotificationCreated,
		UserID: n.UserID,
		Data: map[string]any{
			"notification_id": n.ID,
			"type":            string(n.Type),
			"title":           n.Title,
			"message":         n.Message,
		},
	}
	if n.BorrowID != nil {
		ev.BorrowID = *n.BorrowID
	}
	s.emit(ctx, ev)
	return nil
}

func (s *notificationService) List(ctx context.Context, userID int64) ([]domain.Notification, error) {
	return s.notifications.ListByUser(ctx, userID)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.notifications.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id int64) error {
	return s.notifications.MarkRead(ctx, userID, id)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}

func (s *notificationService) Delete(ctx context.Context, userID, id int64) error {
	return s.notifications.Delete(ctx, userID, id)
}

package domain

import "time"

type NotificationType string

const (
	NotificationOverdue NotificationType = "overdue"
	NotificationInfo    NotificationType = "info"
)

// Notification is a message addressed to a single user.
type Notification struct {
	ID        int64
	UserID    int64
	BorrowID  *int64
	Type      NotificationType
	Title     string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

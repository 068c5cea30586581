package events

import (
	"context"
	"time"
)

// Type doubles as the AMQP routing key.
type Type string

const (
	BorrowRequested     Type = "borrow.requested"
	BorrowApproved      Type = "borrow.approved"
	BorrowRejected      Type = "borrow.rejected"
	BorrowReturned      Type = "borrow.returned"
	BorrowOverdue       Type = "borrow.overdue"
	NotificationCreated Type = "notification.created"
	UserBanned          Type = "user.banned"
	UserUnbanned        Type = "user.unbanned"
)

// Event is the JSON body published for every lifecycle change.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	UserID     int64          `json:"user_id,omitempty"`
	BookID     int64          `json:"book_id,omitempty"`
	BorrowID   int64          `json:"borrow_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher delivers events to downstream consumers. Callers treat delivery
// as best effort: a failed publish is logged and never fails the request.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }

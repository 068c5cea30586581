package repository

import (
	"context"
	"time"

	"library-server/internal/domain"
)

// BorrowRepository is the Borrow Ledger. Every method that changes a record's
// status also adjusts the book's copy counter inside the same transaction.
type BorrowRepository interface {
	Init(ctx context.Context) error
	// Create inserts a pending record. It fails with ErrNoCopiesAvailable when
	// the book has no available copy and ErrAlreadyBorrowed when the user still
	// holds an active record for the book.
	Create(ctx context.Context, record *domain.BorrowRecord) (int64, error)
	Get(ctx context.Context, id int64) (*domain.BorrowRecord, error)
	// Approve moves pending -> borrowed and takes one available copy.
	Approve(ctx context.Context, id int64, at time.Time) (*domain.BorrowRecord, error)
	// Reject moves pending -> rejected.
	Reject(ctx context.Context, id int64, reason string, at time.Time) (*domain.BorrowRecord, error)
	// Return moves borrowed|overdue -> returned, gives the copy back and
	// stores the fine computed from the record's due date.
	Return(ctx context.Context, id int64, at time.Time, fine FineFunc) (*domain.BorrowRecord, error)
	// MarkOverdue moves every borrowed record due before now to overdue.
	MarkOverdue(ctx context.Context, now time.Time) ([]domain.BorrowRecord, error)
	ListByUser(ctx context.Context, userID int64, statuses ...domain.BorrowStatus) ([]domain.BorrowRecord, error)
	ListByStatuses(ctx context.Context, statuses ...domain.BorrowStatus) ([]domain.BorrowRecord, error)
}

// FineFunc computes the fine owed for a copy due at due and returned at returned.
type FineFunc func(due, returned time.Time) float64

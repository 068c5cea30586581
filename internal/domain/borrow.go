package domain

import "time"

type BorrowStatus string

const (
	BorrowStatusPending  BorrowStatus = "pending"
	BorrowStatusBorrowed BorrowStatus = "borrowed"
	BorrowStatusRejected BorrowStatus = "rejected"
	BorrowStatusOverdue  BorrowStatus = "overdue"
	BorrowStatusReturned BorrowStatus = "returned"
)

// ActiveBorrowStatuses are the states in which a record still holds (or is
// about to hold) a copy of its book.
var ActiveBorrowStatuses = []BorrowStatus{
	BorrowStatusPending,
	BorrowStatusBorrowed,
	BorrowStatusOverdue,
}

// Terminal reports whether no further transition is possible.
func (s BorrowStatus) Terminal() bool {
	return s == BorrowStatusRejected || s == BorrowStatusReturned
}

// OnLoan reports whether the record currently holds a copy.
func (s BorrowStatus) OnLoan() bool {
	return s == BorrowStatusBorrowed || s == BorrowStatusOverdue
}

func (s BorrowStatus) Valid() bool {
	switch s {
	case BorrowStatusPending, BorrowStatusBorrowed, BorrowStatusRejected, BorrowStatusOverdue, BorrowStatusReturned:
		return true
	}
	return false
}

// BorrowRecord is one user's request/loan lifecycle for one copy of a book.
// Records are never deleted, only transitioned.
type BorrowRecord struct {
	ID           int64
	BookID       int64
	BookTitle    string
	UserID       int64
	UserName     string
	UserEmail    string
	Status       BorrowStatus
	BorrowDays   int
	RequestDate  time.Time
	BorrowDate   *time.Time
	DueDate      *time.Time
	ReturnDate   *time.Time
	FineAmount   float64
	RejectReason string
	UpdatedAt    time.Time

	// Book is attached by listing operations. For deleted books it only carries
	// the id and the title snapshot.
	Book *Book
}

// Receipt confirms a borrow request to the member who made it.
type Receipt struct {
	TransactionID int64
	BookTitle     string
	UserName      string
	RequestDate   time.Time
	Status        BorrowStatus
	Note          string
}

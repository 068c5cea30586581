package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
	KindUnauthorized
	// KindRejected is a request the library refuses for a business reason
	// (duplicate ISBN, no copies left). Reported like a validation failure.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindRejected:
		return "rejected"
	default:
		return "internal"
	}
}

// Error is a user-facing failure. Message is safe to show to clients verbatim.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on both kind and message so sentinel values compare by identity of meaning.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Validationf(format string, args ...any) error {
	return newError(KindValidation, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return newError(KindNotFound, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return newError(KindConflict, fmt.Sprintf(format, args...))
}

func Forbiddenf(format string, args ...any) error {
	return newError(KindForbidden, fmt.Sprintf(format, args...))
}

func Rejectedf(format string, args ...any) error {
	return newError(KindRejected, fmt.Sprintf(format, args...))
}

// KindOf reports the kind of err, or KindInternal for errors outside the catalogue.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Message returns the client-facing message of err, or fallback for internal errors.
func Message(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return fallback
}

var (
	ErrBookNotFound         = newError(KindNotFound, "Book not found")
	ErrBorrowNotFound       = newError(KindNotFound, "Borrow record not found")
	ErrUserNotFound         = newError(KindNotFound, "User not found")
	ErrNotificationNotFound = newError(KindNotFound, "Notification not found")

	ErrNoCopiesAvailable  = newError(KindRejected, "No copies available")
	ErrAlreadyBorrowed    = newError(KindRejected, "You have already borrowed or requested this book")
	ErrDuplicateISBN      = newError(KindRejected, "Book with this ISBN already exists")
	ErrBookOnLoan         = newError(KindRejected, "Cannot delete book that is currently borrowed")
	ErrEmailRegistered    = newError(KindRejected, "Email already registered")
	ErrCannotBanAdmin     = newError(KindRejected, "Cannot ban admin users")
	ErrInvalidCredentials = newError(KindRejected, "Invalid email or password")

	ErrAlreadyReturned = newError(KindConflict, "Book already returned")
	ErrInventoryBounds = newError(KindConflict, "Inventory update would leave copies out of range")
	ErrCopiesOnLoan    = newError(KindConflict, "Total copies cannot be lower than copies currently on loan")

	ErrUnauthenticated = newError(KindUnauthorized, "Not authenticated")
	ErrInvalidToken    = newError(KindUnauthorized, "Could not validate credentials")
	ErrAdminRequired   = newError(KindForbidden, "Admin access required")
	ErrNotOwner        = newError(KindForbidden, "Not allowed to act on this record")
)

// BannedError is returned to banned users on login and on every authenticated call.
func BannedError(reason string) error {
	if reason == "" {
		reason = "No reason provided"
	}
	return Forbiddenf("Account is banned. Reason: %s", reason)
}

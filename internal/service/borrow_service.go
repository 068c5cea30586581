package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"library-server/internal/domain"
	"library-server/internal/events"
	"library-server/internal/metrics"
	"library-server/internal/repository"
)

const (
	DefaultBorrowDays = 14
	MaxBorrowDays     = 30

	receiptNote = "Your request is pending approval. Please screenshot this receipt and present it to collect your book."
	dateLayout  = "2006-01-02"
)

// BorrowConfig tunes the lifecycle engine.
type BorrowConfig struct {
	DefaultDays int
	MaxDays     int
	Fines       FinePolicy
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// BorrowService drives borrow records through their lifecycle.
type BorrowService interface {
	RequestBorrow(ctx context.Context, user *domain.User, bookID int64, borrowDays int) (*domain.Receipt, error)
	Approve(ctx context.Context, id int64) (*domain.BorrowRecord, error)
	Reject(ctx context.Context, id int64, reason string) (*domain.BorrowRecord, error)
	// Return is allowed to the record's owner and to admins.
	Return(ctx context.Context, actor *domain.User, id int64) (*domain.BorrowRecord, error)
	// SweepOverdue flips every borrowed record due before now to overdue
	// and notifies the borrowers. It reports how many records changed.
	SweepOverdue(ctx context.Context, now time.Time) (int, error)

	MyActive(ctx context.Context, userID int64) ([]domain.BorrowRecord, error)
	History(ctx context.Context, userID int64) ([]domain.BorrowRecord, error)
	Pending(ctx context.Context) ([]domain.BorrowRecord, error)
	// All lists every record, optionally restricted to one status.
	All(ctx context.Context, status domain.BorrowStatus) ([]domain.BorrowRecord, error)
}

type borrowService struct {
	borrows       repository.BorrowRepository
	books         repository.BookRepository
	notifications NotificationService
	cfg           BorrowConfig
	logger        logrus.FieldLogger
	emitter
}

func NewBorrowService(
	borrows repository.BorrowRepository,
	books repository.BookRepository,
	notifications NotificationService,
	publisher events.Publisher,
	logger logrus.FieldLogger,
	cfg BorrowConfig,
) BorrowService {
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = DefaultBorrowDays
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = MaxBorrowDays
	}
	if cfg.DefaultDays > cfg.MaxDays {
		cfg.DefaultDays = cfg.MaxDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &borrowService{
		borrows:       borrows,
		books:         books,
		notifications: notifications,
		cfg:           cfg,
		logger:        logger,
		emitter:       emitter{publisher: publisher, logger: logger},
	}
}

func (s *borrowService) RequestBorrow(ctx context.Context, user *domain.User, bookID int64, borrowDays int) (*domain.Receipt, error) {
	if user.IsBanned {
		return nil, domain.BannedError(user.BanReason)
	}
	if bookID <= 0 {
		return nil, domain.Validationf("book_id is required")
	}
	if borrowDays == 0 {
		borrowDays = s.cfg.DefaultDays
	}
	if borrowDays < 1 || borrowDays > s.cfg.MaxDays {
		return nil, domain.Validationf("borrow_days must be between 1 and %d", s.cfg.MaxDays)
	}

	rec := &domain.BorrowRecord{
		BookID:      bookID,
		UserID:      user.ID,
		UserName:    user.Name,
		UserEmail:   user.Email,
		BorrowDays:  borrowDays,
		RequestDate: s.cfg.Now(),
	}
	if _, err := s.borrows.Create(ctx, rec); err != nil {
		return nil, err
	}

	metrics.BorrowTransitions.WithLabelValues(metrics.TransitionRequest).Inc()
	s.emit(ctx, borrowEvent(events.BorrowRequested, rec, nil))
	s.logger.WithFields(logrus.Fields{
		"borrow_id": rec.ID,
		"book_id":   rec.BookID,
		"user_id":   rec.UserID,
	}).Info("borrow requested")

	return &domain.Receipt{
		TransactionID: rec.ID,
		BookTitle:     rec.BookTitle,
		UserName:      user.Name,
		RequestDate:   rec.RequestDate,
		Status:        rec.Status,
		Note:          receiptNote,
	}, nil
}

func (s *borrowService) Approve(ctx context.Context, id int64) (*domain.BorrowRecord, error) {
	rec, err := s.borrows.Approve(ctx, id, s.cfg.Now())
	if err != nil {
		return nil, err
	}

	metrics.BorrowTransitions.WithLabelValues(metrics.TransitionApprove).Inc()
	s.emit(ctx, borrowEvent(events.BorrowApproved, rec, map[string]any{"due_date": rec.DueDate}))
	s.notify(ctx, rec, domain.NotificationInfo, "Borrow request approved",
		fmt.Sprintf("Your request for %q was approved. Please return it by %s.", rec.BookTitle, rec.DueDate.Format(dateLayout)))
	return rec, nil
}

func (s *borrowService) Reject(ctx context.Context, id int64, reason string) (*domain.BorrowRecord, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > 500 {
		return nil, domain.Validationf("reason must be at most 500 characters")
	}
	rec, err := s.borrows.Reject(ctx, id, reason, s.cfg.Now())
	if err != nil {
		return nil, err
	}

	metrics.BorrowTransitions.WithLabelValues(metrics.TransitionReject).Inc()
	s.emit(ctx, borrowEvent(events.BorrowRejected, rec, map[string]any{"reason": reason}))

	msg := fmt.Sprintf("Your request for %q was rejected.", rec.BookTitle)
	if reason != "" {
		msg += " Reason: " + reason
	}
	s.notify(ctx, rec, domain.NotificationInfo, "Borrow request rejected", msg)
	return rec, nil
}

func (s *borrowService) Return(ctx context.Context, actor *domain.User, id int64) (*domain.BorrowRecord, error) {
	current, err := s.borrows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != actor.ID && !actor.IsAdmin() {
		return nil, domain.ErrNotOwner
	}

	rec, err := s.borrows.Return(ctx, id, s.cfg.Now(), s.cfg.Fines.Fine)
	if err != nil {
		return nil, err
	}

	metrics.BorrowTransitions.WithLabelValues(metrics.TransitionReturn).Inc()
	s.emit(ctx, borrowEvent(events.BorrowReturned, rec, map[string]any{"fine_amount": rec.FineAmount}))
	if rec.FineAmount > 0 {
		metrics.FinesCharged.Add(rec.FineAmount)
		s.notify(ctx, rec, domain.NotificationInfo, "Late return fine",
			fmt.Sprintf("%q was returned after its due date. A fine of $%.2f was charged.", rec.BookTitle, rec.FineAmount))
	}
	return rec, nil
}

func (s *borrowService) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	flipped, err := s.borrows.MarkOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	for i := range flipped {
		rec := &flipped[i]
		metrics.BorrowTransitions.WithLabelValues(metrics.TransitionOverdue).Inc()
		metrics.OverdueSwept.Inc()
		s.emit(ctx, borrowEvent(events.BorrowOverdue, rec, map[string]any{"due_date": rec.DueDate}))

		due := ""
		if rec.DueDate != nil {
			due = rec.DueDate.Format(dateLayout)
		}
		s.notify(ctx, rec, domain.NotificationOverdue, "Book overdue",
			fmt.Sprintf("%q was due on %s. Please return it as soon as possible; a fine of $%.2f per day applies.",
				rec.BookTitle, due, s.cfg.Fines.rate()))
	}
	return len(flipped), nil
}

func (s *borrowService) MyActive(ctx context.Context, userID int64) ([]domain.BorrowRecord, error) {
	records, err := s.borrows.ListByUser(ctx, userID, domain.ActiveBorrowStatuses...)
	if err != nil {
		return nil, err
	}
	return s.attachBooks(ctx, records)
}

func (s *borrowService) History(ctx context.Context, userID int64) ([]domain.BorrowRecord, error) {
	records, err := s.borrows.ListByUser(ctx, userID, domain.BorrowStatusReturned, domain.BorrowStatusRejected)
	if err != nil {
		return nil, err
	}
	return s.attachBooks(ctx, records)
}

func (s *borrowService) Pending(ctx context.Context) ([]domain.BorrowRecord, error) {
	records, err := s.borrows.ListByStatuses(ctx, domain.BorrowStatusPending)
	if err != nil {
		return nil, err
	}
	return s.attachBooks(ctx, records)
}

func (s *borrowService) All(ctx context.Context, status domain.BorrowStatus) ([]domain.BorrowRecord, error) {
	var statuses []domain.BorrowStatus
	if status != "" {
		if !status.Valid() {
			return nil, domain.Validationf("Unknown borrow status %q", status)
		}
		statuses = append(statuses, status)
	}
	records, err := s.borrows.ListByStatuses(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return s.attachBooks(ctx, records)
}

func (s *borrowService) attachBooks(ctx context.Context, records []domain.BorrowRecord) ([]domain.BorrowRecord, error) {
	cache := make(map[int64]*domain.Book)
	for i := range records {
		rec := &records[i]
		book, ok := cache[rec.BookID]
		if !ok {
			var err error
			book, err = s.books.Get(ctx, rec.BookID)
			switch {
			case errors.Is(err, domain.ErrBookNotFound):
				book = &domain.Book{ID: rec.BookID, Title: rec.BookTitle}
			case err != nil:
				return nil, err
			}
			cache[rec.BookID] = book
		}
		rec.Book = book
	}
	return records, nil
}

func (s *borrowService) notify(ctx context.Context, rec *domain.BorrowRecord, typ domain.NotificationType, title, message string) {
	borrowID := rec.ID
	n := &domain.Notification{
		UserID:   rec.UserID,
		BorrowID: &borrowID,
		Type:     typ,
		Title:    title,
		Message:  message,
	}
	if err := s.notifications.Notify(ctx, n); err != nil {
		s.logger.WithError(err).WithField("borrow_id", rec.ID).Warn("create notification")
	}
}

func borrowEvent(typ events.Type, rec *domain.BorrowRecord, data map[string]any) events.Event {
	if data == nil {
		data = map[string]any{}
	}
	data["status"] = string(rec.Status)
	data["book_title"] = rec.BookTitle
	return events.Event{
		Type:     typ,
		UserID:   rec.UserID,
		BookID:   rec.BookID,
		BorrowID: rec.ID,
		Data:     data,
	}
}

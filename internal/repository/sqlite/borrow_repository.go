package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"library-server/internal/domain"
	"library-server/internal/repository"
)

const createBorrowRecordsTable = `
CREATE TABLE IF NOT EXISTS borrow_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id INTEGER NOT NULL,
	book_title TEXT NOT NULL DEFAULT '',
	user_id INTEGER NOT NULL,
	user_name TEXT NOT NULL DEFAULT '',
	user_email TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	borrow_days INTEGER NOT NULL,
	request_date DATETIME NOT NULL,
	borrow_date DATETIME NULL,
	due_date DATETIME NULL,
	return_date DATETIME NULL,
	fine_amount REAL NOT NULL DEFAULT 0 CHECK (fine_amount >= 0),
	reject_reason TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_borrow_records_user_status ON borrow_records(user_id, status);
CREATE INDEX IF NOT EXISTS idx_borrow_records_book_status ON borrow_records(book_id, status);
CREATE INDEX IF NOT EXISTS idx_borrow_records_status ON borrow_records(status);
`

const borrowColumns = `id, book_id, book_title, user_id, user_name, user_email, status, borrow_days, request_date, borrow_date, due_date, return_date, fine_amount, reject_reason, updated_at`

// BorrowRepository keeps the ledger and the copy counters consistent by running
// every transition in one transaction with guarded UPDATEs.
type BorrowRepository struct {
	db *sql.DB
}

func NewBorrowRepository(db *sql.DB) repository.BorrowRepository {
	return &BorrowRepository{db: db}
}

func (r *BorrowRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createBorrowRecordsTable); err != nil {
		return fmt.Errorf("create borrow_records table: %w", err)
	}
	return nil
}

func (r *BorrowRepository) Create(ctx context.Context, record *domain.BorrowRecord) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	book, err := bookCounters(ctx, tx, record.BookID)
	if err != nil {
		return 0, err
	}
	if book.available <= 0 {
		return 0, domain.ErrNoCopiesAvailable
	}

	var active int
	if err := tx.QueryRowContext(ctx, fmt.Sprintf(`
SELECT COUNT(*) FROM borrow_records
WHERE book_id=? AND user_id=? AND status IN (%s)`, placeholders(len(domain.ActiveBorrowStatuses))),
		append([]any{record.BookID, record.UserID}, statusArgs(domain.ActiveBorrowStatuses)...)...,
	).Scan(&active); err != nil {
		return 0, fmt.Errorf("count user borrows: %w", err)
	}
	if active > 0 {
		return 0, domain.ErrAlreadyBorrowed
	}

	if record.RequestDate.IsZero() {
		record.RequestDate = time.Now()
	}
	record.RequestDate = record.RequestDate.UTC()
	record.UpdatedAt = record.RequestDate
	record.BookTitle = book.title
	record.Status = domain.BorrowStatusPending

	res, err := tx.ExecContext(ctx, `
INSERT INTO borrow_records (book_id, book_title, user_id, user_name, user_email, status, borrow_days, request_date, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.BookID,
		record.BookTitle,
		record.UserID,
		record.UserName,
		record.UserEmail,
		string(record.Status),
		record.BorrowDays,
		record.RequestDate,
		record.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert borrow record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("borrow record last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit borrow request: %w", err)
	}
	record.ID = id
	return id, nil
}

func (r *BorrowRepository) Get(ctx context.Context, id int64) (*domain.BorrowRecord, error) {
	return scanBorrow(r.db.QueryRowContext(ctx, `SELECT `+borrowColumns+` FROM borrow_records WHERE id=?`, id))
}

func (r *BorrowRepository) Approve(ctx context.Context, id int64, at time.Time) (*domain.BorrowRecord, error) {
	at = at.UTC()
	return r.transition(ctx, id, func(tx *sql.Tx, rec *domain.BorrowRecord) error {
		if rec.Status != domain.BorrowStatusPending {
			return notPending(rec.Status)
		}
		if err := decrementOnApprove(ctx, tx, rec.BookID, at); err != nil {
			return err
		}

		due := at.AddDate(0, 0, rec.BorrowDays)
		if err := updateGuarded(ctx, tx, rec, `
UPDATE borrow_records
SET status=?, borrow_date=?, due_date=?, updated_at=?
WHERE id=? AND status=?`,
			string(domain.BorrowStatusBorrowed), at, due, at, rec.ID, string(domain.BorrowStatusPending),
		); err != nil {
			return err
		}

		rec.Status = domain.BorrowStatusBorrowed
		rec.BorrowDate = &at
		rec.DueDate = &due
		rec.UpdatedAt = at
		return nil
	})
}

func (r *BorrowRepository) Reject(ctx context.Context, id int64, reason string, at time.Time) (*domain.BorrowRecord, error) {
	at = at.UTC()
	return r.transition(ctx, id, func(tx *sql.Tx, rec *domain.BorrowRecord) error {
		if rec.Status != domain.BorrowStatusPending {
			return notPending(rec.Status)
		}
		if err := updateGuarded(ctx, tx, rec, `
UPDATE borrow_records
SET status=?, reject_reason=?, updated_at=?
WHERE id=? AND status=?`,
			string(domain.BorrowStatusRejected), reason, at, rec.ID, string(domain.BorrowStatusPending),
		); err != nil {
			return err
		}

		rec.Status = domain.BorrowStatusRejected
		rec.RejectReason = reason
		rec.UpdatedAt = at
		return nil
	})
}

func (r *BorrowRepository) Return(ctx context.Context, id int64, at time.Time, fine repository.FineFunc) (*domain.BorrowRecord, error) {
	at = at.UTC()
	return r.transition(ctx, id, func(tx *sql.Tx, rec *domain.BorrowRecord) error {
		switch {
		case rec.Status == domain.BorrowStatusReturned:
			return domain.ErrAlreadyReturned
		case !rec.Status.OnLoan():
			return domain.Conflictf("Borrow request is not active (status: %s)", rec.Status)
		}

		returned := at
		if rec.BorrowDate != nil && returned.Before(*rec.BorrowDate) {
			returned = *rec.BorrowDate
		}
		amount := 0.0
		if fine != nil && rec.DueDate != nil {
			amount = fine(*rec.DueDate, returned)
		}
		if amount < 0 {
			amount = 0
		}

		if err := incrementOnReturn(ctx, tx, rec.BookID, returned); err != nil {
			return err
		}
		if err := updateGuarded(ctx, tx, rec, `
UPDATE borrow_records
SET status=?, return_date=?, fine_amount=?, updated_at=?
WHERE id=? AND status IN (?, ?)`,
			string(domain.BorrowStatusReturned), returned, amount, returned, rec.ID,
			string(domain.BorrowStatusBorrowed), string(domain.BorrowStatusOverdue),
		); err != nil {
			return err
		}

		rec.Status = domain.BorrowStatusReturned
		rec.ReturnDate = &returned
		rec.FineAmount = amount
		rec.UpdatedAt = returned
		return nil
	})
}

func (r *BorrowRepository) MarkOverdue(ctx context.Context, now time.Time) ([]domain.BorrowRecord, error) {
	now = now.UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	candidates, err := queryBorrows(ctx, tx, `SELECT `+borrowColumns+` FROM borrow_records WHERE status=? ORDER BY id ASC`,
		string(domain.BorrowStatusBorrowed))
	if err != nil {
		return nil, err
	}

	flipped := []domain.BorrowRecord{}
	for _, rec := range candidates {
		// Times are compared in Go: stored DATETIME text does not order reliably.
		if rec.DueDate == nil || !now.After(*rec.DueDate) {
			continue
		}
		res, err := tx.ExecContext(ctx, `
UPDATE borrow_records
SET status=?, updated_at=?
WHERE id=? AND status=?`,
			string(domain.BorrowStatusOverdue), now, rec.ID, string(domain.BorrowStatusBorrowed),
		)
		if err != nil {
			return nil, fmt.Errorf("mark overdue %d: %w", rec.ID, err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("mark overdue %d: %w", rec.ID, err)
		}
		if aff == 0 {
			continue
		}
		rec.Status = domain.BorrowStatusOverdue
		rec.UpdatedAt = now
		flipped = append(flipped, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit overdue sweep: %w", err)
	}
	return flipped, nil
}

func (r *BorrowRepository) ListByUser(ctx context.Context, userID int64, statuses ...domain.BorrowStatus) ([]domain.BorrowRecord, error) {
	query := `SELECT ` + borrowColumns + ` FROM borrow_records WHERE user_id=?`
	args := []any{userID}
	if len(statuses) > 0 {
		query += fmt.Sprintf(` AND status IN (%s)`, placeholders(len(statuses)))
		args = append(args, statusArgs(statuses)...)
	}
	query += ` ORDER BY id DESC`
	return queryBorrows(ctx, r.db, query, args...)
}

func (r *BorrowRepository) ListByStatuses(ctx context.Context, statuses ...domain.BorrowStatus) ([]domain.BorrowRecord, error) {
	query := `SELECT ` + borrowColumns + ` FROM borrow_records`
	var args []any
	if len(statuses) > 0 {
		query += fmt.Sprintf(` WHERE status IN (%s)`, placeholders(len(statuses)))
		args = statusArgs(statuses)
	}
	query += ` ORDER BY id DESC`
	return queryBorrows(ctx, r.db, query, args...)
}

// transition loads the record inside a transaction, lets apply validate and
// mutate it, and commits only when apply succeeds.
func (r *BorrowRepository) transition(ctx context.Context, id int64, apply func(tx *sql.Tx, rec *domain.BorrowRecord) error) (*domain.BorrowRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := scanBorrow(tx.QueryRowContext(ctx, `SELECT `+borrowColumns+` FROM borrow_records WHERE id=?`, id))
	if err != nil {
		return nil, err
	}
	if err := apply(tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit borrow transition: %w", err)
	}
	return rec, nil
}

func updateGuarded(ctx context.Context, tx *sql.Tx, rec *domain.BorrowRecord, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update borrow record %d: %w", rec.ID, err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("borrow update rows affected: %w", err)
	}
	if aff == 0 {
		return domain.Conflictf("Borrow record %d changed concurrently", rec.ID)
	}
	return nil
}

func notPending(status domain.BorrowStatus) error {
	return domain.Conflictf("Borrow request is not pending (status: %s)", status)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryBorrows(ctx context.Context, q querier, query string, args ...any) ([]domain.BorrowRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query borrow records: %w", err)
	}
	defer rows.Close()

	records := []domain.BorrowRecord{}
	for rows.Next() {
		rec, err := scanBorrow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanBorrow(row rowScanner) (*domain.BorrowRecord, error) {
	var (
		rec                             domain.BorrowRecord
		status                          string
		borrowDate, dueDate, returnDate sql.NullTime
	)
	if err := row.Scan(
		&rec.ID,
		&rec.BookID,
		&rec.BookTitle,
		&rec.UserID,
		&rec.UserName,
		&rec.UserEmail,
		&status,
		&rec.BorrowDays,
		&rec.RequestDate,
		&borrowDate,
		&dueDate,
		&returnDate,
		&rec.FineAmount,
		&rec.RejectReason,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBorrowNotFound
		}
		return nil, fmt.Errorf("scan borrow record: %w", err)
	}
	rec.Status = domain.BorrowStatus(status)
	rec.RequestDate = rec.RequestDate.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	rec.BorrowDate = timePtr(borrowDate)
	rec.DueDate = timePtr(dueDate)
	rec.ReturnDate = timePtr(returnDate)
	return &rec, nil
}

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

const createBooksTable = `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	isbn TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	publisher TEXT NOT NULL DEFAULT '',
	published_year INTEGER NOT NULL DEFAULT 0,
	total_copies INTEGER NOT NULL CHECK (total_copies >= 0),
	available_copies INTEGER NOT NULL CHECK (available_copies >= 0 AND available_copies <= total_copies),
	image_url TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const bookColumns = `id, title, author, isbn, category, description, publisher, published_year, total_copies, available_copies, image_url, created_at, updated_at`

type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) repository.BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createBooksTable); err != nil {
		return fmt.Errorf("create books table: %w", err)
	}
	return nil
}

func (r *BookRepository) Create(ctx context.Context, book *domain.Book) (int64, error) {
	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO books (title, author, isbn, category, description, publisher, published_year, total_copies, available_copies, image_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.Title,
		book.Author,
		book.ISBN,
		book.Category,
		book.Description,
		book.Publisher,
		book.PublishedYear,
		book.TotalCopies,
		book.AvailableCopies,
		book.ImageURL,
		book.CreatedAt,
		book.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrDuplicateISBN
		}
		return 0, fmt.Errorf("insert book: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("book last insert id: %w", err)
	}
	book.ID = id
	return id, nil
}

func (r *BookRepository) Update(ctx context.Context, book *domain.Book) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := scanBook(tx.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id=?`, book.ID))
	if err != nil {
		return err
	}

	available := book.TotalCopies - current.OnLoan()
	if available < 0 {
		return domain.ErrCopiesOnLoan
	}

	book.AvailableCopies = available
	book.CreatedAt = current.CreatedAt
	book.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
UPDATE books
SET title=?, author=?, isbn=?, category=?, description=?, publisher=?, published_year=?, total_copies=?, available_copies=?, image_url=?, updated_at=?
WHERE id=?`,
		book.Title,
		book.Author,
		book.ISBN,
		book.Category,
		book.Description,
		book.Publisher,
		book.PublishedYear,
		book.TotalCopies,
		book.AvailableCopies,
		book.ImageURL,
		book.UpdatedAt,
		book.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateISBN
		}
		return fmt.Errorf("update book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit book update: %w", err)
	}
	return nil
}

func (r *BookRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var active int
	if err := tx.QueryRowContext(ctx, fmt.Sprintf(`
SELECT COUNT(*) FROM borrow_records
WHERE book_id=? AND status IN (%s)`, placeholders(len(domain.ActiveBorrowStatuses))),
		append([]any{id}, statusArgs(domain.ActiveBorrowStatuses)...)...,
	).Scan(&active); err != nil {
		return fmt.Errorf("count active borrows: %w", err)
	}
	if active > 0 {
		return domain.ErrBookOnLoan
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if err := expectOneRow(res, domain.ErrBookNotFound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit book delete: %w", err)
	}
	return nil
}

func (r *BookRepository) Get(ctx context.Context, id int64) (*domain.Book, error) {
	return scanBook(r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id=?`, id))
}

func (r *BookRepository) GetByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	return scanBook(r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE isbn=?`, isbn))
}

func (r *BookRepository) List(ctx context.Context, onlyAvailable bool) ([]domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books`
	if onlyAvailable {
		query += ` WHERE available_copies > 0`
	}
	query += ` ORDER BY title COLLATE NOCASE ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	books := []domain.Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *book)
	}
	return books, rows.Err()
}

// decrementOnApprove takes one available copy. It never lets the counter go below zero.
func decrementOnApprove(ctx context.Context, tx *sql.Tx, bookID int64, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
UPDATE books
SET available_copies = available_copies - 1, updated_at=?
WHERE id=? AND available_copies > 0`,
		at.UTC(),
		bookID,
	)
	if err != nil {
		return fmt.Errorf("decrement available copies: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement rows affected: %w", err)
	}
	if aff == 0 {
		if _, err := bookCounters(ctx, tx, bookID); err != nil {
			return err
		}
		return domain.ErrNoCopiesAvailable
	}
	return nil
}

// incrementOnReturn gives one copy back. It never lets the counter exceed total_copies.
func incrementOnReturn(ctx context.Context, tx *sql.Tx, bookID int64, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
UPDATE books
SET available_copies = available_copies + 1, updated_at=?
WHERE id=? AND available_copies < total_copies`,
		at.UTC(),
		bookID,
	)
	if err != nil {
		return fmt.Errorf("increment available copies: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment rows affected: %w", err)
	}
	if aff == 0 {
		if _, err := bookCounters(ctx, tx, bookID); err != nil {
			return err
		}
		return domain.ErrInventoryBounds
	}
	return nil
}

type counters struct {
	title     string
	total     int
	available int
}

func bookCounters(ctx context.Context, tx *sql.Tx, bookID int64) (counters, error) {
	var c counters
	err := tx.QueryRowContext(ctx, `SELECT title, total_copies, available_copies FROM books WHERE id=?`, bookID).
		Scan(&c.title, &c.total, &c.available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, domain.ErrBookNotFound
		}
		return c, fmt.Errorf("read book counters: %w", err)
	}
	return c, nil
}

func scanBook(row rowScanner) (*domain.Book, error) {
	var book domain.Book
	if err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.Category,
		&book.Description,
		&book.Publisher,
		&book.PublishedYear,
		&book.TotalCopies,
		&book.AvailableCopies,
		&book.ImageURL,
		&book.CreatedAt,
		&book.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookNotFound
		}
		return nil, fmt.Errorf("scan book: %w", err)
	}
	return &book, nil
}

func statusArgs(statuses []domain.BorrowStatus) []any {
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return args
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) a sqlite database at the given path and ensures directories exist.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// A single connection serialises writers, so a lifecycle transaction never
	// interleaves with another one touching the same book.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return db, nil
}

// Repositories bundles every sqlite-backed repository sharing one handle.
type Repositories struct {
	Users         *UserRepository
	Books         *BookRepository
	Borrows       *BorrowRepository
	Notifications *NotificationRepository
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Users:         &UserRepository{db: db},
		Books:         &BookRepository{db: db},
		Borrows:       &BorrowRepository{db: db},
		Notifications: &NotificationRepository{db: db},
	}
}

// Init creates all tables in dependency order.
func (r *Repositories) Init(ctx context.Context) error {
	if err := r.Users.Init(ctx); err != nil {
		return err
	}
	if err := r.Books.Init(ctx); err != nil {
		return err
	}
	if err := r.Borrows.Init(ctx); err != nil {
		return err
	}
	return r.Notifications.Init(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

package repository

import (
	"context"

	"library-server/internal/domain"
)

// BookRepository exposes the Book Inventory Store.
type BookRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, book *domain.Book) (int64, error)
	// Update rewrites the catalogue fields and total copies. Available copies
	// are recomputed from the copies currently on loan in the same transaction.
	Update(ctx context.Context, book *domain.Book) error
	// Delete refuses with ErrBookOnLoan while any pending, borrowed or overdue
	// record references the book.
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*domain.Book, error)
	GetByISBN(ctx context.Context, isbn string) (*domain.Book, error)
	List(ctx context.Context, onlyAvailable bool) ([]domain.Book, error)
}

package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-server/internal/domain"
)

func TestCreateBookDefaultsAndImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	book, err := f.books.Create(ctx, BookInput{
		Title:       " Dune ",
		Author:      "Frank Herbert",
		ISBN:        "978-0441013593",
		Genre:       "Science Fiction",
		TotalCopies: intPtr(3),
	}, &ImageUpload{Body: strings.NewReader("cover"), Size: 5, ContentType: "image/webp"})
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "Science Fiction", book.Category)
	assert.Equal(t, 3, book.AvailableCopies)
	assert.True(t, strings.HasPrefix(book.ImageURL, "mem://library/books/"))
	assert.True(t, strings.HasSuffix(book.ImageURL, ".webp"))

	_, err = f.books.Create(ctx, BookInput{Title: "Dune 2", Author: "FH", ISBN: "978-0441013593", TotalCopies: intPtr(1)}, nil)
	assert.ErrorIs(t, err, domain.ErrDuplicateISBN)

	available, err := f.books.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 1)
}

func TestCreateBookValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.books.Create(ctx, BookInput{Author: "A", ISBN: "1", TotalCopies: intPtr(1)}, nil)
	assert.EqualError(t, err, "title is required")

	three := 3
	_, err = f.books.Create(ctx, BookInput{Title: "T", Author: "A", ISBN: "1", TotalCopies: intPtr(2), AvailableCopies: &three}, nil)
	assert.EqualError(t, err, "available_copies cannot exceed total_copies")

	_, err = f.books.Create(ctx, BookInput{Title: "T", Author: "A", ISBN: "1", TotalCopies: intPtr(-1)}, nil)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.books.Create(ctx, BookInput{Title: "T", Author: "A", ISBN: "1", TotalCopies: intPtr(1), PublishedYear: 3000}, nil)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestUpdateBookKeepsLoansConsistent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.member(t, "Tia")
	book := f.book(t, "978-1-01", 2)

	receipt, err := f.borrows.RequestBorrow(ctx, user, book.ID, 5)
	require.NoError(t, err)
	_, err = f.borrows.Approve(ctx, receipt.TransactionID)
	require.NoError(t, err)

	updated, err := f.books.Update(ctx, book.ID, BookInput{
		Title:       "New title",
		Author:      book.Author,
		ISBN:        book.ISBN,
		TotalCopies: intPtr(4),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.AvailableCopies)
	assert.Equal(t, "New title", updated.Title)

	_, err = f.books.Update(ctx, book.ID, BookInput{Title: "x", Author: "y", ISBN: book.ISBN, TotalCopies: intPtr(0)}, nil)
	assert.ErrorIs(t, err, domain.ErrCopiesOnLoan)

	_, err = f.books.Update(ctx, 9999, BookInput{Title: "x", Author: "y", ISBN: "z", TotalCopies: intPtr(1)}, nil)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)
}

func TestBookCopiesDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	single, err := f.books.Create(ctx, BookInput{Title: "T", Author: "A", ISBN: "978-1-07"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, single.TotalCopies)
	assert.Equal(t, 1, single.AvailableCopies)

	book := f.book(t, "978-1-08", 3)
	updated, err := f.books.Update(ctx, book.ID, BookInput{Title: "Renamed", Author: book.Author, ISBN: book.ISBN}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.TotalCopies)
	assert.Equal(t, 3, updated.AvailableCopies)

	got, err := f.books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, 3, got.TotalCopies)
	assert.Equal(t, 3, got.AvailableCopies)
}

func TestWithheldCopiesStayOutOfCirculation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	book, err := f.books.Create(ctx, BookInput{
		Title: "T", Author: "A", ISBN: "978-1-09", TotalCopies: intPtr(3), AvailableCopies: intPtr(1),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, book.OnLoan())

	updated, err := f.books.Update(ctx, book.ID, BookInput{Title: "T", Author: "A", ISBN: "978-1-09", TotalCopies: intPtr(4)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.AvailableCopies)

	_, err = f.books.Update(ctx, book.ID, BookInput{Title: "T", Author: "A", ISBN: "978-1-09", TotalCopies: intPtr(1)}, nil)
	assert.ErrorIs(t, err, domain.ErrCopiesOnLoan)
}

func TestUpdateBookReplacesImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	book, err := f.books.Create(ctx, BookInput{Title: "T", Author: "A", ISBN: "978-1-02", TotalCopies: intPtr(1)},
		&ImageUpload{Body: strings.NewReader("old"), Size: 3, ContentType: "image/png"})
	require.NoError(t, err)

	kept, err := f.books.Update(ctx, book.ID, BookInput{Title: "T", Author: "A", ISBN: "978-1-02", TotalCopies: intPtr(1)}, nil)
	require.NoError(t, err)
	assert.Equal(t, book.ImageURL, kept.ImageURL)

	replaced, err := f.books.Update(ctx, book.ID, BookInput{Title: "T", Author: "A", ISBN: "978-1-02", TotalCopies: intPtr(1)},
		&ImageUpload{Body: strings.NewReader("new"), Size: 3, ContentType: "image/png"})
	require.NoError(t, err)
	assert.NotEqual(t, book.ImageURL, replaced.ImageURL)
	assert.Contains(t, f.store.deleted, book.ImageURL)
}

func TestDeleteBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.member(t, "Uma")

	book, err := f.books.Create(ctx, BookInput{Title: "T", Author: "A", ISBN: "978-1-03", TotalCopies: intPtr(1)},
		&ImageUpload{Body: strings.NewReader("img"), Size: 3, ContentType: "image/gif"})
	require.NoError(t, err)

	receipt, err := f.borrows.RequestBorrow(ctx, user, book.ID, 5)
	require.NoError(t, err)

	err = f.books.Delete(ctx, book.ID)
	assert.ErrorIs(t, err, domain.ErrBookOnLoan)
	assert.Equal(t, domain.KindRejected, domain.KindOf(err))

	_, err = f.borrows.Reject(ctx, receipt.TransactionID, "")
	require.NoError(t, err)
	require.NoError(t, f.books.Delete(ctx, book.ID))
	assert.Contains(t, f.store.deleted, book.ImageURL)

	assert.ErrorIs(t, f.books.Delete(ctx, book.ID), domain.ErrBookNotFound)
}

func TestImportBooks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.book(t, "978-1-04", 1)

	res, err := f.books.Import(ctx, []BookInput{
		{Title: "A", Author: "X", ISBN: "978-1-05", TotalCopies: intPtr(2)},
		{Title: "B", Author: "Y", ISBN: "978-1-04", TotalCopies: intPtr(1)},
		{Title: "", Author: "Z", ISBN: "978-1-06", TotalCopies: intPtr(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed[0], "title is required")

	all, err := f.books.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNotificationOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.member(t, "Val")
	other := f.member(t, "Wes")

	n := &domain.Notification{UserID: owner.ID, Title: "Hello", Message: "Welcome"}
	require.NoError(t, f.notifications.Notify(ctx, n))
	assert.Equal(t, domain.NotificationInfo, n.Type)

	assert.ErrorIs(t, f.notifications.MarkRead(ctx, other.ID, n.ID), domain.ErrNotificationNotFound)
	marked, err := f.notifications.MarkAllRead(ctx, owner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)

	count, err := f.notifications.UnreadCount(ctx, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, f.notifications.Delete(ctx, owner.ID, n.ID))
	list, err := f.notifications.List(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

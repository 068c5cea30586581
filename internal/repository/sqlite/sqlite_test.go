package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-server/internal/domain"
)

func tempRepos(t *testing.T) *Repositories {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := NewRepositories(db)
	require.NoError(t, repos.Init(context.Background()))
	return repos
}

func seedUser(t *testing.T, repos *Repositories, email string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{Name: "Reader " + email, Email: email, PasswordHash: "x", Role: role}
	_, err := repos.Users.Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

func seedBook(t *testing.T, repos *Repositories, isbn string, copies int) *domain.Book {
	t.Helper()
	b := &domain.Book{Title: "Book " + isbn, Author: "Author", ISBN: isbn, TotalCopies: copies, AvailableCopies: copies}
	_, err := repos.Books.Create(context.Background(), b)
	require.NoError(t, err)
	return b
}

func request(t *testing.T, repos *Repositories, user *domain.User, book *domain.Book) *domain.BorrowRecord {
	t.Helper()
	rec := &domain.BorrowRecord{BookID: book.ID, UserID: user.ID, UserName: user.Name, UserEmail: user.Email, BorrowDays: 14}
	_, err := repos.Borrows.Create(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

func TestBorrowLifecycleKeepsCounters(t *testing.T) {
	ctx := context.Background()
	repos := tempRepos(t)
	user := seedUser(t, repos, "alice@example.com", domain.RoleUser)
	book := seedBook(t, repos, "978-1", 2)

	rec := request(t, repos, user, book)
	assert.Equal(t, domain.BorrowStatusPending, rec.Status)
	assert.Equal(t, book.Title, rec.BookTitle)

	got, err := repos.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies, "request must not touch counters")

	approvedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	approved, err := repos.Borrows.Approve(ctx, rec.ID, approvedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowStatusBorrowed, approved.Status)
	require.NotNil(t, approved.DueDate)
	assert.True(t, approved.DueDate.Equal(approvedAt.AddDate(0, 0, 14)))

	got, err = repos.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)

	returned, err := repos.Borrows.Return(ctx, rec.ID, approvedAt.Add(24*time.Hour), func(due, at time.Time) float64 { return 0 })
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)

	stored, err := repos.Borrows.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowStatusReturned, stored.Status)
	assert.False(t, stored.ReturnDate.Before(*stored.BorrowDate))

	got, err = repos.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies)
}

func TestBorrowRequestWithoutCopiesCreatesNothing(t *testing.T) {
	ctx := context.Background()
	repos := tempRepos(t)
	user := seedUser(t, repos, "bob@example.com", domain.RoleUser)
	book := seedBook(t, repos, "978-2", 0)

	_, err := repos.Borrows.Create(ctx, &domain.BorrowRecord{BookID: book.ID, UserID: user.ID, BorrowDays: 14})
	require.ErrorIs(t, err, domain.ErrNoCopiesAvailable)

	all, err := repos.Borrows.ListByStatuses(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBorrowRequestRejectsDuplicateActive(t *testing.T) {
	repos := tempRepos(t)
	user := seedUser(t, repos, "carol@example.com", domain.RoleUser)
	book := seedBook(t, repos, "978-3", 3)
	request(t, repos, user, book)

	_, err := repos.Borrows.Create(context.Background(), &domain.BorrowRecord{BookID: book.ID, UserID: user.ID, BorrowDays: 14})
	assert.ErrorIs(t, err, domain.ErrAlreadyBorrowed)
}

func TestApproveAndRejectAreExclusive(t *testing.T) {
	ctx := context.Background()
	repos := tempRepos(t)
	user := seedUser(t, repos, "dave@example.com", domain.RoleUser)
	book := seedBook(t, repos, "978-4", 1)
	rec := request(t, repos, user, book)

	_, err := repos.Borrows.Reject(ctx, rec.ID, "damaged", time.Now())
	require.NoError(t, err)

	_, err = repos.Borrows.Approve(ctx, rec.ID, time.Now())
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	_, err = repos.Borrows.Reject(ctx, rec.ID, "again", time.Now())
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	got, err := repos.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestConcurrentApprovalsTakeOnlyAvailableCopy(t *testing.T) {
	ctx := context.Background()
	repos := tempRepos(t)
	book := seedBook(t, repos, "978-5", 1)

	const n = 8
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		u := seedUser(t, repos, "member"+string(rune('a'+i))+"@example.com", domain.RoleUser)
		ids[i] = request(t, repos, u, book).ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
		failed   int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := repos.Borrows.Approve(ctx, id, time.Now())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrNoCopiesAvailable)
				failed++
				return
			}
			approved++
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, approved)
	assert.Equal(t, n-1, failed)

	got, err := repos.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)

	borrowed, err := repos.Borrows.ListByStatuses(ctx, domain.BorrowStatusBorrowed)
	require.NoError(t, err)
	assert.Len(t, borrowed, 1)
}

func TestReturnTwiceFails(t *testing.T) {
	ctx := context.Background()
	repos := tempRepos(t)
	user := seedUser(t, repos, "erin@example.com", domain.RoleUser)
	book := seedBook(t, repos, "978-6", 1)
	rec := request(t, repos, user, book)

	_, err := repos.Borrows.Approve(ctx, rec.ID, time.Now())
	require.NoError(t, err)
	_, err = repos.Borrows.Return(ctx, rec.ID, time.Now(), nil)
	require.NoError(t, err)

	_, err = repos.Borrows.Return(ctx, rec.ID, time.Now(), nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyReturned)

	got, err := repos.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestReturnPendingFails(t *testing.T) {
	repos := tempRepos(t)
	user := seedUser(t, repos, "fay@example.com", domain.RoleUser)
	book := seedBook(t, repos, "978-7", 1)
	rec := request(t, repos, user, book)

	_, err := repos.Borrows.Return(context.Background(), rec.ID, time.Now(), nil)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestMarkOverdueOnlyFlipsPastDue(t *testing.T) {
	ctx := context.Background()
	repos := tempRepos(t)
	user := seedUser(t, repos, "gus@example.com", domain.RoleUser)
	early := seedBook(t, repos, "978-8", 1)
	late := seedBook(t, repos, "978-9", 1)

	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	r1 := request(t, repos, user, early)
	r2 := request(t, repos, user, late)
	_, err := repos.Borrows.Approve(ctx, r1.ID, start)
	require.NoError(t, err)
	_, err = repos.Borrows.Approve(ctx, r2.ID, start.AddDate(0, 0, 10))
	require.NoError(t, err)

	flipped, err := repos.Borrows.MarkOverdue(ctx, start.AddDate(0, 0, 15))
	require.NoError(t, err)
	require.Len(t, flipped, 1)
	assert.Equal(t, r1.ID, flipped[0].ID)
	assert.Equal(t, domain.BorrowStatusOverdue, flipped[0].Status)

	again, err := repos.Borrows.MarkOverdue(ctx, start.AddDate(0, 0, 15))
	require.NoError(t, err)
	assert.Empty(t, again)

	got, err := repos.Books.Get(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies, "overdue keeps the copy out")
}

func TestBookUpdateRecomputesAvailability(t *testing.T) {
	ctx := context.Background()
	repos := tempRepos(t)
	user := seedUser(t, repos, "hal@example.com", domain.RoleUser)
	book := seedBook(t, repos, "978-10", 2)
	rec := request(t, repos, user, book)
	_, err := repos.Borrows.Approve(ctx, rec.ID, time.Now())
	require.NoError(t, err)

	book.TotalCopies = 5
	require.NoError(t, repos.Books.Update(ctx, book))
	got, err := repos.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.AvailableCopies)

	book.TotalCopies = 0
	assert.ErrorIs(t, repos.Books.Update(ctx, book), domain.ErrCopiesOnLoan)
}

func TestBookDeleteRefusedWhileActive(t *testing.T) {
	ctx := context.Background()
	repos := tempRepos(t)
	user := seedUser(t, repos, "ivy@example.com", domain.RoleUser)
	book := seedBook(t, repos, "978-11", 1)
	rec := request(t, repos, user, book)

	assert.ErrorIs(t, repos.Books.Delete(ctx, book.ID), domain.ErrBookOnLoan)

	_, err := repos.Borrows.Reject(ctx, rec.ID, "", time.Now())
	require.NoError(t, err)
	require.NoError(t, repos.Books.Delete(ctx, book.ID))

	_, err = repos.Books.Get(ctx, book.ID)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)

	history, err := repos.Borrows.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Book 978-11", history[0].BookTitle)
}

func TestDuplicateISBNAndEmail(t *testing.T) {
	ctx := context.Background()
	repos := tempRepos(t)
	seedBook(t, repos, "978-12", 1)
	_, err := repos.Books.Create(ctx, &domain.Book{Title: "Other", Author: "A", ISBN: "978-12", TotalCopies: 1, AvailableCopies: 1})
	assert.ErrorIs(t, err, domain.ErrDuplicateISBN)

	seedUser(t, repos, "jo@example.com", domain.RoleUser)
	_, err = repos.Users.Create(ctx, &domain.User{Name: "Jo", Email: "JO@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, domain.ErrEmailRegistered)
}

func TestUserBanAndProfile(t *testing.T) {
	ctx := context.Background()
	repos := tempRepos(t)
	user := seedUser(t, repos, "kim@example.com", domain.RoleUser)

	require.NoError(t, repos.Users.SetBan(ctx, user.ID, true, "late fees"))
	got, err := repos.Users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBanned)
	assert.Equal(t, "late fees", got.BanReason)
	assert.NotNil(t, got.BannedAt)

	require.NoError(t, repos.Users.SetBan(ctx, user.ID, false, "ignored"))
	got, err = repos.Users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsBanned)
	assert.Empty(t, got.BanReason)
	assert.Nil(t, got.BannedAt)

	phone := "555-0100"
	require.NoError(t, repos.Users.UpdateProfile(ctx, user.ID, domain.ProfileUpdate{Phone: &phone}))
	got, err = repos.Users.GetByEmail(ctx, "KIM@example.com")
	require.NoError(t, err)
	assert.Equal(t, phone, got.Phone)
	assert.Equal(t, user.Name, got.Name)

	assert.ErrorIs(t, repos.Users.SetBan(ctx, 9999, true, "x"), domain.ErrUserNotFound)
}

func TestNotificationsAreScopedToOwner(t *testing.T) {
	ctx := context.Background()
	repos := tempRepos(t)
	owner := seedUser(t, repos, "lee@example.com", domain.RoleUser)
	other := seedUser(t, repos, "max@example.com", domain.RoleUser)

	n := &domain.Notification{UserID: owner.ID, Type: domain.NotificationOverdue, Title: "Overdue", Message: "Return it"}
	_, err := repos.Notifications.Create(ctx, n)
	require.NoError(t, err)

	assert.ErrorIs(t, repos.Notifications.MarkRead(ctx, other.ID, n.ID), domain.ErrNotificationNotFound)
	count, err := repos.Notifications.CountUnread(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repos.Notifications.MarkRead(ctx, owner.ID, n.ID))
	list, err := repos.Notifications.ListByUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRead)

	assert.ErrorIs(t, repos.Notifications.Delete(ctx, other.ID, n.ID), domain.ErrNotificationNotFound)
	require.NoError(t, repos.Notifications.Delete(ctx, owner.ID, n.ID))
}

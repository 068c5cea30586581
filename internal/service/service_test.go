package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"library-server/internal/auth"
	"library-server/internal/domain"
	"library-server/internal/events"
	"library-server/internal/repository/sqlite"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return fmt.Errorf("broker unavailable")
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string]string
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string]string{}}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader, size int64, _ string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(body, size))
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "mem://" + key
	m.objects[url] = string(data)
	return url, nil
}

func (m *memoryStore) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, url)
	m.deleted = append(m.deleted, url)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	repos         *sqlite.Repositories
	publisher     *recordingPublisher
	store         *memoryStore
	clock         *clock
	logs          *test.Hook
	books         BookService
	borrows       BorrowService
	users         UserService
	notifications NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := sqlite.NewRepositories(db)
	require.NoError(t, repos.Init(context.Background()))

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		repos:     repos,
		publisher: &recordingPublisher{},
		store:     newMemoryStore(),
		clock:     &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		logs:      hook,
	}
	f.notifications = NewNotificationService(repos.Notifications, f.publisher, logger)
	f.books = NewBookService(repos.Books, f.store, "library", logger)
	f.borrows = NewBorrowService(repos.Borrows, repos.Books, f.notifications, f.publisher, logger, BorrowConfig{
		Fines: FinePolicy{RatePerDay: DefaultFineRate},
		Now:   f.clock.Now,
	})
	f.users = NewUserService(repos.Users, issuer, f.store, f.publisher, logger, UserConfig{KeyPrefix: "library"})
	return f
}

func (f *fixture) member(t *testing.T, name string) *domain.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: "secret123",
	}, nil)
	require.NoError(t, err)
	return u
}

func (f *fixture) admin(t *testing.T) *domain.User {
	t.Helper()
	u, err := f.users.CreateAdmin(context.Background(), "Admin", "admin@example.com", "secret123")
	require.NoError(t, err)
	return u
}

func (f *fixture) book(t *testing.T, isbn string, copies int) *domain.Book {
	t.Helper()
	b, err := f.books.Create(context.Background(), BookInput{
		Title:       "Title " + isbn,
		Author:      "Author",
		ISBN:        isbn,
		TotalCopies: &copies,
	}, nil)
	require.NoError(t, err)
	return b
}

func intPtr(n int) *int { return &n }

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"library-server/internal/domain"
	"library-server/internal/repository"
	"library-server/internal/storage"
)

// BookInput is the catalogue data of a book as submitted by an admin, either
// as JSON or as multipart form fields.
type BookInput struct {
	Title         string `json:"title" form:"title" validate:"required,max=300"`
	Author        string `json:"author" form:"author" validate:"required,max=200"`
	ISBN          string `json:"isbn" form:"isbn" validate:"required,max=32"`
	Category      string `json:"category" form:"category" validate:"max=100"`
	Genre         string `json:"genre" form:"genre" validate:"max=100"`
	Description   string `json:"description" form:"description" validate:"max=5000"`
	Publisher     string `json:"publisher" form:"publisher" validate:"max=200"`
	PublishedYear int    `json:"published_year" form:"published_year" validate:"gte=0"`
	// TotalCopies defaults to 1 on create and to the current total on update.
	TotalCopies *int `json:"total_copies" form:"total_copies" validate:"omitnil,gte=0,lte=100000"`
	// AvailableCopies is honoured on create only and defaults to TotalCopies.
	// Copies withheld this way stay out of circulation.
	AvailableCopies *int   `json:"available_copies" form:"available_copies" validate:"omitnil,gte=0"`
	ImageURL        string `json:"image_url" form:"image_url" validate:"omitempty,max=2048"`
}

func (in *BookInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		in.Category = strings.TrimSpace(in.Genre)
	}
	in.Description = strings.TrimSpace(in.Description)
	in.Publisher = strings.TrimSpace(in.Publisher)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
}

// DefaultTotalCopies is used when a new book is submitted without a count.
const DefaultTotalCopies = 1

func (in BookInput) totalOr(fallback int) int {
	if in.TotalCopies == nil {
		return fallback
	}
	return *in.TotalCopies
}

func (in BookInput) check(now time.Time, total int) error {
	if err := validateInput(in); err != nil {
		return err
	}
	if in.PublishedYear > now.Year()+1 {
		return domain.Validationf("published_year must be at most %d", now.Year()+1)
	}
	if in.AvailableCopies != nil && *in.AvailableCopies > total {
		return domain.Validationf("available_copies cannot exceed total_copies")
	}
	return nil
}

// ImportResult summarises a bulk catalogue import.
type ImportResult struct {
	Created int
	Skipped int
	Failed  []string
}

// BookService manages the catalogue and its cover images.
type BookService interface {
	ListAvailable(ctx context.Context) ([]domain.Book, error)
	ListAll(ctx context.Context) ([]domain.Book, error)
	Get(ctx context.Context, id int64) (*domain.Book, error)
	Create(ctx context.Context, in BookInput, image *ImageUpload) (*domain.Book, error)
	// Update replaces the catalogue fields. An empty ImageURL keeps the
	// current cover; a new image replaces it.
	Update(ctx context.Context, id int64, in BookInput, image *ImageUpload) (*domain.Book, error)
	// Delete refuses while any request or loan of the book is active.
	Delete(ctx context.Context, id int64) error
	UploadImage(ctx context.Context, image ImageUpload) (string, error)
	// Import creates every book whose ISBN is not yet catalogued.
	Import(ctx context.Context, books []BookInput) (ImportResult, error)
}

type bookService struct {
	books     repository.BookRepository
	store     storage.Service
	keyPrefix string
	logger    logrus.FieldLogger
}

func NewBookService(books repository.BookRepository, store storage.Service, keyPrefix string, logger logrus.FieldLogger) BookService {
	return &bookService{
		books:     books,
		store:     store,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

func (s *bookService) ListAvailable(ctx context.Context) ([]domain.Book, error) {
	return s.books.List(ctx, true)
}

func (s *bookService) ListAll(ctx context.Context) ([]domain.Book, error) {
	return s.books.List(ctx, false)
}

func (s *bookService) Get(ctx context.Context, id int64) (*domain.Book, error) {
	return s.books.Get(ctx, id)
}

func (s *bookService) Create(ctx context.Context, in BookInput, image *ImageUpload) (*domain.Book, error) {
	in.normalize()
	total := in.totalOr(DefaultTotalCopies)
	if err := in.check(time.Now(), total); err != nil {
		return nil, err
	}

	book := &domain.Book{
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            in.ISBN,
		Category:        in.Category,
		Description:     in.Description,
		Publisher:       in.Publisher,
		PublishedYear:   in.PublishedYear,
		TotalCopies:     total,
		AvailableCopies: total,
		ImageURL:        in.ImageURL,
	}
	if in.AvailableCopies != nil {
		book.AvailableCopies = *in.AvailableCopies
	}

	uploaded := ""
	if image != nil {
		url, err := storeImage(ctx, s.store, s.keyPrefix, storage.KindBooks, *image)
		if err != nil {
			return nil, err
		}
		uploaded = url
		book.ImageURL = url
	}

	if _, err := s.books.Create(ctx, book); err != nil {
		dropImage(ctx, s.store, s.logger, uploaded)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"book_id": book.ID, "isbn": book.ISBN}).Info("book created")
	return book, nil
}

func (s *bookService) Update(ctx context.Context, id int64, in BookInput, image *ImageUpload) (*domain.Book, error) {
	in.normalize()
	in.AvailableCopies = nil
	current, err := s.books.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	total := in.totalOr(current.TotalCopies)
	if err := in.check(time.Now(), total); err != nil {
		return nil, err
	}

	book := &domain.Book{
		ID:            id,
		Title:         in.Title,
		Author:        in.Author,
		ISBN:          in.ISBN,
		Category:      in.Category,
		Description:   in.Description,
		Publisher:     in.Publisher,
		PublishedYear: in.PublishedYear,
		TotalCopies:   total,
		ImageURL:      in.ImageURL,
	}
	if book.ImageURL == "" {
		book.ImageURL = current.ImageURL
	}

	uploaded := ""
	if image != nil {
		url, err := storeImage(ctx, s.store, s.keyPrefix, storage.KindBooks, *image)
		if err != nil {
			return nil, err
		}
		uploaded = url
		book.ImageURL = url
	}

	if err := s.books.Update(ctx, book); err != nil {
		dropImage(ctx, s.store, s.logger, uploaded)
		return nil, err
	}
	if current.ImageURL != "" && current.ImageURL != book.ImageURL {
		dropImage(ctx, s.store, s.logger, current.ImageURL)
	}

	return book, nil
}

func (s *bookService) Delete(ctx context.Context, id int64) error {
	book, err := s.books.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.books.Delete(ctx, id); err != nil {
		return err
	}
	dropImage(ctx, s.store, s.logger, book.ImageURL)
	s.logger.WithField("book_id", id).Info("book deleted")
	return nil
}

func (s *bookService) UploadImage(ctx context.Context, image ImageUpload) (string, error) {
	return storeImage(ctx, s.store, s.keyPrefix, storage.KindBooks, image)
}

func (s *bookService) Import(ctx context.Context, books []BookInput) (ImportResult, error) {
	var res ImportResult
	for _, in := range books {
		_, err := s.Create(ctx, in, nil)
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, domain.ErrDuplicateISBN):
			res.Skipped++
		case domain.KindOf(err) == domain.KindValidation:
			res.Failed = append(res.Failed, strings.TrimSpace(in.ISBN+" "+in.Title)+": "+err.Error())
		default:
			return res, err
		}
	}
	return res, nil
}

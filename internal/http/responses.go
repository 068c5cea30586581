package http

import (
	"time"

	"library-server/internal/domain"
)

type BookResponse struct {
	ID              int64             `json:"_id"`
	Title           string            `json:"title"`
	Author          string            `json:"author"`
	ISBN            string            `json:"isbn"`
	Category        string            `json:"category"`
	Genre           string            `json:"genre"`
	Description     string            `json:"description"`
	Publisher       string            `json:"publisher"`
	PublishedYear   int               `json:"published_year"`
	TotalCopies     int               `json:"total_copies"`
	AvailableCopies int               `json:"available_copies"`
	Status          domain.BookStatus `json:"status"`
	ImageURL        string            `json:"image_url,omitempty"`
	CreatedAt       string            `json:"created_at,omitempty"`
	UpdatedAt       string            `json:"updated_at,omitempty"`
}

type BorrowRecordResponse struct {
	ID           int64               `json:"_id"`
	BookID       int64               `json:"book_id"`
	BookTitle    string              `json:"book_title"`
	UserID       int64               `json:"user_id"`
	UserName     string              `json:"user_name"`
	UserEmail    string              `json:"user_email"`
	Status       domain.BorrowStatus `json:"status"`
	BorrowDays   int                 `json:"borrow_days"`
	RequestDate  string              `json:"request_date"`
	BorrowDate   *string             `json:"borrow_date"`
	DueDate      *string             `json:"due_date"`
	ReturnDate   *string             `json:"return_date"`
	FineAmount   float64             `json:"fine_amount"`
	RejectReason string              `json:"reject_reason,omitempty"`
	Book         *BookResponse       `json:"book,omitempty"`
}

type ReceiptResponse struct {
	TransactionID int64               `json:"transaction_id"`
	BookTitle     string              `json:"book_title"`
	UserName      string              `json:"user_name"`
	RequestDate   string              `json:"request_date"`
	Status        domain.BorrowStatus `json:"status"`
	Note          string              `json:"note"`
}

type UserResponse struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Role         domain.Role `json:"role"`
	IsBanned     bool        `json:"is_banned"`
	BanReason    *string     `json:"ban_reason"`
	BannedAt     *string     `json:"banned_at"`
	CreatedAt    string      `json:"created_at,omitempty"`
	ProfileImage *string     `json:"profile_image"`
	DOB          string      `json:"dob"`
	Gender       string      `json:"gender"`
	Address      string      `json:"address"`
	Phone        string      `json:"phone"`
}

type NotificationResponse struct {
	ID        int64                   `json:"_id"`
	UserID    int64                   `json:"user_id"`
	BorrowID  *int64                  `json:"borrow_id,omitempty"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt string                  `json:"created_at"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	v := formatTime(*t)
	return &v
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func bookToResponse(book domain.Book) BookResponse {
	return BookResponse{
		ID:              book.ID,
		Title:           book.Title,
		Author:          book.Author,
		ISBN:            book.ISBN,
		Category:        book.Category,
		Genre:           book.Category,
		Description:     book.Description,
		Publisher:       book.Publisher,
		PublishedYear:   book.PublishedYear,
		TotalCopies:     book.TotalCopies,
		AvailableCopies: book.AvailableCopies,
		Status:          book.Status(),
		ImageURL:        book.ImageURL,
		CreatedAt:       formatTime(book.CreatedAt),
		UpdatedAt:       formatTime(book.UpdatedAt),
	}
}

func booksToResponse(books []domain.Book) []BookResponse {
	resp := make([]BookResponse, len(books))
	for i := range books {
		resp[i] = bookToResponse(books[i])
	}
	return resp
}

func recordToResponse(rec domain.BorrowRecord) BorrowRecordResponse {
	resp := BorrowRecordResponse{
		ID:           rec.ID,
		BookID:       rec.BookID,
		BookTitle:    rec.BookTitle,
		UserID:       rec.UserID,
		UserName:     rec.UserName,
		UserEmail:    rec.UserEmail,
		Status:       rec.Status,
		BorrowDays:   rec.BorrowDays,
		RequestDate:  formatTime(rec.RequestDate),
		BorrowDate:   formatTimePtr(rec.BorrowDate),
		DueDate:      formatTimePtr(rec.DueDate),
		ReturnDate:   formatTimePtr(rec.ReturnDate),
		FineAmount:   rec.FineAmount,
		RejectReason: rec.RejectReason,
	}
	if rec.Book != nil {
		book := bookToResponse(*rec.Book)
		resp.Book = &book
	}
	return resp
}

func recordsToResponse(records []domain.BorrowRecord) []BorrowRecordResponse {
	resp := make([]BorrowRecordResponse, len(records))
	for i := range records {
		resp[i] = recordToResponse(records[i])
	}
	return resp
}

func receiptToResponse(r domain.Receipt) ReceiptResponse {
	return ReceiptResponse{
		TransactionID: r.TransactionID,
		BookTitle:     r.BookTitle,
		UserName:      r.UserName,
		RequestDate:   formatTime(r.RequestDate),
		Status:        r.Status,
		Note:          r.Note,
	}
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Role:         user.Role,
		IsBanned:     user.IsBanned,
		BanReason:    optional(user.BanReason),
		BannedAt:     formatTimePtr(user.BannedAt),
		CreatedAt:    formatTime(user.CreatedAt),
		ProfileImage: optional(user.ProfileImage),
		DOB:          user.DOB,
		Gender:       user.Gender,
		Address:      user.Address,
		Phone:        user.Phone,
	}
}

func notificationToResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		BorrowID:  n.BorrowID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: formatTime(n.CreatedAt),
	}
}

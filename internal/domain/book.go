package domain

import "time"

type BookStatus string

const (
	BookStatusAvailable BookStatus = "available"
	BookStatusBorrowed  BookStatus = "borrowed"
)

// Book is a catalogue entry together with its copy counters.
type Book struct {
	ID              int64
	Title           string
	Author          string
	ISBN            string
	Category        string
	Description     string
	Publisher       string
	PublishedYear   int
	TotalCopies     int
	AvailableCopies int
	ImageURL        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Status is derived from the counters; nothing stores it.
func (b Book) Status() BookStatus {
	if b.AvailableCopies > 0 {
		return BookStatusAvailable
	}
	return BookStatusBorrowed
}

// OnLoan is the number of copies not on the shelf: copies lent out plus any
// withheld from circulation when the book was catalogued. Updates to the
// total preserve it.
func (b Book) OnLoan() int {
	return b.TotalCopies - b.AvailableCopies
}

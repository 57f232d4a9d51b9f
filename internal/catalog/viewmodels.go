package catalog

import (
	"time"

	"github.com/bookstacks/catalog/internal/entities"
)

// BookView is the denormalized, render-ready aggregation of a book, its
// related entities and its current borrow status.
type BookView struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Edition         int    `json:"edition"`
	ISBN            string `json:"isbn"`
	PublicationYear int    `json:"publication_year"`
	ShelfLocation   string `json:"shelf_location"`
	Available       bool   `json:"available"`

	Authors    map[string]string `json:"authors"`
	Publishers map[string]string `json:"publishers"`
	Genres     map[string]string `json:"genres"`

	// Borrower maps the borrowing user's ID to their name when the book
	// is unavailable; nil otherwise.
	Borrower   map[string]string `json:"borrower,omitempty"`
	BorrowDate *time.Time        `json:"borrow_date,omitempty"`
	DueDate    *time.Time        `json:"due_date,omitempty"`
}

// BookRef identifies a book in the unavailable-books listing.
type BookRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// View is the full catalog page model: every book's view-model in the
// store's listing order, all users ordered by name, and the
// currently-unavailable books ordered by title.
type View struct {
	Books       []BookView      `json:"books"`
	Users       []entities.User `json:"users"`
	Unavailable []BookRef       `json:"unavailable"`
}

// OverdueLoan describes an active borrow past its due date, as reported
// by the overdue sweep.
type OverdueLoan struct {
	BookID      string    `json:"book_id"`
	Title       string    `json:"title"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	UserEmail   string    `json:"user_email"`
	DueDate     time.Time `json:"due_date"`
	DaysLate    int       `json:"days_late"`
	AccruedFine float64   `json:"accrued_fine"`
}

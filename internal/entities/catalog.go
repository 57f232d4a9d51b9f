package entities

import "time"

// Book is the storage-agnostic representation of a catalog book.
// IDs are strings; each store adapter encodes its own key type
// (decimal row IDs for SQL, ObjectID hex for Mongo, node keys for Neo4j).
type Book struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Edition         int        `json:"edition"`
	ISBN            string     `json:"isbn"`
	PublicationYear int        `json:"publication_year"`
	ShelfLocation   string     `json:"shelf_location"`
	Available       bool       `json:"available"`
	MovieRelease    *time.Time `json:"movie_release,omitempty"`

	AuthorIDs    []string `json:"author_ids,omitempty"`
	PublisherIDs []string `json:"publisher_ids,omitempty"`
	GenreIDs     []string `json:"genre_ids,omitempty"`
}

// NamedEntity covers authors, publishers and genres, which only carry a name.
type NamedEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	BooksBorrowed int    `json:"books_borrowed"`
}

type Borrow struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	UserID     string    `json:"user_id"`
	BorrowDate time.Time `json:"borrow_date"`
	DueDate    time.Time `json:"due_date"`
}

type Return struct {
	ID         string    `json:"id"`
	BorrowID   string    `json:"borrow_id"`
	ReturnDate time.Time `json:"return_date"`
	Fine       float64   `json:"fine"`
	Overdue    bool      `json:"overdue"`
}

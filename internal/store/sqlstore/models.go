package sqlstore

import "time"

// Row types are private to this adapter; the rest of the application
// only sees internal/entities values with string IDs.

type bookRow struct {
	ID              uint   `gorm:"primaryKey"`
	Title           string `gorm:"size:512;not null;index"`
	Edition         int
	ISBN            string `gorm:"size:20;index"`
	PublicationYear int
	ShelfLocation   string `gorm:"size:20"`
	Available       bool   `gorm:"not null;default:true"`
	MovieRelease    *time.Time

	Authors    []authorRow    `gorm:"many2many:book_authors;"`
	Publishers []publisherRow `gorm:"many2many:book_publishers;"`
	Genres     []genreRow     `gorm:"many2many:book_genres;"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type authorRow struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:256;not null;index"`
	CreatedAt time.Time
}

type publisherRow struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:256;not null;index"`
	CreatedAt time.Time
}

type genreRow struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100;not null;index"`
	CreatedAt time.Time
}

type userRow struct {
	ID            uint   `gorm:"primaryKey"`
	Name          string `gorm:"size:256;not null;index"`
	Email         string `gorm:"size:255;uniqueIndex"`
	Phone         string `gorm:"size:32"`
	BooksBorrowed int    `gorm:"not null;default:0"`
	CreatedAt     time.Time
}

type borrowRow struct {
	ID         uint      `gorm:"primaryKey"`
	BookID     uint      `gorm:"index;not null"`
	UserID     uint      `gorm:"index;not null"`
	BorrowDate time.Time `gorm:"index;not null"`
	DueDate    time.Time `gorm:"not null"`
	CreatedAt  time.Time
}

type returnRow struct {
	ID         uint      `gorm:"primaryKey"`
	BorrowID   uint      `gorm:"uniqueIndex;not null"`
	ReturnDate time.Time `gorm:"not null"`
	Fine       float64   `gorm:"not null;default:0"`
	Overdue    bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time
}

func (bookRow) TableName() string      { return "books" }
func (authorRow) TableName() string    { return "authors" }
func (publisherRow) TableName() string { return "publishers" }
func (genreRow) TableName() string     { return "genres" }
func (userRow) TableName() string      { return "users" }
func (borrowRow) TableName() string    { return "borrows" }
func (returnRow) TableName() string    { return "returns" }

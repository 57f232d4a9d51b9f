// Package store defines the storage-agnostic interface the catalog core
// runs against. Each backend (SQLite, PostgreSQL, MongoDB, Neo4j) has its
// own adapter package implementing Store; the aggregation and
// borrow/return logic is written once against this capability set.
package store

import (
	"context"
	"time"

	"github.com/bookstacks/catalog/internal/entities"
)

// Store is the capability set a backend must provide. Mutations that
// touch multiple records (BorrowBook, ReturnBook) are atomic where the
// backend supports transactions; otherwise they are sequenced so that
// the book's availability flag stays authoritative and orphaned
// borrow/return records are tolerated.
type Store interface {
	ListBooks(ctx context.Context) ([]entities.Book, error)
	GetBook(ctx context.Context, id string) (entities.Book, error)

	ListAuthors(ctx context.Context) ([]entities.NamedEntity, error)
	ListPublishers(ctx context.Context) ([]entities.NamedEntity, error)
	ListGenres(ctx context.Context) ([]entities.NamedEntity, error)
	GetAuthor(ctx context.Context, id string) (entities.NamedEntity, error)
	GetPublisher(ctx context.Context, id string) (entities.NamedEntity, error)
	GetGenre(ctx context.Context, id string) (entities.NamedEntity, error)

	ListUsers(ctx context.Context) ([]entities.User, error)
	GetUser(ctx context.Context, id string) (entities.User, error)

	// LatestBorrows returns, per book ID, the borrow with the most recent
	// borrow date (highest record ID as tie-break). Books never borrowed
	// are absent from the map.
	LatestBorrows(ctx context.Context) (map[string]entities.Borrow, error)

	// ActiveBorrow returns the book's latest borrow that has no matching
	// return. entities.ErrNoActiveBorrow when there is none.
	ActiveBorrow(ctx context.Context, bookID string) (entities.Borrow, error)

	// BorrowBook flips the book's availability to false only if it is
	// currently true (entities.ErrBookUnavailable otherwise), records the
	// borrow and increments the user's borrowed count.
	BorrowBook(ctx context.Context, bookID, userID string, borrowDate, dueDate time.Time) (entities.Borrow, error)

	// ReturnBook records ret against the given borrow, flips the book's
	// availability back to true and decrements the borrower's count.
	ReturnBook(ctx context.Context, borrow entities.Borrow, ret entities.Return) (entities.Return, error)

	// Reset drops all catalog data and reloads the seed dataset.
	Reset(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}

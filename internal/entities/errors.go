package entities

import "errors"

var (
	ErrBookNotFound      = errors.New("book not found")
	ErrAuthorNotFound    = errors.New("author not found")
	ErrPublisherNotFound = errors.New("publisher not found")
	ErrGenreNotFound     = errors.New("genre not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrBorrowNotFound    = errors.New("borrow not found")

	// ErrBookUnavailable is returned when a borrow is attempted against a
	// book that already has an active borrow.
	ErrBookUnavailable = errors.New("book is not available")

	// ErrNoActiveBorrow is returned when a return is attempted against a
	// book that is not currently borrowed.
	ErrNoActiveBorrow = errors.New("book has no active borrow")

	ErrUnknownEntityKind = errors.New("unknown entity kind")
)

// NotFound reports whether err is any of the per-entity not-found errors.
func NotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrAuthorNotFound) ||
		errors.Is(err, ErrPublisherNotFound) ||
		errors.Is(err, ErrGenreNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrBorrowNotFound)
}

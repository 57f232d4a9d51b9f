package sqlstore

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstacks/catalog/internal/entities"
)

func setupStore(t *testing.T) (*Store, func()) {
	t.Helper()

	dbPath := "./test_sqlstore_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	st, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Reset(context.Background()))

	cleanup := func() {
		st.Close()
		os.Remove(dbPath)
	}
	return st, cleanup
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return d
}

func TestReset_LoadsSeedData(t *testing.T) {
	st, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	books, err := st.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 10)
	assert.True(t, books[0].Available)
	assert.Len(t, books[0].AuthorIDs, 1)
	assert.Len(t, books[0].PublisherIDs, 2)
	assert.Len(t, books[0].GenreIDs, 3)

	authors, err := st.ListAuthors(ctx)
	require.NoError(t, err)
	assert.Len(t, authors, 2)

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 5)

	// Reset is idempotent: a second run rebuilds the same dataset.
	require.NoError(t, st.Reset(ctx))
	books, err = st.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 10)
}

func TestBorrowBook_ConditionalFlip(t *testing.T) {
	st, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	books, err := st.ListBooks(ctx)
	require.NoError(t, err)
	bookID := books[0].ID

	_, err = st.BorrowBook(ctx, bookID, "1", day(t, "2024-01-10"), day(t, "2024-02-10"))
	require.NoError(t, err)

	// Second borrow of the same book must fail without another record.
	_, err = st.BorrowBook(ctx, bookID, "2", day(t, "2024-01-11"), day(t, "2024-02-11"))
	assert.ErrorIs(t, err, entities.ErrBookUnavailable)

	latest, err := st.LatestBorrows(ctx)
	require.NoError(t, err)
	require.Contains(t, latest, bookID)
	assert.Equal(t, "1", latest[bookID].UserID)

	user, err := st.GetUser(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, user.BooksBorrowed)

	user, err = st.GetUser(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, 0, user.BooksBorrowed)
}

func TestBorrowBook_UnknownBook(t *testing.T) {
	st, cleanup := setupStore(t)
	defer cleanup()

	_, err := st.BorrowBook(context.Background(), "4242", "1", day(t, "2024-01-10"), day(t, "2024-02-10"))
	assert.ErrorIs(t, err, entities.ErrBookNotFound)
}

func TestActiveBorrow_FollowsReturns(t *testing.T) {
	st, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	books, err := st.ListBooks(ctx)
	require.NoError(t, err)
	bookID := books[0].ID

	_, err = st.ActiveBorrow(ctx, bookID)
	assert.ErrorIs(t, err, entities.ErrNoActiveBorrow)

	first, err := st.BorrowBook(ctx, bookID, "1", day(t, "2024-01-10"), day(t, "2024-02-10"))
	require.NoError(t, err)

	active, err := st.ActiveBorrow(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	_, err = st.ReturnBook(ctx, active, entities.Return{
		BorrowID:   active.ID,
		ReturnDate: day(t, "2024-02-01"),
	})
	require.NoError(t, err)

	_, err = st.ActiveBorrow(ctx, bookID)
	assert.ErrorIs(t, err, entities.ErrNoActiveBorrow)

	// A later borrow becomes the book's latest record.
	second, err := st.BorrowBook(ctx, bookID, "2", day(t, "2024-03-01"), day(t, "2024-04-01"))
	require.NoError(t, err)

	latest, err := st.LatestBorrows(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest[bookID].ID)
}

func TestReturnBook_WhileAvailable(t *testing.T) {
	st, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	books, err := st.ListBooks(ctx)
	require.NoError(t, err)

	_, err = st.ReturnBook(ctx, entities.Borrow{ID: "1", BookID: books[0].ID, UserID: "1"}, entities.Return{
		BorrowID:   "1",
		ReturnDate: day(t, "2024-02-01"),
	})
	assert.ErrorIs(t, err, entities.ErrNoActiveBorrow)
}

func TestGet_MalformedIDsAreNotFound(t *testing.T) {
	st, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := st.GetBook(ctx, "not-an-id")
	assert.ErrorIs(t, err, entities.ErrBookNotFound)

	_, err = st.GetUser(ctx, "")
	assert.ErrorIs(t, err, entities.ErrUserNotFound)

	_, err = st.GetPublisher(ctx, "-3")
	assert.ErrorIs(t, err, entities.ErrPublisherNotFound)
}

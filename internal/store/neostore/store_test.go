package neostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstacks/catalog/internal/entities"
)

// Integration tests; they need a running Neo4j and are skipped unless
// NEO4J_TEST_URI is set.
func setupStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("NEO4J_TEST_URI")
	if uri == "" {
		t.Skip("NEO4J_TEST_URI not set")
	}

	ctx := context.Background()
	st, err := Open(ctx, uri, os.Getenv("NEO4J_TEST_USER"), os.Getenv("NEO4J_TEST_PASSWORD"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Reset(ctx))
	return st
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return d
}

func TestListBooks_SeedOrder(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	books, err := st.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 10)

	// Creation order, not title order.
	assert.Equal(t, "Harry Potter and the Philosopher's Stone", books[0].Title)
	assert.Equal(t, "Crazy Rich Asians", books[7].Title)
	assert.Equal(t, "Rich People Problems", books[9].Title)
}

func TestBorrowReturn_RoundTrip(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	books, err := st.ListBooks(ctx)
	require.NoError(t, err)
	users, err := st.ListUsers(ctx)
	require.NoError(t, err)

	borrow, err := st.BorrowBook(ctx, books[0].ID, users[0].ID,
		day(t, "2024-01-10"), day(t, "2024-02-10"))
	require.NoError(t, err)

	book, err := st.GetBook(ctx, books[0].ID)
	require.NoError(t, err)
	assert.False(t, book.Available)

	_, err = st.BorrowBook(ctx, books[0].ID, users[0].ID,
		day(t, "2024-01-11"), day(t, "2024-02-11"))
	assert.ErrorIs(t, err, entities.ErrBookUnavailable)

	_, err = st.ReturnBook(ctx, borrow, entities.Return{
		BorrowID:   borrow.ID,
		ReturnDate: day(t, "2024-02-01"),
	})
	require.NoError(t, err)

	book, err = st.GetBook(ctx, books[0].ID)
	require.NoError(t, err)
	assert.True(t, book.Available)
}

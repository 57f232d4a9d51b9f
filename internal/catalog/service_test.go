package catalog

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstacks/catalog/internal/entities"
	"github.com/bookstacks/catalog/internal/store/sqlstore"
)

func setupTestStore(t *testing.T, seeded bool) (*sqlstore.Store, func()) {
	t.Helper()

	dbPath := "./test_catalog_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	st, err := sqlstore.Open(dbPath)
	require.NoError(t, err)

	if seeded {
		require.NoError(t, st.Reset(context.Background()))
	}

	cleanup := func() {
		st.Close()
		os.Remove(dbPath)
	}
	return st, cleanup
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return d
}

func TestListCatalog_Empty(t *testing.T) {
	st, cleanup := setupTestStore(t, false)
	defer cleanup()

	svc := NewService(st, 0)

	view, err := svc.ListCatalog(context.Background())

	require.NoError(t, err)
	assert.Empty(t, view.Books)
	assert.Empty(t, view.Users)
	assert.Empty(t, view.Unavailable)
}

func TestListCatalog_Seeded(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0)

	view, err := svc.ListCatalog(context.Background())
	require.NoError(t, err)

	assert.Len(t, view.Books, 10)
	assert.Len(t, view.Users, 5)
	assert.Empty(t, view.Unavailable)

	// Users come back sorted by name
	for i := 1; i < len(view.Users); i++ {
		assert.LessOrEqual(t, view.Users[i-1].Name, view.Users[i].Name)
	}

	first := view.Books[0]
	assert.Equal(t, "Harry Potter and the Philosopher's Stone", first.Title)
	assert.True(t, first.Available)
	assert.Len(t, first.Authors, 1)
	assert.Len(t, first.Publishers, 2)
	assert.Len(t, first.Genres, 3)
	assert.Nil(t, first.Borrower)
}

func TestBorrow(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0)
	ctx := context.Background()

	view, err := svc.ListCatalog(ctx)
	require.NoError(t, err)
	bookID := view.Books[0].ID
	userID := view.Users[0].ID

	borrow, err := svc.Borrow(ctx, bookID, userID, mustDate(t, "2024-01-10"))
	require.NoError(t, err)

	assert.Equal(t, bookID, borrow.BookID)
	assert.Equal(t, userID, borrow.UserID)
	assert.Equal(t, mustDate(t, "2024-02-10"), borrow.DueDate)

	view, err = svc.ListCatalog(ctx)
	require.NoError(t, err)

	var borrowed BookView
	for _, b := range view.Books {
		if b.ID == bookID {
			borrowed = b
		}
	}
	assert.False(t, borrowed.Available)
	require.NotNil(t, borrowed.Borrower)
	assert.Contains(t, borrowed.Borrower, userID)
	require.NotNil(t, borrowed.DueDate)
	assert.Equal(t, mustDate(t, "2024-02-10"), *borrowed.DueDate)

	require.Len(t, view.Unavailable, 1)
	assert.Equal(t, bookID, view.Unavailable[0].ID)

	for _, u := range view.Users {
		if u.ID == userID {
			assert.Equal(t, 1, u.BooksBorrowed)
		}
	}
}

func TestBorrow_AlreadyBorrowed(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0)
	ctx := context.Background()

	view, err := svc.ListCatalog(ctx)
	require.NoError(t, err)
	bookID := view.Books[0].ID

	_, err = svc.Borrow(ctx, bookID, view.Users[0].ID, mustDate(t, "2024-01-10"))
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, bookID, view.Users[1].ID, mustDate(t, "2024-01-11"))
	assert.ErrorIs(t, err, entities.ErrBookUnavailable)
}

func TestBorrow_NotFound(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0)
	ctx := context.Background()

	view, err := svc.ListCatalog(ctx)
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, "99999", view.Users[0].ID, mustDate(t, "2024-01-10"))
	assert.ErrorIs(t, err, entities.ErrBookNotFound)

	_, err = svc.Borrow(ctx, view.Books[0].ID, "99999", mustDate(t, "2024-01-10"))
	assert.ErrorIs(t, err, entities.ErrUserNotFound)
}

func TestReturn_Overdue(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0)
	ctx := context.Background()

	view, err := svc.ListCatalog(ctx)
	require.NoError(t, err)
	bookID := view.Books[0].ID
	userID := view.Users[0].ID

	_, err = svc.Borrow(ctx, bookID, userID, mustDate(t, "2024-01-10"))
	require.NoError(t, err)

	// Due 2024-02-10, returned five days late.
	ret, err := svc.Return(ctx, bookID, mustDate(t, "2024-02-15"))
	require.NoError(t, err)

	assert.True(t, ret.Overdue)
	assert.InDelta(t, 5.00, ret.Fine, 0.001)

	view, err = svc.ListCatalog(ctx)
	require.NoError(t, err)
	for _, b := range view.Books {
		if b.ID == bookID {
			assert.True(t, b.Available)
		}
	}
	for _, u := range view.Users {
		if u.ID == userID {
			assert.Equal(t, 0, u.BooksBorrowed)
		}
	}
	assert.Empty(t, view.Unavailable)
}

func TestReturn_OnTime(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0)
	ctx := context.Background()

	view, err := svc.ListCatalog(ctx)
	require.NoError(t, err)
	bookID := view.Books[1].ID

	_, err = svc.Borrow(ctx, bookID, view.Users[0].ID, mustDate(t, "2024-01-10"))
	require.NoError(t, err)

	ret, err := svc.Return(ctx, bookID, mustDate(t, "2024-02-10"))
	require.NoError(t, err)

	assert.False(t, ret.Overdue)
	assert.Equal(t, 0.0, ret.Fine)
}

func TestReturn_CustomRate(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0.5)
	ctx := context.Background()

	view, err := svc.ListCatalog(ctx)
	require.NoError(t, err)
	bookID := view.Books[2].ID

	_, err = svc.Borrow(ctx, bookID, view.Users[0].ID, mustDate(t, "2024-01-10"))
	require.NoError(t, err)

	ret, err := svc.Return(ctx, bookID, mustDate(t, "2024-02-13"))
	require.NoError(t, err)

	assert.True(t, ret.Overdue)
	assert.InDelta(t, 1.50, ret.Fine, 0.001)
}

func TestReturn_NoActiveBorrow(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0)
	ctx := context.Background()

	view, err := svc.ListCatalog(ctx)
	require.NoError(t, err)

	_, err = svc.Return(ctx, view.Books[0].ID, mustDate(t, "2024-02-15"))
	assert.ErrorIs(t, err, entities.ErrNoActiveBorrow)
}

func TestEntityDetail_Book(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0)
	ctx := context.Background()

	view, err := svc.ListCatalog(ctx)
	require.NoError(t, err)
	bookID := view.Books[0].ID

	detail, err := svc.EntityDetail(ctx, KindBook, bookID)
	require.NoError(t, err)

	assert.Equal(t, "Harry Potter and the Philosopher's Stone", detail["title"])
	assert.Equal(t, "9780747532743", detail["isbn"])
	assert.Equal(t, 1997, detail["publication_year"])
	assert.Equal(t, "A1", detail["shelf_location"])
	assert.Equal(t, true, detail["available"])
	assert.Len(t, detail["authors"], 1)
	assert.Len(t, detail["publishers"], 2)
	assert.Len(t, detail["genres"], 3)
	assert.NotContains(t, detail, "borrower")
}

func TestEntityDetail_BorrowedBookHasBorrowerContact(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0)
	ctx := context.Background()

	view, err := svc.ListCatalog(ctx)
	require.NoError(t, err)
	bookID := view.Books[0].ID
	user := view.Users[0]

	_, err = svc.Borrow(ctx, bookID, user.ID, mustDate(t, "2024-01-10"))
	require.NoError(t, err)

	detail, err := svc.EntityDetail(ctx, KindBook, bookID)
	require.NoError(t, err)

	assert.Equal(t, false, detail["available"])
	borrower, ok := detail["borrower"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, user.Name, borrower["name"])
	assert.Equal(t, user.Email, borrower["email"])
	assert.Equal(t, user.Phone, borrower["phone"])
	assert.Contains(t, detail, "due_date")
}

func TestEntityDetail_NamedEntitiesAndUser(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0)
	ctx := context.Background()

	detail, err := svc.EntityDetail(ctx, KindAuthor, "1")
	require.NoError(t, err)
	assert.Equal(t, Detail{"name": "J.K. Rowling"}, detail)

	detail, err = svc.EntityDetail(ctx, KindGenre, "1")
	require.NoError(t, err)
	assert.Equal(t, Detail{"name": "Fantasy"}, detail)

	detail, err = svc.EntityDetail(ctx, KindUser, "1")
	require.NoError(t, err)
	assert.Equal(t, "Lothar Gorman", detail["name"])
	assert.Equal(t, "lothar_gorman@example.com", detail["email"])
}

func TestEntityDetail_NotFound(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0)
	ctx := context.Background()

	_, err := svc.EntityDetail(ctx, KindBook, "99999")
	assert.ErrorIs(t, err, entities.ErrBookNotFound)

	_, err = svc.EntityDetail(ctx, KindAuthor, "not-a-number")
	assert.ErrorIs(t, err, entities.ErrAuthorNotFound)
}

func TestParseEntityKind(t *testing.T) {
	for _, raw := range []string{"book", "author", "publisher", "genre", "user"} {
		kind, err := ParseEntityKind(raw)
		require.NoError(t, err)
		assert.Equal(t, EntityKind(raw), kind)
	}

	_, err := ParseEntityKind("shelf")
	assert.ErrorIs(t, err, entities.ErrUnknownEntityKind)
}

func TestOverdueLoans(t *testing.T) {
	st, cleanup := setupTestStore(t, true)
	defer cleanup()

	svc := NewService(st, 0)
	ctx := context.Background()

	view, err := svc.ListCatalog(ctx)
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, view.Books[0].ID, view.Users[0].ID, mustDate(t, "2024-01-10"))
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, view.Books[1].ID, view.Users[1].ID, mustDate(t, "2024-03-01"))
	require.NoError(t, err)

	// As of 2024-02-20 only the first borrow (due 2024-02-10) is late.
	overdue, err := svc.OverdueLoans(ctx, mustDate(t, "2024-02-20"))
	require.NoError(t, err)

	require.Len(t, overdue, 1)
	assert.Equal(t, view.Books[0].ID, overdue[0].BookID)
	assert.Equal(t, 10, overdue[0].DaysLate)
	assert.InDelta(t, 10.0, overdue[0].AccruedFine, 0.001)
	assert.Equal(t, view.Users[0].Name, overdue[0].UserName)
}

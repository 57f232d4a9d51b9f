package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookstacks/catalog/internal/catalog"
	"github.com/bookstacks/catalog/internal/store/sqlstore"
)

func setupTestRouter(t *testing.T, cfg RouterConfig) (*gin.Engine, *sqlstore.Store, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := "./test_api_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	st, err := sqlstore.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Reset(context.Background()))

	cfg.Store = st
	cfg.Service = catalog.NewService(st, 0)
	router := NewRouter(cfg)

	cleanup := func() {
		st.Close()
		os.Remove(dbPath)
	}
	return router, st, cleanup
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router, _, cleanup := setupTestRouter(t, RouterConfig{Version: "test"})
	defer cleanup()

	w := doJSON(router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "ok", response.Checks["store"])
	assert.Equal(t, "test", response.Version)
}

func TestCatalogView(t *testing.T) {
	router, _, cleanup := setupTestRouter(t, RouterConfig{})
	defer cleanup()

	w := doJSON(router, "GET", "/api/catalog", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var view catalog.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Len(t, view.Books, 10)
	assert.Len(t, view.Users, 5)
	assert.Empty(t, view.Unavailable)

	for _, book := range view.Books {
		assert.True(t, book.Available)
		assert.NotEmpty(t, book.Authors)
	}
}

func TestEntityDetail(t *testing.T) {
	t.Run("book", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "GET", "/api/entity/book/1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var detail map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
		assert.Equal(t, "Harry Potter and the Philosopher's Stone", detail["title"])
		assert.Equal(t, "9780747532743", detail["isbn"])
		assert.Equal(t, true, detail["available"])
	})

	t.Run("user", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "GET", "/api/entity/user/1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var detail map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
		assert.Equal(t, "Lothar Gorman", detail["name"])
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "GET", "/api/entity/book/999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown kind is 400", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "GET", "/api/entity/magazine/1", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBorrowEndpoint(t *testing.T) {
	t.Run("borrows a book with one month due date", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "POST", "/api/borrow", BorrowRequest{
			BookID: "1", UserID: "1", Date: "2024-01-10",
		})
		assert.Equal(t, http.StatusCreated, w.Code)

		var response BorrowResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.BorrowID)
		assert.Equal(t, "2024-01-10", response.BorrowDate)
		assert.Equal(t, "2024-02-10", response.DueDate)

		// The catalog now reports the book as unavailable
		view := doJSON(router, "GET", "/api/catalog", nil)
		var catalogView catalog.View
		require.NoError(t, json.Unmarshal(view.Body.Bytes(), &catalogView))
		require.Len(t, catalogView.Unavailable, 1)
		assert.Equal(t, "1", catalogView.Unavailable[0].ID)
	})

	t.Run("double borrow is a conflict", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "POST", "/api/borrow", BorrowRequest{BookID: "1", UserID: "1"})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(router, "POST", "/api/borrow", BorrowRequest{BookID: "1", UserID: "2"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown user is 404", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "POST", "/api/borrow", BorrowRequest{BookID: "1", UserID: "999"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing fields are 400", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "POST", "/api/borrow", map[string]string{"book_id": "1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed date is 400", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "POST", "/api/borrow", BorrowRequest{
			BookID: "1", UserID: "1", Date: "10/01/2024",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestReturnEndpoint(t *testing.T) {
	t.Run("on time return has no fine", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "POST", "/api/borrow", BorrowRequest{
			BookID: "1", UserID: "1", Date: "2024-01-10",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(router, "POST", "/api/return", ReturnRequest{
			BookID: "1", Date: "2024-01-20",
		})
		assert.Equal(t, http.StatusOK, w.Code)

		var response ReturnResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.False(t, response.Overdue)
		assert.Zero(t, response.Fine)
	})

	t.Run("late return reports the fine", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "POST", "/api/borrow", BorrowRequest{
			BookID: "1", UserID: "1", Date: "2024-01-10",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(router, "POST", "/api/return", ReturnRequest{
			BookID: "1", Date: "2024-02-15",
		})
		assert.Equal(t, http.StatusOK, w.Code)

		var response ReturnResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Overdue)
		assert.InDelta(t, 5.0, response.Fine, 0.001)
	})

	t.Run("returning an available book is a conflict", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "POST", "/api/return", ReturnRequest{BookID: "1"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestCSRFProtection(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	t.Run("rejected mutation does not reach the handler", func(t *testing.T) {
		router, st, cleanup := setupTestRouter(t, RouterConfig{CSRFSecret: secret})
		defer cleanup()

		w := doJSON(router, "POST", "/api/borrow", BorrowRequest{
			BookID: "1", UserID: "1", Date: "2024-01-10",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)

		// The 403 must be the whole response, not a prefix of one.
		assert.NotContains(t, w.Body.String(), "borrow_id")

		book, err := st.GetBook(context.Background(), "1")
		require.NoError(t, err)
		assert.True(t, book.Available)
	})

	t.Run("safe methods pass without a token", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{CSRFSecret: secret})
		defer cleanup()

		w := doJSON(router, "GET", "/api/catalog", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(router, "GET", "/api/csrf", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		var response CSRFTokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
	})
}

func TestAdminReset(t *testing.T) {
	t.Run("requires the configured password", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
		require.NoError(t, err)

		router, _, cleanup := setupTestRouter(t, RouterConfig{AdminPasswordHash: hash})
		defer cleanup()

		w := doJSON(router, "POST", "/api/admin/reset", ResetRequest{Password: "wrong"})
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = doJSON(router, "POST", "/api/admin/reset", ResetRequest{Password: "letmein"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("restores seed data after a borrow", func(t *testing.T) {
		router, _, cleanup := setupTestRouter(t, RouterConfig{})
		defer cleanup()

		w := doJSON(router, "POST", "/api/borrow", BorrowRequest{BookID: "1", UserID: "1"})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(router, "POST", "/api/admin/reset", nil)
		require.Equal(t, http.StatusOK, w.Code)

		view := doJSON(router, "GET", "/api/catalog", nil)
		var catalogView catalog.View
		require.NoError(t, json.Unmarshal(view.Body.Bytes(), &catalogView))
		assert.Empty(t, catalogView.Unavailable)
		for _, user := range catalogView.Users {
			assert.Zero(t, user.BooksBorrowed)
		}
	})
}

package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bookstacks/catalog/internal/catalog"
)

// dateLayout is the wire format for loan dates.
const dateLayout = "2006-01-02"

// LoanController handles borrow and return requests.
type LoanController struct {
	service *catalog.Service
}

func NewLoanController(service *catalog.Service) *LoanController {
	return &LoanController{service: service}
}

type BorrowRequest struct {
	BookID string `json:"book_id" binding:"required"`
	UserID string `json:"user_id" binding:"required"`
	Date   string `json:"borrow_date"` // YYYY-MM-DD, defaults to today
}

type BorrowResponse struct {
	BorrowID   string `json:"borrow_id"`
	BookID     string `json:"book_id"`
	UserID     string `json:"user_id"`
	BorrowDate string `json:"borrow_date"`
	DueDate    string `json:"due_date"`
}

type ReturnRequest struct {
	BookID string `json:"book_id" binding:"required"`
	Date   string `json:"return_date"` // YYYY-MM-DD, defaults to today
}

type ReturnResponse struct {
	ReturnID   string  `json:"return_id"`
	BorrowID   string  `json:"borrow_id"`
	ReturnDate string  `json:"return_date"`
	Fine       float64 `json:"fine"`
	Overdue    bool    `json:"overdue"`
}

// parseLoanDate parses an optional YYYY-MM-DD date, defaulting to the
// current day in UTC.
func parseLoanDate(raw string) (time.Time, bool) {
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Borrow checks a book out to a user.
func (ctrl *LoanController) Borrow(c *gin.Context) {
	var req BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "book_id and user_id are required")
		return
	}

	borrowDate, ok := parseLoanDate(req.Date)
	if !ok {
		respondBadRequest(c, "date must be in YYYY-MM-DD format")
		return
	}

	borrow, err := ctrl.service.Borrow(c.Request.Context(), req.BookID, req.UserID, borrowDate)
	if err != nil {
		respondDomainError(c, err, "borrow book")
		return
	}

	respondCreated(c, BorrowResponse{
		BorrowID:   borrow.ID,
		BookID:     borrow.BookID,
		UserID:     borrow.UserID,
		BorrowDate: borrow.BorrowDate.Format(dateLayout),
		DueDate:    borrow.DueDate.Format(dateLayout),
	})
}

// Return checks a book back in and reports the accrued fine.
func (ctrl *LoanController) Return(c *gin.Context) {
	var req ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "book_id is required")
		return
	}

	returnDate, ok := parseLoanDate(req.Date)
	if !ok {
		respondBadRequest(c, "date must be in YYYY-MM-DD format")
		return
	}

	ret, err := ctrl.service.Return(c.Request.Context(), req.BookID, returnDate)
	if err != nil {
		respondDomainError(c, err, "return book")
		return
	}

	c.JSON(http.StatusOK, ReturnResponse{
		ReturnID:   ret.ID,
		BorrowID:   ret.BorrowID,
		ReturnDate: ret.ReturnDate.Format(dateLayout),
		Fine:       ret.Fine,
		Overdue:    ret.Overdue,
	})
}

package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookstacks/catalog/internal/store"
)

// AdminController handles destructive catalog operations. Reset wipes
// the backing store and reloads the seed dataset.
type AdminController struct {
	store        store.Store
	passwordHash []byte
}

func NewAdminController(s store.Store, passwordHash []byte) *AdminController {
	return &AdminController{store: s, passwordHash: passwordHash}
}

type ResetRequest struct {
	Password string `json:"password"`
}

// Reset drops all catalog data and reloads the seed dataset.
func (ctrl *AdminController) Reset(c *gin.Context) {
	var req ResetRequest
	// Body is optional when no password is configured
	_ = c.ShouldBindJSON(&req)

	if len(ctrl.passwordHash) == 0 {
		log.Printf("catalog reset requested with no admin password configured")
	} else if err := bcrypt.CompareHashAndPassword(ctrl.passwordHash, []byte(req.Password)); err != nil {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "invalid admin password"})
		return
	}

	if err := ctrl.store.Reset(c.Request.Context()); err != nil {
		respondInternalError(c, err, "reset catalog")
		return
	}

	log.Printf("catalog reset to seed data")
	respondSuccess(c, "catalog reset to seed data")
}

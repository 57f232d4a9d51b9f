package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookstacks/catalog/internal/catalog"
)

// CatalogController serves the aggregated catalog view and per-entity
// detail lookups.
type CatalogController struct {
	service *catalog.Service
}

func NewCatalogController(service *catalog.Service) *CatalogController {
	return &CatalogController{service: service}
}

// View returns the whole catalog: books with resolved relation names,
// users, and the list of checked-out books.
func (ctrl *CatalogController) View(c *gin.Context) {
	view, err := ctrl.service.ListCatalog(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list catalog")
		return
	}
	c.JSON(http.StatusOK, view)
}

// EntityDetail returns a single entity's fields by kind and id.
// Kind is one of: book, author, publisher, genre, user.
func (ctrl *CatalogController) EntityDetail(c *gin.Context) {
	kind, err := catalog.ParseEntityKind(c.Param("kind"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	detail, err := ctrl.service.EntityDetail(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		respondDomainError(c, err, "entity detail")
		return
	}
	c.JSON(http.StatusOK, detail)
}

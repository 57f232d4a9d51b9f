package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Apply CSRF protection when a secret is configured
	if len(cfg.CSRFSecret) > 0 {
		router.Use(CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}

	healthController := NewHealthController(cfg.Store, cfg.Version)
	router.GET("/health", healthController.Status)

	catalogController := NewCatalogController(cfg.Service)
	router.GET("/api/catalog", catalogController.View)
	router.GET("/api/entity/:kind/:id", catalogController.EntityDetail)

	loanController := NewLoanController(cfg.Service)
	router.POST("/api/borrow", loanController.Borrow)
	router.POST("/api/return", loanController.Return)

	adminController := NewAdminController(cfg.Store, cfg.AdminPasswordHash)
	router.POST("/api/admin/reset", adminController.Reset)

	if len(cfg.CSRFSecret) > 0 {
		router.GET("/api/csrf", CSRFTokenHandler)
	}

	if cfg.TaskClient != nil {
		taskController := NewTaskController(cfg.TaskClient, cfg.TaskWorkers)
		router.GET("/api/tasks/stats", taskController.Stats)
		router.GET("/api/tasks/:id", taskController.GetTaskStatus)
		router.POST("/api/tasks/overdue_scan/run", taskController.RunOverdueScan)
	}

	return router
}

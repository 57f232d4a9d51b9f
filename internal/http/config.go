package http

import (
	"github.com/bookstacks/catalog/internal/catalog"
	"github.com/bookstacks/catalog/internal/store"
	"github.com/bookstacks/catalog/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Service *catalog.Service
	Store   store.Store

	// Catalog reset protection; empty means resets are open
	AdminPasswordHash []byte

	// CSRF protection is enabled when the secret is non-empty
	CSRFSecret    []byte
	SecureCookies bool

	// Task queue client (optional)
	TaskClient  *tasks.Client
	TaskWorkers int

	// Application info
	Version string
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

// CSRFTokenHeader is the header name for the CSRF token in AJAX requests.
const CSRFTokenHeader = "X-CSRF-Token"

// CSRFMiddleware creates a Gin middleware for CSRF protection. Safe
// methods (GET, HEAD, OPTIONS, TRACE) pass through unchecked.
func CSRFMiddleware(secret []byte, secure bool) gin.HandlerFunc {
	csrfProtect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteStrictMode),
		csrf.Path("/"),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(c *gin.Context) {
		passed := false
		handler := csrfProtect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			// Keep the CSRF context on the request for token issuance
			c.Set("csrf_token", csrf.Token(r))
			c.Request = r
			c.Next()
		}))

		handler.ServeHTTP(c.Writer, c.Request)

		// Rejected requests never reach the inner handler; stop the
		// chain so route handlers do not run after the 403.
		if !passed {
			c.Abort()
		}
	}
}

// csrfErrorHandler handles CSRF validation failures.
func csrfErrorHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"CSRF token invalid or missing"}`))
}

// CSRFTokenResponse carries a freshly issued CSRF token.
type CSRFTokenResponse struct {
	Token string `json:"token"`
}

// CSRFTokenHandler returns the token clients must echo back in the
// X-CSRF-Token header on mutating requests.
func CSRFTokenHandler(c *gin.Context) {
	token, exists := c.Get("csrf_token")
	if !exists {
		c.JSON(http.StatusOK, CSRFTokenResponse{})
		return
	}
	t, _ := token.(string)
	c.JSON(http.StatusOK, CSRFTokenResponse{Token: t})
}

// responses.go -- Auth-specific response helpers.
//
// Thin wrappers over the shared respond package that add request-scoped
// logging and the auth error vocabulary.
package auth

import (
	"net/http"

	"github.com/MGallo-Code/mindtrack/internal/respond"
)

// invalidCredentials is the single 401 message for any failed login.
// Keep it generic to prevent user enumeration.
const invalidCredentials = "invalid credentials"

// internalServerError logs with request context and returns a generic 500.
func internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	logError(r, "internal server error", "error", err)
	respond.Error(w, http.StatusInternalServerError, "internal server error", "")
}

// Unauthorized returns a 401 for a token rejection; err must be an ErrToken* sentinel.
// Other packages use it when the token's user no longer exists.
func Unauthorized(w http.ResponseWriter, err error) {
	code, _ := rejectionCode(err)
	respond.Unauthorized(w, err.Error(), code)
}

// middleware.go

// Bearer authentication middleware.
package auth

import (
	"context"
	"net/http"
)

// contextKey is unexported to prevent collisions with other packages using the same context.
type contextKey string

const identityKey contextKey = "identity"

// IdentityFromContext retrieves the authenticated caller from context.
// Returns nil and false if RequireAuth hasn't run.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// UserIDFromContext retrieves authenticated user's ID from context.
// Returns 0 and false if RequireAuth hasn't run.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return 0, false
	}
	return id.UserID, true
}

// WithIdentity returns a copy of ctx carrying id. Exposed for handler tests
// in other packages that bypass RequireAuth.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// RequireAuth runs g on every request. Rejections get a 401 carrying the
// reason and its code; guard infrastructure failures get a 500.
// On success the Identity is injected into the request context.
func RequireAuth(g Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := g.Authenticate(r)
			if err != nil {
				if code, ok := rejectionCode(err); ok {
					logWarn(r, "require auth failed", "reason", code)
					Unauthorized(w, err)
					return
				}
				internalServerError(w, r, err)
				return
			}
			logDebug(r, "request authenticated", "user_id", id.UserID)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

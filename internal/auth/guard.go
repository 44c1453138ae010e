// guard.go -- Request authentication strategies.
package auth

import (
	"errors"
	"net/http"
	"strings"
)

// Identity is the authenticated caller attached to a request.
// Claims is nil when no token was involved (StaticGuard).
type Identity struct {
	UserID int64
	Claims *Claims
}

// Guard resolves the caller of a request. Rejections are one of the
// ErrToken* sentinels; any other error is an infrastructure failure.
type Guard interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// JWTGuard authenticates Bearer access tokens.
type JWTGuard struct {
	Issuer *Issuer
}

// Authenticate implements Guard.
func (g *JWTGuard) Authenticate(r *http.Request) (*Identity, error) {
	raw, ok := BearerToken(r)
	if !ok {
		return nil, ErrTokenInvalid
	}
	claims, err := g.Issuer.Parse(r.Context(), raw, AccessToken)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: userID, Claims: claims}, nil
}

// StaticGuard treats every request as coming from one fixed user.
// For local development and single-user deployments only.
type StaticGuard struct {
	UserID int64
}

// Authenticate implements Guard.
func (g StaticGuard) Authenticate(*http.Request) (*Identity, error) {
	return &Identity{UserID: g.UserID}, nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is case-insensitive.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// rejectionCode returns the machine-readable code for a guard rejection.
// ok is false for errors that are not token rejections.
func rejectionCode(err error) (code string, ok bool) {
	switch {
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid", true
	case errors.Is(err, ErrTokenSignature):
		return "token_bad_signature", true
	case errors.Is(err, ErrTokenExpired):
		return "token_expired", true
	case errors.Is(err, ErrTokenRevoked):
		return "token_revoked", true
	}
	return "", false
}

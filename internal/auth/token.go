// token.go -- JWT access/refresh token issuing, parsing and revocation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes short-lived access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Default lifetimes, overridable through config.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Rejection reasons, in the order the guard checks them.
// Their messages are returned to clients verbatim.
var (
	ErrTokenInvalid   = errors.New("missing or invalid token")
	ErrTokenSignature = errors.New("signature verification failed")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenRevoked   = errors.New("token has been revoked")
)

// Claims is the JWT payload. Subject carries the user id, ID the jti.
type Claims struct {
	jwt.RegisteredClaims
	Type TokenType `json:"typ"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrTokenInvalid
	}
	return id, nil
}

// RevocationStore tracks revoked jtis until their tokens expire.
// Satisfied by *store.RedisRevocations and *store.MemoryRevocations.
type RevocationStore interface {
	// Revoke records jti as revoked until expiresAt.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked reports whether jti is currently revoked.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// CheckHealth reports backing store availability; store.ErrCacheDisabled
	// means no external store is configured.
	CheckHealth(ctx context.Context) error
}

// TokenPair is what a successful login hands back.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Issuer mints and validates HS256 tokens. Safe for concurrent use.
type Issuer struct {
	secret      []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	revocations RevocationStore
	now         func() time.Time
}

// NewIssuer returns an Issuer signing with secret. Zero TTLs fall back to the defaults.
func NewIssuer(secret []byte, accessTTL, refreshTTL time.Duration, revocations RevocationStore) *Issuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Issuer{
		secret:      secret,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		revocations: revocations,
		now:         time.Now,
	}
}

// AccessTTL is the lifetime given to new access tokens.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// Issue mints an access and a refresh token for userID, each with its own jti.
func (i *Issuer) Issue(userID int64) (*TokenPair, error) {
	access, accessExp, err := i.sign(userID, AccessToken, i.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := i.sign(userID, RefreshToken, i.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) sign(userID int64, typ TokenType, ttl time.Duration) (string, time.Time, error) {
	jti, err := uuid.NewV7()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generating jti: %w", err)
	}

	// JWT NumericDate is whole seconds; truncate so the returned expiry matches the claim.
	now := i.now().Truncate(time.Second)
	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Type: typ,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing %s token: %w", typ, err)
	}
	return signed, exp, nil
}

// Parse validates raw as a token of type want and returns its claims.
// Checks run in a fixed order: shape, signature, expiry, type, revocation.
// Returns one of the ErrToken* sentinels for a rejected token, or a wrapped
// store error if the revocation lookup itself failed.
func (i *Issuer) Parse(ctx context.Context, raw string, want TokenType) (*Claims, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Type != want || claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}

	revoked, err := i.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("checking token revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// classify maps jwt parse errors onto the guard's rejection reasons.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenInvalid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}

// Refresh exchanges a valid, unrevoked refresh token for a new access token
// for the same user. The refresh token itself is neither rotated nor revoked.
func (i *Issuer) Refresh(ctx context.Context, raw string) (string, time.Time, *Claims, error) {
	claims, err := i.Parse(ctx, raw, RefreshToken)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	userID, _ := claims.UserID()
	access, exp, err := i.sign(userID, AccessToken, i.accessTTL)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return access, exp, claims, nil
}

// Revoke adds the token's jti to the revocation set until the token expires.
func (i *Issuer) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return ErrTokenInvalid
	}
	return i.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

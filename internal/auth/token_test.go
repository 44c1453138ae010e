// token_test.go

// unit tests for Issuer: issue, parse state machine, refresh and revoke.
package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MGallo-Code/mindtrack/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestIssuer(t *testing.T) (*Issuer, *store.MemoryRevocations) {
	t.Helper()
	revs := store.NewMemoryRevocations()
	return NewIssuer(testSecret, time.Hour, 24*time.Hour, revs), revs
}

// signWith builds a token for claims using an arbitrary method and key.
func signWith(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return s
}

func validClaims(typ TokenType) Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			ID:        "jti-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Type: typ,
	}
}

func mustIssue(t *testing.T, iss *Issuer, userID int64) *TokenPair {
	t.Helper()
	pair, err := iss.Issue(userID)
	if err != nil {
		t.Fatalf("Issue(%d): %v", userID, err)
	}
	return pair
}

func mustParse(t *testing.T, iss *Issuer, raw string, typ TokenType) *Claims {
	t.Helper()
	claims, err := iss.Parse(context.Background(), raw, typ)
	if err != nil {
		t.Fatalf("Parse(%s): %v", typ, err)
	}
	return claims
}

// expectErr fails unless err matches want.
func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

// failingRevocations errors on every call.
type failingRevocations struct{}

func (failingRevocations) Revoke(context.Context, string, time.Time) error {
	return errors.New("redis down")
}
func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}
func (failingRevocations) CheckHealth(context.Context) error { return errors.New("redis down") }

func TestNewIssuer_DefaultTTLs(t *testing.T) {
	iss := NewIssuer(testSecret, 0, 0, store.NewMemoryRevocations())
	if iss.accessTTL != DefaultAccessTTL {
		t.Errorf("access TTL: expected %v, got %v", DefaultAccessTTL, iss.accessTTL)
	}
	if iss.refreshTTL != DefaultRefreshTTL {
		t.Errorf("refresh TTL: expected %v, got %v", DefaultRefreshTTL, iss.refreshTTL)
	}
}

func TestIssue(t *testing.T) {
	iss, _ := newTestIssuer(t)

	pair := mustIssue(t, iss, 42)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Error("access and refresh tokens must differ")
	}
	if !pair.RefreshExpiresAt.After(pair.AccessExpiresAt) {
		t.Error("refresh token should outlive access token")
	}

	access := mustParse(t, iss, pair.AccessToken, AccessToken)
	refresh := mustParse(t, iss, pair.RefreshToken, RefreshToken)

	t.Run("subject carries the user id", func(t *testing.T) {
		id, err := access.UserID()
		if err != nil || id != 42 {
			t.Errorf("UserID: expected 42, got %d, %v", id, err)
		}
	})

	t.Run("each token gets its own jti", func(t *testing.T) {
		if access.ID == "" || access.ID == refresh.ID {
			t.Errorf("jti: access %q, refresh %q", access.ID, refresh.ID)
		}
	})

	t.Run("expiry matches returned time", func(t *testing.T) {
		if !access.ExpiresAt.Time.Equal(pair.AccessExpiresAt) {
			t.Errorf("access exp: %v vs %v", access.ExpiresAt.Time, pair.AccessExpiresAt)
		}
		if !refresh.ExpiresAt.Time.Equal(pair.RefreshExpiresAt) {
			t.Errorf("refresh exp: %v vs %v", refresh.ExpiresAt.Time, pair.RefreshExpiresAt)
		}
	})

	t.Run("two issues never share a jti", func(t *testing.T) {
		again := mustIssue(t, iss, 42)
		if c := mustParse(t, iss, again.AccessToken, AccessToken); c.ID == access.ID {
			t.Errorf("jti reused: %q", c.ID)
		}
	})
}

func TestParse(t *testing.T) {
	ctx := context.Background()
	otherSecret := []byte("another-secret-another-secret-xx")

	t.Run("empty token is invalid", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		_, err := iss.Parse(ctx, "", AccessToken)
		expectErr(t, err, ErrTokenInvalid)
	})

	t.Run("garbage is invalid", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		for _, raw := range []string{"abc", "a.b", "a.b.c", "not.a.jwt.at.all"} {
			if _, err := iss.Parse(ctx, raw, AccessToken); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("raw=%q: expected ErrTokenInvalid, got %v", raw, err)
			}
		}
	})

	t.Run("wrong secret is a signature failure", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		_, err := iss.Parse(ctx, signWith(t, jwt.SigningMethodHS256, otherSecret, validClaims(AccessToken)), AccessToken)
		expectErr(t, err, ErrTokenSignature)
	})

	t.Run("unexpected algorithm is a signature failure", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		_, err := iss.Parse(ctx, signWith(t, jwt.SigningMethodHS512, testSecret, validClaims(AccessToken)), AccessToken)
		expectErr(t, err, ErrTokenSignature)
	})

	t.Run("alg none is a signature failure", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		raw := signWith(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims(AccessToken))
		_, err := iss.Parse(ctx, raw, AccessToken)
		expectErr(t, err, ErrTokenSignature)
	})

	t.Run("expired token", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		pair := mustIssue(t, iss, 1)

		iss.now = time.Now
		_, err := iss.Parse(ctx, pair.AccessToken, AccessToken)
		expectErr(t, err, ErrTokenExpired)
	})

	t.Run("bad signature wins over expiry", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		claims := validClaims(AccessToken)
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		_, err := iss.Parse(ctx, signWith(t, jwt.SigningMethodHS256, otherSecret, claims), AccessToken)
		expectErr(t, err, ErrTokenSignature)
	})

	t.Run("missing exp is invalid", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		claims := validClaims(AccessToken)
		claims.ExpiresAt = nil
		_, err := iss.Parse(ctx, signWith(t, jwt.SigningMethodHS256, testSecret, claims), AccessToken)
		expectErr(t, err, ErrTokenInvalid)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		pair := mustIssue(t, iss, 1)
		_, err := iss.Parse(ctx, pair.RefreshToken, AccessToken)
		expectErr(t, err, ErrTokenInvalid)
		_, err = iss.Parse(ctx, pair.AccessToken, RefreshToken)
		expectErr(t, err, ErrTokenInvalid)
	})

	t.Run("missing jti is invalid", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		claims := validClaims(AccessToken)
		claims.ID = ""
		_, err := iss.Parse(ctx, signWith(t, jwt.SigningMethodHS256, testSecret, claims), AccessToken)
		expectErr(t, err, ErrTokenInvalid)
	})

	t.Run("non-numeric subject is invalid", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		for _, sub := range []string{"", "abc", "0", "-3"} {
			claims := validClaims(AccessToken)
			claims.Subject = sub
			raw := signWith(t, jwt.SigningMethodHS256, testSecret, claims)
			if _, err := iss.Parse(ctx, raw, AccessToken); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("sub=%q: expected ErrTokenInvalid, got %v", sub, err)
			}
		}
	})

	t.Run("revoked token", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		pair := mustIssue(t, iss, 1)
		claims := mustParse(t, iss, pair.AccessToken, AccessToken)
		if err := iss.Revoke(ctx, claims); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
		_, err := iss.Parse(ctx, pair.AccessToken, AccessToken)
		expectErr(t, err, ErrTokenRevoked)
	})

	t.Run("expired and revoked reports expired", func(t *testing.T) {
		iss, revs := newTestIssuer(t)
		iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		pair := mustIssue(t, iss, 1)
		iss.now = time.Now

		// Seed the entry directly; Revoke skips tokens that are already expired.
		claims := &Claims{}
		if _, _, err := jwt.NewParser().ParseUnverified(pair.AccessToken, claims); err != nil {
			t.Fatalf("ParseUnverified: %v", err)
		}
		if err := revs.Revoke(ctx, claims.ID, time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("seeding revocation: %v", err)
		}

		_, err := iss.Parse(ctx, pair.AccessToken, AccessToken)
		expectErr(t, err, ErrTokenExpired)
	})

	t.Run("revocation store failure is not a rejection", func(t *testing.T) {
		iss := NewIssuer(testSecret, time.Hour, 24*time.Hour, failingRevocations{})
		pair := mustIssue(t, iss, 1)
		_, err := iss.Parse(ctx, pair.AccessToken, AccessToken)
		if err == nil {
			t.Fatal("expected an error from the failing store")
		}
		if _, isRejection := rejectionCode(err); isRejection {
			t.Errorf("store outage classified as token rejection: %v", err)
		}
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("issues access token for the same user", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		pair := mustIssue(t, iss, 9)

		access, exp, claims, err := iss.Refresh(ctx, pair.RefreshToken)
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if !exp.After(time.Now()) {
			t.Errorf("expiry in the past: %v", exp)
		}
		if sub, _ := claims.UserID(); sub != 9 {
			t.Errorf("refresh subject: expected 9, got %d", sub)
		}
		if id, _ := mustParse(t, iss, access, AccessToken).UserID(); id != 9 {
			t.Errorf("access subject: expected 9, got %d", id)
		}
	})

	t.Run("refresh token stays usable", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		pair := mustIssue(t, iss, 9)
		for i := 0; i < 2; i++ {
			if _, _, _, err := iss.Refresh(ctx, pair.RefreshToken); err != nil {
				t.Fatalf("Refresh #%d: %v", i+1, err)
			}
		}
	})

	t.Run("access token cannot refresh", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		pair := mustIssue(t, iss, 9)
		_, _, _, err := iss.Refresh(ctx, pair.AccessToken)
		expectErr(t, err, ErrTokenInvalid)
	})

	t.Run("revoked refresh token", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		pair := mustIssue(t, iss, 9)
		if err := iss.Revoke(ctx, mustParse(t, iss, pair.RefreshToken, RefreshToken)); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
		_, _, _, err := iss.Refresh(ctx, pair.RefreshToken)
		expectErr(t, err, ErrTokenRevoked)
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("records the jti in the revocation store", func(t *testing.T) {
		iss, revs := newTestIssuer(t)
		pair := mustIssue(t, iss, 1)
		if err := iss.Revoke(ctx, mustParse(t, iss, pair.AccessToken, AccessToken)); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
		if n := revs.Len(); n != 1 {
			t.Errorf("expected 1 revocation, got %d", n)
		}
	})

	t.Run("revoking one token leaves the other valid", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		pair := mustIssue(t, iss, 1)
		if err := iss.Revoke(ctx, mustParse(t, iss, pair.AccessToken, AccessToken)); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
		if _, err := iss.Parse(ctx, pair.RefreshToken, RefreshToken); err != nil {
			t.Errorf("refresh token should still parse: %v", err)
		}
	})

	t.Run("nil claims", func(t *testing.T) {
		iss, _ := newTestIssuer(t)
		expectErr(t, iss.Revoke(ctx, nil), ErrTokenInvalid)
	})
}

// handler.go -- HTTP handlers for /auth/* and /users/me.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MGallo-Code/mindtrack/internal/respond"
	"github.com/MGallo-Code/mindtrack/internal/store"
	"github.com/MGallo-Code/mindtrack/internal/validate"
	"github.com/jackc/pgx/v5"
)

// Store defines database operations needed by auth handlers.
// Satisfied by *store.PostgresStore, defined here (at consumer) per Go convention.
type Store interface {
	// CreateUser inserts a user and returns the stored row.
	// Duplicate username/email surface as a 23505 on the matching constraint.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error)

	// GetUserByEmail fetches user by email for login verification.
	// Returns pgx.ErrNoRows if no user has that email.
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)

	// GetUserByID fetches user by id. Returns pgx.ErrNoRows if not found.
	GetUserByID(ctx context.Context, id int64) (*store.User, error)

	// DeleteUser removes the user and, by cascade, everything they own.
	// Returns pgx.ErrNoRows if not found.
	DeleteUser(ctx context.Context, id int64) error

	// CheckHealth pings the database.
	CheckHealth(ctx context.Context) error
}

// RateLimiter checks and records rate limit state for a given key and policy.
// Satisfied by *store.RedisRateLimiter and store.NopRateLimiter -- defined here per Go convention.
type RateLimiter interface {
	// Allow checks whether the action is within policy, records the attempt.
	// Returns nil if allowed, a *store.RateLimitError if locked out.
	Allow(ctx context.Context, key string, policy store.RateLimit) error

	// Reset clears state for key.
	Reset(ctx context.Context, key string) error
}

// LoginEmailPolicy is the default rate limit applied per email address on login attempts.
// Applied before any DB work -- rejected requests never reach Argon2id.
var LoginEmailPolicy = store.RateLimit{
	MaxAttempts: 10,
	Window:      10 * time.Minute,
	LockoutTTL:  15 * time.Minute,
}

// AuthHandler holds dependencies for all /auth/* HTTP handlers.
type AuthHandler struct {
	PS     Store
	RS     RevocationStore
	RL     RateLimiter
	Tokens *Issuer

	// LoginPolicy overrides LoginEmailPolicy when set.
	// A policy with MaxAttempts 0 disables login throttling.
	LoginPolicy *store.RateLimit
}

func (h *AuthHandler) loginPolicy() store.RateLimit {
	if h.LoginPolicy == nil {
		return LoginEmailPolicy
	}
	return *h.LoginPolicy
}

var passwordTooLong = fmt.Sprintf("Longer than maximum length %d bytes.", MaxPasswordBytes)

func loginRateKey(email string) string {
	return "login:email:" + strings.ToLower(email)
}

// Register handles POST /auth/register: username + email + password signup.
// Returns 201 with the public user, 400 for validation errors, 409 naming the
// duplicated field, 500 for server errors.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username" validate:"required,notblank,max=80"`
		Email    string `json:"email" validate:"required,email,max=120"`
		Password string `json:"password" validate:"required"`
	}

	if err := respond.DecodeJSON(w, r, &in); err != nil {
		logWarn(r, "failed to decode register input", "error", err)
		respond.BadRequest(w, "error decoding request body")
		return
	}

	fields := validate.Struct(in)
	if err := ValidatePassword(in.Password); errors.Is(err, ErrPasswordTooLong) {
		if fields == nil {
			fields = map[string][]string{}
		}
		fields["password"] = append(fields["password"], passwordTooLong)
	}
	if fields != nil {
		respond.ValidationFailed(w, fields)
		return
	}

	hashedPassword, err := HashPassword(in.Password)
	if err != nil {
		internalServerError(w, r, err)
		return
	}

	user, err := h.PS.CreateUser(r.Context(), in.Username, in.Email, hashedPassword)
	if err != nil {
		if constraint, ok := store.UniqueViolation(err); ok {
			switch constraint {
			case store.ConstraintUsersUsername:
				logInfo(r, "registration attempted with existing username")
				respond.Conflict(w, "username", "username already exists")
				return
			case store.ConstraintUsersEmail:
				logInfo(r, "registration attempted with existing email")
				respond.Conflict(w, "email", "email already exists")
				return
			}
		}
		logError(r, "failed to create user", "error", err)
		internalServerError(w, r, err)
		return
	}

	logInfo(r, "user registered", "user_id", user.ID)
	respond.Created(w, user)
}

// loginResponse is the body of a successful login.
type loginResponse struct {
	User         *store.User `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
}

// Login handles POST /auth/login: email + password authentication.
// Returns 200 with the user and a token pair, 400 if either field is missing,
// 401 for bad credentials, 429 when throttled, 500 for server errors.
// Argon2id dummy-hash equalises timing when account doesn't exist.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := respond.DecodeJSON(w, r, &in); err != nil {
		logWarn(r, "failed to decode login input", "error", err)
		respond.BadRequest(w, "error decoding request body")
		return
	}

	if in.Email == "" || in.Password == "" {
		respond.BadRequest(w, "Missing email or password")
		return
	}

	// Over-long passwords can never have been registered; skip the hash work.
	if errors.Is(ValidatePassword(in.Password), ErrPasswordTooLong) {
		respond.Error(w, http.StatusUnauthorized, invalidCredentials, "")
		return
	}

	rateKey := loginRateKey(in.Email)
	if err := h.RL.Allow(r.Context(), rateKey, h.loginPolicy()); err != nil {
		var rlErr *store.RateLimitError
		if errors.As(err, &rlErr) {
			logWarn(r, "login rate limited", "retry_after", rlErr.RetryAfter)
			respond.TooManyRequests(w, rlErr.RetryAfter)
			return
		}
		// Limiter outage shouldn't lock everyone out.
		logError(r, "login rate limit check failed", "error", err)
	}

	user, err := h.PS.GetUserByEmail(r.Context(), in.Email)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			logError(r, "failed to fetch user for login", "error", err)
			internalServerError(w, r, err)
			return
		}
		// Run dummy hash to equalise timing with found-user path.
		VerifyPassword(in.Password, dummyPasswordHash)
		logInfo(r, "login attempted with non-existent email")
		respond.Error(w, http.StatusUnauthorized, invalidCredentials, "")
		return
	}

	valid, err := VerifyPassword(in.Password, user.PasswordHash)
	if err != nil {
		logError(r, "password verification failed", "error", err)
		internalServerError(w, r, err)
		return
	}
	if !valid {
		logInfo(r, "login attempted with incorrect password", "user_id", user.ID)
		respond.Error(w, http.StatusUnauthorized, invalidCredentials, "")
		return
	}

	pair, err := h.Tokens.Issue(user.ID)
	if err != nil {
		internalServerError(w, r, err)
		return
	}

	if err := h.RL.Reset(r.Context(), rateKey); err != nil {
		logWarn(r, "failed to reset login rate limit", "error", err)
	}

	logInfo(r, "user logged in successfully", "user_id", user.ID)
	respond.OK(w, loginResponse{
		User:         user,
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.Tokens.AccessTTL().Seconds()),
	})
}

// Logout handles POST /auth/logout: revokes the presented access token and,
// if the body carries one for the same user, the refresh token.
// An invalid refresh token in the body is logged and ignored.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		logError(r, "logout called without identity in context")
		internalServerError(w, r, errors.New("missing auth context"))
		return
	}

	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := respond.DecodeJSON(w, r, &in); err != nil && !errors.Is(err, io.EOF) {
		logWarn(r, "failed to decode logout input", "error", err)
		respond.BadRequest(w, "error decoding request body")
		return
	}

	// StaticGuard identities carry no token to revoke.
	if id.Claims != nil {
		if err := h.Tokens.Revoke(r.Context(), id.Claims); err != nil {
			internalServerError(w, r, err)
			return
		}
	}

	if in.RefreshToken != "" {
		h.revokeRefresh(r, id.UserID, in.RefreshToken)
	}

	logInfo(r, "user logged out", "user_id", id.UserID)
	respond.Message(w, "logged out")
}

// revokeRefresh revokes raw if it is a live refresh token belonging to userID.
func (h *AuthHandler) revokeRefresh(r *http.Request, userID int64, raw string) {
	claims, err := h.Tokens.Parse(r.Context(), raw, RefreshToken)
	if err != nil {
		logWarn(r, "logout ignored refresh token", "error", err)
		return
	}
	if sub, _ := claims.UserID(); sub != userID {
		logWarn(r, "logout ignored refresh token for another user", "user_id", userID)
		return
	}
	if err := h.Tokens.Revoke(r.Context(), claims); err != nil {
		logError(r, "failed to revoke refresh token", "error", err)
	}
}

// refreshResponse is the body of a successful refresh.
type refreshResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// Refresh handles POST /auth/refresh: exchanges the bearer refresh token
// for a new access token. 401 carries the same reasons as the access guard.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, ok := BearerToken(r)
	if !ok {
		Unauthorized(w, ErrTokenInvalid)
		return
	}

	access, _, claims, err := h.Tokens.Refresh(r.Context(), raw)
	if err != nil {
		if _, ok := rejectionCode(err); ok {
			logWarn(r, "token refresh rejected", "error", err)
			Unauthorized(w, err)
			return
		}
		internalServerError(w, r, err)
		return
	}

	// Deleted accounts keep no live sessions.
	userID, _ := claims.UserID()
	if _, err := h.PS.GetUserByID(r.Context(), userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logWarn(r, "token refresh for deleted user", "user_id", userID)
			Unauthorized(w, ErrTokenInvalid)
			return
		}
		internalServerError(w, r, err)
		return
	}

	logInfo(r, "access token refreshed", "user_id", userID)
	respond.OK(w, refreshResponse{
		Token:     access,
		TokenType: "Bearer",
		ExpiresIn: int64(h.Tokens.AccessTTL().Seconds()),
	})
}

// Me handles GET /users/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		internalServerError(w, r, errors.New("missing auth context"))
		return
	}

	user, err := h.PS.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, "user not found")
			return
		}
		internalServerError(w, r, err)
		return
	}
	respond.OK(w, user)
}

// DeleteMe handles DELETE /users/me: deletes the account and everything it
// owns, then revokes the presented token.
func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		internalServerError(w, r, errors.New("missing auth context"))
		return
	}

	if err := h.PS.DeleteUser(r.Context(), id.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, "user not found")
			return
		}
		internalServerError(w, r, err)
		return
	}

	if id.Claims != nil {
		if err := h.Tokens.Revoke(r.Context(), id.Claims); err != nil {
			logWarn(r, "failed to revoke token after account deletion", "error", err)
		}
	}

	logInfo(r, "user deleted account", "user_id", id.UserID)
	respond.NoContent(w)
}

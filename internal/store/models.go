// models.go -- Shared domain types for the store package.
// Used by the Postgres store, the revocation stores and the HTTP handlers.
package store

import (
	"errors"
	"time"
)

// ErrRateLimitExceeded is returned by Allow when the caller is locked out.
// Callers use errors.As with *RateLimitError to read the retry delay.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ErrCacheDisabled is returned by CheckHealth on stores that run without Redis.
// Callers use errors.Is to distinguish "not configured" from a real infrastructure failure.
var ErrCacheDisabled = errors.New("cache disabled")

// Unique constraint names from migrations/00001_init.sql.
// Handlers map a 23505 on one of these to a field-level conflict.
const (
	ConstraintUsersUsername = "users_username_key"
	ConstraintUsersEmail    = "users_email_key"
	ConstraintHabitLogDate  = "habit_logs_habit_date_key"
	ConstraintMoodLogDate   = "mood_logs_user_date_key"
)

// Foreign keys to users, default-named by Postgres. A 23503 on one of these
// means the caller's account was deleted while their token was still live.
const (
	ConstraintHabitsUser   = "habits_user_id_fkey"
	ConstraintMoodLogsUser = "mood_logs_user_id_fkey"
)

// Column defaults mirrored in Go so handlers can fill omitted fields.
const (
	DefaultHabitFrequency = "daily"
	DefaultHabitLogValue  = 1
)

// User represents a row in the users table.
// PasswordHash is never serialized.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Habit represents a row in the habits table.
// Nullable columns are pointers; nil means SQL NULL.
type Habit struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Frequency   string    `json:"frequency"`
	StartDate   *Date     `json:"start_date"`
	EndDate     *Date     `json:"end_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// HabitPatch names exactly which habit fields an update supplies.
// nil fields are left untouched by Apply.
type HabitPatch struct {
	Name        *string
	Description *string
	Frequency   *string
	StartDate   *Date
	EndDate     *Date
}

// Apply returns h with every supplied patch field merged in.
func (p HabitPatch) Apply(h Habit) Habit {
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Description != nil {
		h.Description = p.Description
	}
	if p.Frequency != nil {
		h.Frequency = *p.Frequency
	}
	if p.StartDate != nil {
		h.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		h.EndDate = p.EndDate
	}
	return h
}

// HabitLog represents a row in the habit_logs table.
// (HabitID, LogDate) is unique.
type HabitLog struct {
	ID        int64     `json:"id"`
	HabitID   int64     `json:"habit_id"`
	LogDate   Date      `json:"log_date"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// MoodLog represents a row in the mood_logs table.
// (UserID, LogDate) is unique; Rating is 1..5.
type MoodLog struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Rating    int       `json:"rating"`
	Notes     *string   `json:"notes"`
	LogDate   Date      `json:"log_date"`
	CreatedAt time.Time `json:"created_at"`
}

// MoodPatch names exactly which mood log fields an update supplies.
type MoodPatch struct {
	Rating  *int
	Notes   *string
	LogDate *Date
}

// Apply returns m with every supplied patch field merged in.
func (p MoodPatch) Apply(m MoodLog) MoodLog {
	if p.Rating != nil {
		m.Rating = *p.Rating
	}
	if p.Notes != nil {
		m.Notes = p.Notes
	}
	if p.LogDate != nil {
		m.LogDate = *p.LogDate
	}
	return m
}

// DateRange bounds list queries; nil ends are open.
type DateRange struct {
	From *Date
	To   *Date
}

// RateLimit defines the policy for a rate-limited action.
// MaxAttempts 0 disables limiting; otherwise Window and LockoutTTL must be positive.
type RateLimit struct {
	MaxAttempts int           // attempts allowed within Window before lockout
	Window      time.Duration // rolling window for attempt counting
	LockoutTTL  time.Duration // how long to block after MaxAttempts is hit
}

// RateLimitError wraps ErrRateLimitExceeded with the remaining lockout.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return ErrRateLimitExceeded.Error() }

func (e *RateLimitError) Unwrap() error { return ErrRateLimitExceeded }

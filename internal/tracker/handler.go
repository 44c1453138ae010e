// handler.go -- Shared plumbing for the habit, habit log and mood handlers.
package tracker

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MGallo-Code/mindtrack/internal/auth"
	"github.com/MGallo-Code/mindtrack/internal/respond"
	"github.com/MGallo-Code/mindtrack/internal/store"
	"github.com/go-chi/chi/v5"
)

// Store defines database operations needed by tracker handlers.
// Satisfied by *store.PostgresStore, defined here (at consumer) per Go convention.
// Every method taking a userID must only match rows owned by that user and
// return pgx.ErrNoRows otherwise.
type Store interface {
	ListHabits(ctx context.Context, userID int64) ([]store.Habit, error)
	CreateHabit(ctx context.Context, h store.Habit) (*store.Habit, error)
	GetHabit(ctx context.Context, id, userID int64) (*store.Habit, error)
	UpdateHabit(ctx context.Context, h store.Habit) (*store.Habit, error)
	DeleteHabit(ctx context.Context, id, userID int64) error

	// HabitLogExists is the fast-path duplicate check before CreateHabitLog.
	HabitLogExists(ctx context.Context, habitID, userID int64, date store.Date) (bool, error)
	// CreateHabitLog returns a unique violation on store.ConstraintHabitLogDate
	// when the day is already logged.
	CreateHabitLog(ctx context.Context, habitID, userID int64, date store.Date, value int) (*store.HabitLog, error)
	ListHabitLogs(ctx context.Context, habitID, userID int64, r store.DateRange) ([]store.HabitLog, error)
	DeleteHabitLog(ctx context.Context, habitID, logID, userID int64) error

	ListMoodLogs(ctx context.Context, userID int64, r store.DateRange) ([]store.MoodLog, error)
	// MoodLogExists is the fast-path duplicate check before CreateMoodLog.
	MoodLogExists(ctx context.Context, userID int64, date store.Date) (bool, error)
	// CreateMoodLog and UpdateMoodLog return a unique violation on
	// store.ConstraintMoodLogDate when the day is already logged.
	CreateMoodLog(ctx context.Context, m store.MoodLog) (*store.MoodLog, error)
	GetMoodLog(ctx context.Context, id, userID int64) (*store.MoodLog, error)
	UpdateMoodLog(ctx context.Context, m store.MoodLog) (*store.MoodLog, error)
	DeleteMoodLog(ctx context.Context, id, userID int64) error
}

// Handler serves /habits and /moods. Every route expects auth.RequireAuth upstream.
type Handler struct {
	Store Store

	// Now supplies the clock for defaulted log dates; nil means time.Now.
	Now func() time.Time
}

// today is the default log date, the current UTC day.
func (h *Handler) today() store.Date {
	if h.Now != nil {
		return store.NewDate(h.Now().UTC())
	}
	return store.Today()
}

// errMissingAuth means a route was mounted without RequireAuth.
var errMissingAuth = errors.New("missing auth context")

// errBadID is returned by pathID for non-numeric or non-positive ids.
var errBadID = errors.New("invalid id")

// currentUser returns the authenticated user id, writing a 500 if absent.
func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		internalServerError(w, r, errMissingAuth)
		return 0, false
	}
	return userID, true
}

// pathID parses the named chi URL param as a positive int64.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// dateRange parses optional ?from= and ?to= query values.
// Writes a 400 for unparseable dates and a 422 when from is after to.
func dateRange(w http.ResponseWriter, r *http.Request) (store.DateRange, bool) {
	var dr store.DateRange
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  **store.Date
	}{{"from", &dr.From}, {"to", &dr.To}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := store.ParseDate(raw)
		if err != nil {
			respond.ValidationFailed(w, map[string][]string{p.name: {"Not a valid date."}})
			return dr, false
		}
		*p.dst = &d
	}
	if dr.From != nil && dr.To != nil && dr.To.Before(*dr.From) {
		respond.Unprocessable(w, "to", "to must not be before from")
		return dr, false
	}
	return dr, true
}

// isUserGone reports a foreign-key miss on the owning user: the account was
// deleted but its access token has not expired yet.
func isUserGone(err error) bool {
	c, ok := store.ForeignKeyViolation(err)
	return ok && (c == store.ConstraintHabitsUser || c == store.ConstraintMoodLogsUser)
}

// internalServerError logs with request context and returns a generic 500.
func internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	logError(r, "internal server error", "error", err)
	respond.Error(w, http.StatusInternalServerError, "internal server error", "")
}

// Mount registers the tracker routes on r. Callers wrap r in auth.RequireAuth.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/habits", func(r chi.Router) {
		r.Get("/", h.ListHabits)
		r.Post("/", h.CreateHabit)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetHabit)
			r.Put("/", h.UpdateHabit)
			r.Patch("/", h.UpdateHabit)
			r.Delete("/", h.DeleteHabit)
			r.Post("/track", h.TrackHabit)
			r.Post("/logs", h.TrackHabit)
			r.Get("/logs", h.ListHabitLogs)
			r.Delete("/logs/{logID}", h.DeleteHabitLog)
		})
	})
	r.Route("/moods", func(r chi.Router) {
		r.Get("/", h.ListMoods)
		r.Post("/", h.CreateMood)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetMood)
			r.Put("/", h.UpdateMood)
			r.Patch("/", h.UpdateMood)
			r.Delete("/", h.DeleteMood)
		})
	})
}

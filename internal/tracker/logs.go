// logs.go -- Habit completion log handlers.
package tracker

import (
	"errors"
	"io"
	"net/http"

	"github.com/MGallo-Code/mindtrack/internal/respond"
	"github.com/MGallo-Code/mindtrack/internal/store"
	"github.com/MGallo-Code/mindtrack/internal/validate"
	"github.com/jackc/pgx/v5"
)

const (
	habitLogNotFound = "habit log not found"
	alreadyTracked   = "habit already tracked for this date"
)

// trackInput is the POST /habits/{id}/track body. Both fields are optional.
// Value is bounded by the INTEGER column it lands in.
type trackInput struct {
	LogDate *store.Date `json:"log_date"`
	Value   *int        `json:"value" validate:"omitempty,gte=0,lte=2147483647"`
}

// TrackHabit handles POST /habits/{id}/track: records the habit as done on a day.
// log_date defaults to today (UTC) and value to 1.
// Returns 201 with the log, 404 for unknown or unowned habits, 409 if the day is taken.
func (h *Handler) TrackHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	habitID, err := pathID(r, "id")
	if err != nil {
		respond.NotFound(w, habitNotFound)
		return
	}

	var in trackInput
	if err := respond.DecodeJSON(w, r, &in); err != nil && !errors.Is(err, io.EOF) {
		logWarn(r, "failed to decode track input", "error", err)
		respond.BadRequest(w, "error decoding request body")
		return
	}
	if fields := validate.Struct(in); fields != nil {
		respond.ValidationFailed(w, fields)
		return
	}

	date := h.today()
	if in.LogDate != nil {
		date = *in.LogDate
	}
	value := store.DefaultHabitLogValue
	if in.Value != nil {
		value = *in.Value
	}

	if _, err := h.Store.GetHabit(r.Context(), habitID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, habitNotFound)
			return
		}
		internalServerError(w, r, err)
		return
	}

	exists, err := h.Store.HabitLogExists(r.Context(), habitID, userID, date)
	if err != nil {
		internalServerError(w, r, err)
		return
	}
	if exists {
		respond.Conflict(w, "log_date", alreadyTracked)
		return
	}

	// A concurrent insert can still win between the check and here; the
	// unique constraint turns that into the same 409.
	log, err := h.Store.CreateHabitLog(r.Context(), habitID, userID, date, value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, habitNotFound)
			return
		}
		if c, ok := store.UniqueViolation(err); ok && c == store.ConstraintHabitLogDate {
			logInfo(r, "duplicate habit log lost insert race", "habit_id", habitID, "log_date", date.String())
			respond.Conflict(w, "log_date", alreadyTracked)
			return
		}
		internalServerError(w, r, err)
		return
	}

	logInfo(r, "habit tracked", "user_id", userID, "habit_id", habitID, "log_date", date.String())
	respond.Created(w, log)
}

// ListHabitLogs handles GET /habits/{id}/logs with optional from/to bounds.
func (h *Handler) ListHabitLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	habitID, err := pathID(r, "id")
	if err != nil {
		respond.NotFound(w, habitNotFound)
		return
	}
	dr, ok := dateRange(w, r)
	if !ok {
		return
	}

	// The list query alone can't tell "no logs" from "not your habit".
	if _, err := h.Store.GetHabit(r.Context(), habitID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, habitNotFound)
			return
		}
		internalServerError(w, r, err)
		return
	}

	logs, err := h.Store.ListHabitLogs(r.Context(), habitID, userID, dr)
	if err != nil {
		internalServerError(w, r, err)
		return
	}
	if logs == nil {
		logs = []store.HabitLog{}
	}
	respond.OK(w, logs)
}

// DeleteHabitLog handles DELETE /habits/{id}/logs/{logID}.
func (h *Handler) DeleteHabitLog(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	habitID, err := pathID(r, "id")
	if err != nil {
		respond.NotFound(w, habitLogNotFound)
		return
	}
	logID, err := pathID(r, "logID")
	if err != nil {
		respond.NotFound(w, habitLogNotFound)
		return
	}

	if err := h.Store.DeleteHabitLog(r.Context(), habitID, logID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, habitLogNotFound)
			return
		}
		internalServerError(w, r, err)
		return
	}
	logInfo(r, "habit log deleted", "user_id", userID, "habit_id", habitID, "log_id", logID)
	respond.NoContent(w)
}

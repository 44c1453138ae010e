// moods.go -- /moods CRUD handlers.
package tracker

import (
	"errors"
	"net/http"

	"github.com/MGallo-Code/mindtrack/internal/auth"
	"github.com/MGallo-Code/mindtrack/internal/respond"
	"github.com/MGallo-Code/mindtrack/internal/store"
	"github.com/MGallo-Code/mindtrack/internal/validate"
	"github.com/jackc/pgx/v5"
)

const (
	moodNotFound  = "mood log not found"
	alreadyLogged = "mood already logged for this date"
)

// createMoodInput is the POST /moods body.
type createMoodInput struct {
	Rating  *int        `json:"rating" validate:"required,gte=1,lte=5"`
	Notes   *string     `json:"notes"`
	LogDate *store.Date `json:"log_date" validate:"required"`
}

// updateMoodInput is the PUT/PATCH /moods/{id} body; absent fields stay unchanged.
type updateMoodInput struct {
	Rating  *int        `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Notes   *string     `json:"notes"`
	LogDate *store.Date `json:"log_date"`
}

// isMoodDateConflict reports whether err is the (user, log_date) unique violation.
func isMoodDateConflict(err error) bool {
	c, ok := store.UniqueViolation(err)
	return ok && c == store.ConstraintMoodLogDate
}

// ListMoods handles GET /moods with optional from/to bounds, newest day first.
func (h *Handler) ListMoods(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	dr, ok := dateRange(w, r)
	if !ok {
		return
	}

	moods, err := h.Store.ListMoodLogs(r.Context(), userID, dr)
	if err != nil {
		internalServerError(w, r, err)
		return
	}
	if moods == nil {
		moods = []store.MoodLog{}
	}
	respond.OK(w, moods)
}

// CreateMood handles POST /moods.
// Returns 201 with the log, 400 for validation errors (rating outside 1..5
// included), 409 if the day already has a mood.
func (h *Handler) CreateMood(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in createMoodInput
	if err := respond.DecodeJSON(w, r, &in); err != nil {
		logWarn(r, "failed to decode mood input", "error", err)
		respond.BadRequest(w, "error decoding request body")
		return
	}
	if fields := validate.Struct(in); fields != nil {
		respond.ValidationFailed(w, fields)
		return
	}

	exists, err := h.Store.MoodLogExists(r.Context(), userID, *in.LogDate)
	if err != nil {
		internalServerError(w, r, err)
		return
	}
	if exists {
		respond.Conflict(w, "log_date", alreadyLogged)
		return
	}

	mood, err := h.Store.CreateMoodLog(r.Context(), store.MoodLog{
		UserID:  userID,
		Rating:  *in.Rating,
		Notes:   in.Notes,
		LogDate: *in.LogDate,
	})
	if err != nil {
		if isMoodDateConflict(err) {
			logInfo(r, "duplicate mood log lost insert race", "user_id", userID)
			respond.Conflict(w, "log_date", alreadyLogged)
			return
		}
		if isUserGone(err) {
			logWarn(r, "mood create for deleted user", "user_id", userID)
			auth.Unauthorized(w, auth.ErrTokenInvalid)
			return
		}
		internalServerError(w, r, err)
		return
	}

	logInfo(r, "mood logged", "user_id", userID, "mood_id", mood.ID, "log_date", mood.LogDate.String())
	respond.Created(w, mood)
}

// GetMood handles GET /moods/{id}.
func (h *Handler) GetMood(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respond.NotFound(w, moodNotFound)
		return
	}

	mood, err := h.Store.GetMoodLog(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, moodNotFound)
			return
		}
		internalServerError(w, r, err)
		return
	}
	respond.OK(w, mood)
}

// UpdateMood handles PUT and PATCH /moods/{id}. Moving log_date onto a day
// that already has a mood is a 409.
func (h *Handler) UpdateMood(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respond.NotFound(w, moodNotFound)
		return
	}

	var in updateMoodInput
	if err := respond.DecodeJSON(w, r, &in); err != nil {
		logWarn(r, "failed to decode mood update", "error", err)
		respond.BadRequest(w, "error decoding request body")
		return
	}
	if fields := validate.Struct(in); fields != nil {
		respond.ValidationFailed(w, fields)
		return
	}

	current, err := h.Store.GetMoodLog(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, moodNotFound)
			return
		}
		internalServerError(w, r, err)
		return
	}

	if in.LogDate != nil && !in.LogDate.Equal(current.LogDate) {
		exists, err := h.Store.MoodLogExists(r.Context(), userID, *in.LogDate)
		if err != nil {
			internalServerError(w, r, err)
			return
		}
		if exists {
			respond.Conflict(w, "log_date", alreadyLogged)
			return
		}
	}

	next := store.MoodPatch{Rating: in.Rating, Notes: in.Notes, LogDate: in.LogDate}.Apply(*current)
	updated, err := h.Store.UpdateMoodLog(r.Context(), next)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			respond.NotFound(w, moodNotFound)
		case isMoodDateConflict(err):
			respond.Conflict(w, "log_date", alreadyLogged)
		default:
			internalServerError(w, r, err)
		}
		return
	}
	logInfo(r, "mood updated", "user_id", userID, "mood_id", id)
	respond.OK(w, updated)
}

// DeleteMood handles DELETE /moods/{id}.
func (h *Handler) DeleteMood(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respond.NotFound(w, moodNotFound)
		return
	}

	if err := h.Store.DeleteMoodLog(r.Context(), id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, moodNotFound)
			return
		}
		internalServerError(w, r, err)
		return
	}
	logInfo(r, "mood deleted", "user_id", userID, "mood_id", id)
	respond.NoContent(w)
}

// habits.go -- /habits CRUD handlers.
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

const habitNotFound = "habit not found"

// createHabitInput is the POST /habits body.
type createHabitInput struct {
	Name        string      `json:"name" validate:"required,notblank,max=100"`
	Description *string     `json:"description"`
	Frequency   string      `json:"frequency" validate:"omitempty,notblank,max=50"`
	StartDate   *store.Date `json:"start_date"`
	EndDate     *store.Date `json:"end_date"`
}

// updateHabitInput is the PUT/PATCH /habits/{id} body; absent fields stay unchanged.
type updateHabitInput struct {
	Name        *string     `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string     `json:"description"`
	Frequency   *string     `json:"frequency" validate:"omitempty,notblank,max=50"`
	StartDate   *store.Date `json:"start_date"`
	EndDate     *store.Date `json:"end_date"`
}

func (in updateHabitInput) patch() store.HabitPatch {
	return store.HabitPatch{
		Name:        in.Name,
		Description: in.Description,
		Frequency:   in.Frequency,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
}

// checkHabitDates writes a 422 and returns false when the end date precedes the start date.
func checkHabitDates(w http.ResponseWriter, h store.Habit) bool {
	if h.StartDate != nil && h.EndDate != nil && h.EndDate.Before(*h.StartDate) {
		respond.Unprocessable(w, "end_date", "end_date must not be before start_date")
		return false
	}
	return true
}

// ListHabits handles GET /habits: the caller's habits, newest first.
func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	habits, err := h.Store.ListHabits(r.Context(), userID)
	if err != nil {
		internalServerError(w, r, err)
		return
	}
	if habits == nil {
		habits = []store.Habit{}
	}
	respond.OK(w, habits)
}

// CreateHabit handles POST /habits.
// Returns 201 with the habit, 400 for validation errors, 422 for inconsistent dates.
func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in createHabitInput
	if err := respond.DecodeJSON(w, r, &in); err != nil {
		logWarn(r, "failed to decode habit input", "error", err)
		respond.BadRequest(w, "error decoding request body")
		return
	}
	if fields := validate.Struct(in); fields != nil {
		respond.ValidationFailed(w, fields)
		return
	}

	habit := store.Habit{
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Frequency:   in.Frequency,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
	if habit.Frequency == "" {
		habit.Frequency = store.DefaultHabitFrequency
	}
	if !checkHabitDates(w, habit) {
		return
	}

	created, err := h.Store.CreateHabit(r.Context(), habit)
	if err != nil {
		if isUserGone(err) {
			logWarn(r, "habit create for deleted user", "user_id", userID)
			auth.Unauthorized(w, auth.ErrTokenInvalid)
			return
		}
		internalServerError(w, r, err)
		return
	}
	logInfo(r, "habit created", "user_id", userID, "habit_id", created.ID)
	respond.Created(w, created)
}

// GetHabit handles GET /habits/{id}. Unowned habits are indistinguishable from missing ones.
func (h *Handler) GetHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respond.NotFound(w, habitNotFound)
		return
	}

	habit, err := h.Store.GetHabit(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, habitNotFound)
			return
		}
		internalServerError(w, r, err)
		return
	}
	respond.OK(w, habit)
}

// UpdateHabit handles PUT and PATCH /habits/{id}. Only supplied fields change.
func (h *Handler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respond.NotFound(w, habitNotFound)
		return
	}

	var in updateHabitInput
	if err := respond.DecodeJSON(w, r, &in); err != nil {
		logWarn(r, "failed to decode habit update", "error", err)
		respond.BadRequest(w, "error decoding request body")
		return
	}
	if fields := validate.Struct(in); fields != nil {
		respond.ValidationFailed(w, fields)
		return
	}

	current, err := h.Store.GetHabit(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, habitNotFound)
			return
		}
		internalServerError(w, r, err)
		return
	}

	next := in.patch().Apply(*current)
	if !checkHabitDates(w, next) {
		return
	}

	updated, err := h.Store.UpdateHabit(r.Context(), next)
	if err != nil {
		// Deleted between read and write.
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, habitNotFound)
			return
		}
		internalServerError(w, r, err)
		return
	}
	logInfo(r, "habit updated", "user_id", userID, "habit_id", id)
	respond.OK(w, updated)
}

// DeleteHabit handles DELETE /habits/{id}; its logs go with it.
func (h *Handler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respond.NotFound(w, habitNotFound)
		return
	}

	if err := h.Store.DeleteHabit(r.Context(), id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respond.NotFound(w, habitNotFound)
			return
		}
		internalServerError(w, r, err)
		return
	}
	logInfo(r, "habit deleted", "user_id", userID, "habit_id", id)
	respond.NoContent(w)
}

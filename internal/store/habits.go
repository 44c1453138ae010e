// habits.go -- habit and habit log queries.
//
// Habit queries predicate on (id, user_id). Habit log queries reach the owner
// through a join on habits, so a log is only visible to its habit's owner.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// habitColumns matches the field order of Habit for RowToStructByPos.
const habitColumns = "id, user_id, name, description, frequency, start_date, end_date, created_at"

// habitLogColumns matches the field order of HabitLog.
const habitLogColumns = "id, habit_id, log_date, value, created_at"

// ListHabits returns all of userID's habits, newest first.
func (s *PostgresStore) ListHabits(ctx context.Context, userID int64) ([]Habit, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Habit])
}

// CreateHabit inserts h for h.UserID and returns the stored row.
func (s *PostgresStore) CreateHabit(ctx context.Context, h Habit) (*Habit, error) {
	rows, err := s.pool.Query(ctx, `
		INSERT INTO habits (user_id, name, description, frequency, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+habitColumns,
		h.UserID, h.Name, h.Description, h.Frequency, h.StartDate, h.EndDate)
	if err != nil {
		return nil, err
	}
	return collectHabit(rows)
}

// GetHabit fetches habit id if it belongs to userID.
// Returns pgx.ErrNoRows if not found or not owned.
func (s *PostgresStore) GetHabit(ctx context.Context, id, userID int64) (*Habit, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE id = $1 AND user_id = $2",
		id, userID)
	if err != nil {
		return nil, err
	}
	return collectHabit(rows)
}

// UpdateHabit writes the mutable fields of h where id and user_id both match.
// Returns pgx.ErrNoRows if not found or not owned.
func (s *PostgresStore) UpdateHabit(ctx context.Context, h Habit) (*Habit, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE habits
		SET name = $3, description = $4, frequency = $5, start_date = $6, end_date = $7
		WHERE id = $1 AND user_id = $2
		RETURNING `+habitColumns,
		h.ID, h.UserID, h.Name, h.Description, h.Frequency, h.StartDate, h.EndDate)
	if err != nil {
		return nil, err
	}
	return collectHabit(rows)
}

// DeleteHabit removes habit id owned by userID; its logs cascade.
// Returns pgx.ErrNoRows if not found or not owned.
func (s *PostgresStore) DeleteHabit(ctx context.Context, id, userID int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM habits WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// HabitLogExists reports whether userID's habit already has a log on date.
// Fast-path check only; the unique constraint is the real guarantee.
func (s *PostgresStore) HabitLogExists(ctx context.Context, habitID, userID int64, date Date) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM habit_logs l
			JOIN habits h ON h.id = l.habit_id
			WHERE l.habit_id = $1 AND h.user_id = $2 AND l.log_date = $3
		)
	`, habitID, userID, date).Scan(&exists)
	return exists, err
}

// CreateHabitLog inserts a log for habitID only if userID owns the habit, in
// one statement. Returns pgx.ErrNoRows if the habit is not found or not owned,
// or a unique violation on ConstraintHabitLogDate if the day is already logged.
func (s *PostgresStore) CreateHabitLog(ctx context.Context, habitID, userID int64, date Date, value int) (*HabitLog, error) {
	rows, err := s.pool.Query(ctx, `
		INSERT INTO habit_logs (habit_id, log_date, value)
		SELECT h.id, $3, $4 FROM habits h WHERE h.id = $1 AND h.user_id = $2
		RETURNING `+habitLogColumns,
		habitID, userID, date, value)
	if err != nil {
		return nil, err
	}
	l, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[HabitLog])
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListHabitLogs returns the logs of userID's habit within r, oldest first.
// An unowned habit yields an empty slice; callers check ownership with GetHabit.
func (s *PostgresStore) ListHabitLogs(ctx context.Context, habitID, userID int64, r DateRange) ([]HabitLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, l.habit_id, l.log_date, l.value, l.created_at
		FROM habit_logs l
		JOIN habits h ON h.id = l.habit_id
		WHERE l.habit_id = $1 AND h.user_id = $2
		  AND ($3::date IS NULL OR l.log_date >= $3)
		  AND ($4::date IS NULL OR l.log_date <= $4)
		ORDER BY l.log_date
	`, habitID, userID, r.From, r.To)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[HabitLog])
}

// DeleteHabitLog removes log logID of habitID if userID owns the habit.
// Returns pgx.ErrNoRows if not found or not owned.
func (s *PostgresStore) DeleteHabitLog(ctx context.Context, habitID, logID, userID int64) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM habit_logs l
		USING habits h
		WHERE l.id = $1 AND l.habit_id = $2 AND h.id = l.habit_id AND h.user_id = $3
	`, logID, habitID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func collectHabit(rows pgx.Rows) (*Habit, error) {
	h, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[Habit])
	if err != nil {
		return nil, err
	}
	return &h, nil
}

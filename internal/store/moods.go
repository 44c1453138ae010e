// moods.go -- mood log queries. Every statement predicates on user_id.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// moodColumns matches the field order of MoodLog for RowToStructByPos.
const moodColumns = "id, user_id, rating, notes, log_date, created_at"

// ListMoodLogs returns userID's mood logs within r, newest day first.
func (s *PostgresStore) ListMoodLogs(ctx context.Context, userID int64, r DateRange) ([]MoodLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+moodColumns+` FROM mood_logs
		WHERE user_id = $1
		  AND ($2::date IS NULL OR log_date >= $2)
		  AND ($3::date IS NULL OR log_date <= $3)
		ORDER BY log_date DESC
	`, userID, r.From, r.To)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[MoodLog])
}

// MoodLogExists reports whether userID already has a mood log on date.
// Fast-path check only; the unique constraint is the real guarantee.
func (s *PostgresStore) MoodLogExists(ctx context.Context, userID int64, date Date) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM mood_logs WHERE user_id = $1 AND log_date = $2)",
		userID, date).Scan(&exists)
	return exists, err
}

// CreateMoodLog inserts m for m.UserID. Returns a unique violation on
// ConstraintMoodLogDate if the day is already logged.
func (s *PostgresStore) CreateMoodLog(ctx context.Context, m MoodLog) (*MoodLog, error) {
	rows, err := s.pool.Query(ctx, `
		INSERT INTO mood_logs (user_id, rating, notes, log_date)
		VALUES ($1, $2, $3, $4)
		RETURNING `+moodColumns,
		m.UserID, m.Rating, m.Notes, m.LogDate)
	if err != nil {
		return nil, err
	}
	return collectMood(rows)
}

// GetMoodLog fetches mood log id if it belongs to userID.
// Returns pgx.ErrNoRows if not found or not owned.
func (s *PostgresStore) GetMoodLog(ctx context.Context, id, userID int64) (*MoodLog, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+moodColumns+" FROM mood_logs WHERE id = $1 AND user_id = $2",
		id, userID)
	if err != nil {
		return nil, err
	}
	return collectMood(rows)
}

// UpdateMoodLog writes the mutable fields of m where id and user_id both match.
// Returns pgx.ErrNoRows if not found or not owned, or a unique violation if
// log_date moved onto a day that is already logged.
func (s *PostgresStore) UpdateMoodLog(ctx context.Context, m MoodLog) (*MoodLog, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE mood_logs
		SET rating = $3, notes = $4, log_date = $5
		WHERE id = $1 AND user_id = $2
		RETURNING `+moodColumns,
		m.ID, m.UserID, m.Rating, m.Notes, m.LogDate)
	if err != nil {
		return nil, err
	}
	return collectMood(rows)
}

// DeleteMoodLog removes mood log id owned by userID.
// Returns pgx.ErrNoRows if not found or not owned.
func (s *PostgresStore) DeleteMoodLog(ctx context.Context, id, userID int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM mood_logs WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func collectMood(rows pgx.Rows) (*MoodLog, error) {
	m, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[MoodLog])
	if err != nil {
		return nil, err
	}
	return &m, nil
}

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

// --- Users ---

func TestCreateUser(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()

	t.Run("stores values and defaults", func(t *testing.T) {
		u := mustCreateUser(t, ctx, "store_u1")
		if u.ID <= 0 {
			t.Errorf("expected positive id, got %d", u.ID)
		}
		if u.Email != "store_u1@example.com" {
			t.Errorf("email: got %q", u.Email)
		}
		if u.CreatedAt.IsZero() {
			t.Error("created_at should default to now()")
		}
	})

	t.Run("duplicate username reports username constraint", func(t *testing.T) {
		mustCreateUser(t, ctx, "store_dup")
		_, err := testStore.CreateUser(ctx, "store_dup", "other_dup@example.com", "h")
		c, ok := UniqueViolation(err)
		if !ok || c != ConstraintUsersUsername {
			t.Errorf("expected %s violation, got %v", ConstraintUsersUsername, err)
		}
	})

	t.Run("duplicate email reports email constraint", func(t *testing.T) {
		mustCreateUser(t, ctx, "store_dupmail")
		t.Cleanup(func() { cleanupUsers(ctx, "store_dupmail2") })
		_, err := testStore.CreateUser(ctx, "store_dupmail2", "store_dupmail@example.com", "h")
		c, ok := UniqueViolation(err)
		if !ok || c != ConstraintUsersEmail {
			t.Errorf("expected %s violation, got %v", ConstraintUsersEmail, err)
		}
	})
}

func TestGetUser(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()
	u := mustCreateUser(t, ctx, "store_get")

	got, err := testStore.GetUserByEmail(ctx, "store_get@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID || got.PasswordHash == "" {
		t.Errorf("unexpected user: %+v", got)
	}

	if _, err := testStore.GetUserByID(ctx, u.ID); err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if _, err := testStore.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()

	t.Run("cascades to owned rows", func(t *testing.T) {
		u := mustCreateUser(t, ctx, "store_del")
		h := mustCreateHabit(t, ctx, u.ID, "Read")
		if _, err := testStore.CreateHabitLog(ctx, h.ID, u.ID, mustDate(t, "2024-01-01"), 1); err != nil {
			t.Fatalf("CreateHabitLog: %v", err)
		}
		if _, err := testStore.CreateMoodLog(ctx, MoodLog{UserID: u.ID, Rating: 3, LogDate: mustDate(t, "2024-01-01")}); err != nil {
			t.Fatalf("CreateMoodLog: %v", err)
		}

		if err := testStore.DeleteUser(ctx, u.ID); err != nil {
			t.Fatalf("DeleteUser: %v", err)
		}
		var n int
		testStore.pool.QueryRow(ctx, `
			SELECT (SELECT count(*) FROM habits WHERE user_id = $1)
			     + (SELECT count(*) FROM habit_logs WHERE habit_id = $2)
			     + (SELECT count(*) FROM mood_logs WHERE user_id = $1)
		`, u.ID, h.ID).Scan(&n)
		if n != 0 {
			t.Errorf("expected owned rows gone, %d remain", n)
		}
	})

	t.Run("missing user returns ErrNoRows", func(t *testing.T) {
		if err := testStore.DeleteUser(ctx, -1); !errors.Is(err, pgx.ErrNoRows) {
			t.Errorf("expected pgx.ErrNoRows, got %v", err)
		}
	})

	t.Run("inserts for a deleted user report the user foreign key", func(t *testing.T) {
		u := mustCreateUser(t, ctx, "store_gone")
		if err := testStore.DeleteUser(ctx, u.ID); err != nil {
			t.Fatalf("DeleteUser: %v", err)
		}
		_, err := testStore.CreateHabit(ctx, Habit{UserID: u.ID, Name: "Read", Frequency: DefaultHabitFrequency})
		if c, ok := ForeignKeyViolation(err); !ok || c != ConstraintHabitsUser {
			t.Errorf("CreateHabit: expected %s violation, got %v", ConstraintHabitsUser, err)
		}
		_, err = testStore.CreateMoodLog(ctx, MoodLog{UserID: u.ID, Rating: 3, LogDate: mustDate(t, "2024-01-01")})
		if c, ok := ForeignKeyViolation(err); !ok || c != ConstraintMoodLogsUser {
			t.Errorf("CreateMoodLog: expected %s violation, got %v", ConstraintMoodLogsUser, err)
		}
	})
}

// --- Habits ---

func TestHabitOwnership(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()
	owner := mustCreateUser(t, ctx, "store_owner")
	other := mustCreateUser(t, ctx, "store_other")
	h := mustCreateHabit(t, ctx, owner.ID, "Run")

	if h.Frequency != DefaultHabitFrequency || h.StartDate != nil {
		t.Errorf("unexpected defaults: %+v", h)
	}

	if _, err := testStore.GetHabit(ctx, h.ID, other.ID); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("GetHabit as other: expected ErrNoRows, got %v", err)
	}
	if _, err := testStore.UpdateHabit(ctx, Habit{ID: h.ID, UserID: other.ID, Name: "x", Frequency: "daily"}); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("UpdateHabit as other: expected ErrNoRows, got %v", err)
	}
	if err := testStore.DeleteHabit(ctx, h.ID, other.ID); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("DeleteHabit as other: expected ErrNoRows, got %v", err)
	}
	if _, err := testStore.CreateHabitLog(ctx, h.ID, other.ID, mustDate(t, "2024-01-01"), 1); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("CreateHabitLog as other: expected ErrNoRows, got %v", err)
	}

	list, err := testStore.ListHabits(ctx, other.ID)
	if err != nil {
		t.Fatalf("ListHabits: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("other should see no habits, got %d", len(list))
	}

	start := mustDate(t, "2024-02-01")
	updated, err := testStore.UpdateHabit(ctx, Habit{ID: h.ID, UserID: owner.ID, Name: "Run 5k", Frequency: "weekly", StartDate: &start})
	if err != nil {
		t.Fatalf("UpdateHabit: %v", err)
	}
	if updated.Name != "Run 5k" || updated.StartDate == nil || !updated.StartDate.Equal(start) {
		t.Errorf("unexpected update: %+v", updated)
	}
}

func TestHabitLogs(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()
	u := mustCreateUser(t, ctx, "store_logs")
	h := mustCreateHabit(t, ctx, u.ID, "Meditate")
	day := mustDate(t, "2024-01-02")

	l, err := testStore.CreateHabitLog(ctx, h.ID, u.ID, day, 1)
	if err != nil {
		t.Fatalf("CreateHabitLog: %v", err)
	}
	if !l.LogDate.Equal(day) || l.Value != 1 {
		t.Errorf("unexpected log: %+v", l)
	}

	t.Run("same day twice violates constraint", func(t *testing.T) {
		_, err := testStore.CreateHabitLog(ctx, h.ID, u.ID, day, 1)
		if c, ok := UniqueViolation(err); !ok || c != ConstraintHabitLogDate {
			t.Errorf("expected %s violation, got %v", ConstraintHabitLogDate, err)
		}
		exists, err := testStore.HabitLogExists(ctx, h.ID, u.ID, day)
		if err != nil || !exists {
			t.Errorf("HabitLogExists: got %v, %v", exists, err)
		}
	})

	t.Run("list is date ordered and bounded", func(t *testing.T) {
		for _, s := range []string{"2024-01-03", "2024-01-01"} {
			if _, err := testStore.CreateHabitLog(ctx, h.ID, u.ID, mustDate(t, s), 2); err != nil {
				t.Fatalf("CreateHabitLog(%s): %v", s, err)
			}
		}
		all, err := testStore.ListHabitLogs(ctx, h.ID, u.ID, DateRange{})
		if err != nil {
			t.Fatalf("ListHabitLogs: %v", err)
		}
		if len(all) != 3 || all[0].LogDate.String() != "2024-01-01" || all[2].LogDate.String() != "2024-01-03" {
			t.Errorf("unexpected order: %+v", all)
		}

		from := mustDate(t, "2024-01-02")
		bounded, err := testStore.ListHabitLogs(ctx, h.ID, u.ID, DateRange{From: &from})
		if err != nil {
			t.Fatalf("ListHabitLogs: %v", err)
		}
		if len(bounded) != 2 {
			t.Errorf("expected 2 logs from 2024-01-02, got %d", len(bounded))
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := testStore.DeleteHabitLog(ctx, h.ID, l.ID, u.ID+1000000); !errors.Is(err, pgx.ErrNoRows) {
			t.Errorf("delete as other: expected ErrNoRows, got %v", err)
		}
		if err := testStore.DeleteHabitLog(ctx, h.ID, l.ID, u.ID); err != nil {
			t.Fatalf("DeleteHabitLog: %v", err)
		}
	})
}

// --- Mood logs ---

func TestMoodLogs(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()
	u := mustCreateUser(t, ctx, "store_moods")
	other := mustCreateUser(t, ctx, "store_moods2")
	day := mustDate(t, "2024-01-01")

	m, err := testStore.CreateMoodLog(ctx, MoodLog{UserID: u.ID, Rating: 4, LogDate: day})
	if err != nil {
		t.Fatalf("CreateMoodLog: %v", err)
	}
	if m.Notes != nil {
		t.Errorf("notes should be NULL, got %q", *m.Notes)
	}

	t.Run("same day for same user violates constraint", func(t *testing.T) {
		_, err := testStore.CreateMoodLog(ctx, MoodLog{UserID: u.ID, Rating: 2, LogDate: day})
		if c, ok := UniqueViolation(err); !ok || c != ConstraintMoodLogDate {
			t.Errorf("expected %s violation, got %v", ConstraintMoodLogDate, err)
		}
	})

	t.Run("same day for another user is fine", func(t *testing.T) {
		if _, err := testStore.CreateMoodLog(ctx, MoodLog{UserID: other.ID, Rating: 2, LogDate: day}); err != nil {
			t.Fatalf("CreateMoodLog: %v", err)
		}
	})

	t.Run("rating outside 1..5 is rejected by the check constraint", func(t *testing.T) {
		if _, err := testStore.CreateMoodLog(ctx, MoodLog{UserID: u.ID, Rating: 6, LogDate: mustDate(t, "2024-03-01")}); err == nil {
			t.Error("expected check violation")
		}
	})

	t.Run("update onto occupied day violates constraint", func(t *testing.T) {
		m2, err := testStore.CreateMoodLog(ctx, MoodLog{UserID: u.ID, Rating: 3, LogDate: mustDate(t, "2024-01-02")})
		if err != nil {
			t.Fatalf("CreateMoodLog: %v", err)
		}
		m2.LogDate = day
		_, err = testStore.UpdateMoodLog(ctx, *m2)
		if c, ok := UniqueViolation(err); !ok || c != ConstraintMoodLogDate {
			t.Errorf("expected %s violation, got %v", ConstraintMoodLogDate, err)
		}
	})

	t.Run("list newest first, owner only", func(t *testing.T) {
		list, err := testStore.ListMoodLogs(ctx, u.ID, DateRange{})
		if err != nil {
			t.Fatalf("ListMoodLogs: %v", err)
		}
		if len(list) != 2 || list[0].LogDate.String() != "2024-01-02" {
			t.Errorf("unexpected list: %+v", list)
		}
		for _, l := range list {
			if l.UserID != u.ID {
				t.Errorf("mood %d belongs to %d", l.ID, l.UserID)
			}
		}
	})

	t.Run("ownership", func(t *testing.T) {
		if _, err := testStore.GetMoodLog(ctx, m.ID, other.ID); !errors.Is(err, pgx.ErrNoRows) {
			t.Errorf("GetMoodLog as other: expected ErrNoRows, got %v", err)
		}
		if err := testStore.DeleteMoodLog(ctx, m.ID, other.ID); !errors.Is(err, pgx.ErrNoRows) {
			t.Errorf("DeleteMoodLog as other: expected ErrNoRows, got %v", err)
		}
		if err := testStore.DeleteMoodLog(ctx, m.ID, u.ID); err != nil {
			t.Fatalf("DeleteMoodLog: %v", err)
		}
		exists, err := testStore.MoodLogExists(ctx, u.ID, day)
		if err != nil || exists {
			t.Errorf("MoodLogExists after delete: got %v, %v", exists, err)
		}
	})
}

// --- Helpers ---

func TestUniqueViolation(t *testing.T) {
	if _, ok := UniqueViolation(errors.New("boom")); ok {
		t.Error("plain error is not a unique violation")
	}
	c, ok := UniqueViolation(NewUniqueViolation(ConstraintMoodLogDate))
	if !ok || c != ConstraintMoodLogDate {
		t.Errorf("got %q, %v", c, ok)
	}
}

func TestForeignKeyViolation(t *testing.T) {
	if _, ok := ForeignKeyViolation(NewUniqueViolation(ConstraintMoodLogDate)); ok {
		t.Error("unique violation is not a foreign key violation")
	}
	c, ok := ForeignKeyViolation(NewForeignKeyViolation(ConstraintHabitsUser))
	if !ok || c != ConstraintHabitsUser {
		t.Errorf("got %q, %v", c, ok)
	}
}

// stores.go
//
// Shared mock implementations of auth.Store, tracker.Store and auth.RateLimiter.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MGallo-Code/mindtrack/internal/store"
	"github.com/jackc/pgx/v5"
)

// MockStore implements auth.Store and tracker.Store for tests.

// Always stateful...rows live in maps, like a real store. Unique constraints
// and ownership predicates behave like the Postgres schema: duplicates return
// store.NewUniqueViolation, unowned rows return pgx.ErrNoRows.
// Use *Err fields to inject errors for specific operations.
type MockStore struct {
	// Error injection...zero value means no error
	CreateUserErr     error
	GetUserByEmailErr error
	GetUserByIDErr    error
	DeleteUserErr     error
	CheckHealthErr    error
	ListHabitsErr     error
	CreateHabitErr    error
	GetHabitErr       error
	HabitLogExistsErr error
	CreateHabitLogErr error
	ListMoodLogsErr   error
	CreateMoodLogErr  error

	// StaleExistsChecks makes HabitLogExists and MoodLogExists always report
	// false, as if a concurrent insert landed right after the check.
	StaleExistsChecks bool

	Users     map[int64]*store.User
	Habits    map[int64]*store.Habit
	HabitLogs map[int64]*store.HabitLog
	Moods     map[int64]*store.MoodLog

	nextID int64
	mu     sync.Mutex
}

// NewMockStore returns an empty MockStore seeded with the given users.
// Users with a zero ID are assigned one.
func NewMockStore(users ...*store.User) *MockStore {
	ms := &MockStore{
		Users:     make(map[int64]*store.User),
		Habits:    make(map[int64]*store.Habit),
		HabitLogs: make(map[int64]*store.HabitLog),
		Moods:     make(map[int64]*store.MoodLog),
	}
	for _, u := range users {
		if u.ID == 0 {
			u.ID = ms.newID()
		} else if u.ID > ms.nextID {
			ms.nextID = u.ID
		}
		ms.Users[u.ID] = u
	}
	return ms
}

// newID hands out ids from one sequence shared by all tables. Caller holds mu
// (or is the constructor).
func (m *MockStore) newID() int64 {
	m.nextID++
	return m.nextID
}

// --- Users ---

func (m *MockStore) CreateUser(_ context.Context, username, email, passwordHash string) (*store.User, error) {
	if m.CreateUserErr != nil {
		return nil, m.CreateUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Username == username {
			return nil, store.NewUniqueViolation(store.ConstraintUsersUsername)
		}
		if u.Email == email {
			return nil, store.NewUniqueViolation(store.ConstraintUsersEmail)
		}
	}
	u := &store.User{
		ID:           m.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	m.Users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *MockStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	if m.GetUserByEmailErr != nil {
		return nil, m.GetUserByEmailErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *MockStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	if m.GetUserByIDErr != nil {
		return nil, m.GetUserByIDErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

// DeleteUser removes the user and cascades to habits, their logs and moods.
func (m *MockStore) DeleteUser(_ context.Context, id int64) error {
	if m.DeleteUserErr != nil {
		return m.DeleteUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.Users, id)
	for hid, h := range m.Habits {
		if h.UserID == id {
			m.deleteHabitLocked(hid)
		}
	}
	for mid, mood := range m.Moods {
		if mood.UserID == id {
			delete(m.Moods, mid)
		}
	}
	return nil
}

func (m *MockStore) CheckHealth(context.Context) error {
	return m.CheckHealthErr
}

// --- Habits ---

func (m *MockStore) ListHabits(_ context.Context, userID int64) ([]store.Habit, error) {
	if m.ListHabitsErr != nil {
		return nil, m.ListHabitsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Habit
	for _, h := range m.Habits {
		if h.UserID == userID {
			out = append(out, *h)
		}
	}
	// Newest first; ids are monotonic.
	slices.SortFunc(out, func(a, b store.Habit) int { return int(b.ID - a.ID) })
	return out, nil
}

func (m *MockStore) CreateHabit(_ context.Context, h store.Habit) (*store.Habit, error) {
	if m.CreateHabitErr != nil {
		return nil, m.CreateHabitErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Users[h.UserID]; !ok {
		return nil, store.NewForeignKeyViolation(store.ConstraintHabitsUser)
	}
	h.ID = m.newID()
	h.CreatedAt = time.Now().UTC()
	m.Habits[h.ID] = &h
	cp := h
	return &cp, nil
}

func (m *MockStore) GetHabit(_ context.Context, id, userID int64) (*store.Habit, error) {
	if m.GetHabitErr != nil {
		return nil, m.GetHabitErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.ownedHabitLocked(id, userID)
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *h
	return &cp, nil
}

func (m *MockStore) UpdateHabit(_ context.Context, h store.Habit) (*store.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.ownedHabitLocked(h.ID, h.UserID)
	if !ok {
		return nil, pgx.ErrNoRows
	}
	h.CreatedAt = cur.CreatedAt
	m.Habits[h.ID] = &h
	cp := h
	return &cp, nil
}

func (m *MockStore) DeleteHabit(_ context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ownedHabitLocked(id, userID); !ok {
		return pgx.ErrNoRows
	}
	m.deleteHabitLocked(id)
	return nil
}

func (m *MockStore) ownedHabitLocked(id, userID int64) (*store.Habit, bool) {
	h, ok := m.Habits[id]
	if !ok || h.UserID != userID {
		return nil, false
	}
	return h, true
}

func (m *MockStore) deleteHabitLocked(id int64) {
	delete(m.Habits, id)
	for lid, l := range m.HabitLogs {
		if l.HabitID == id {
			delete(m.HabitLogs, lid)
		}
	}
}

// --- Habit logs ---

func (m *MockStore) HabitLogExists(_ context.Context, habitID, userID int64, date store.Date) (bool, error) {
	if m.HabitLogExistsErr != nil {
		return false, m.HabitLogExistsErr
	}
	if m.StaleExistsChecks {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ownedHabitLocked(habitID, userID); !ok {
		return false, nil
	}
	return m.habitLoggedLocked(habitID, date), nil
}

func (m *MockStore) CreateHabitLog(_ context.Context, habitID, userID int64, date store.Date, value int) (*store.HabitLog, error) {
	if m.CreateHabitLogErr != nil {
		return nil, m.CreateHabitLogErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ownedHabitLocked(habitID, userID); !ok {
		return nil, pgx.ErrNoRows
	}
	if m.habitLoggedLocked(habitID, date) {
		return nil, store.NewUniqueViolation(store.ConstraintHabitLogDate)
	}
	l := &store.HabitLog{
		ID:        m.newID(),
		HabitID:   habitID,
		LogDate:   date,
		Value:     value,
		CreatedAt: time.Now().UTC(),
	}
	m.HabitLogs[l.ID] = l
	cp := *l
	return &cp, nil
}

func (m *MockStore) habitLoggedLocked(habitID int64, date store.Date) bool {
	for _, l := range m.HabitLogs {
		if l.HabitID == habitID && l.LogDate.Equal(date) {
			return true
		}
	}
	return false
}

func (m *MockStore) ListHabitLogs(_ context.Context, habitID, userID int64, r store.DateRange) ([]store.HabitLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ownedHabitLocked(habitID, userID); !ok {
		return nil, nil
	}
	var out []store.HabitLog
	for _, l := range m.HabitLogs {
		if l.HabitID == habitID && inRange(l.LogDate, r) {
			out = append(out, *l)
		}
	}
	slices.SortFunc(out, func(a, b store.HabitLog) int { return a.LogDate.Compare(b.LogDate.Time) })
	return out, nil
}

func (m *MockStore) DeleteHabitLog(_ context.Context, habitID, logID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ownedHabitLocked(habitID, userID); !ok {
		return pgx.ErrNoRows
	}
	l, ok := m.HabitLogs[logID]
	if !ok || l.HabitID != habitID {
		return pgx.ErrNoRows
	}
	delete(m.HabitLogs, logID)
	return nil
}

// --- Moods ---

func (m *MockStore) ListMoodLogs(_ context.Context, userID int64, r store.DateRange) ([]store.MoodLog, error) {
	if m.ListMoodLogsErr != nil {
		return nil, m.ListMoodLogsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.MoodLog
	for _, mood := range m.Moods {
		if mood.UserID == userID && inRange(mood.LogDate, r) {
			out = append(out, *mood)
		}
	}
	slices.SortFunc(out, func(a, b store.MoodLog) int { return b.LogDate.Compare(a.LogDate.Time) })
	return out, nil
}

func (m *MockStore) MoodLogExists(_ context.Context, userID int64, date store.Date) (bool, error) {
	if m.StaleExistsChecks {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moodLoggedLocked(userID, date, 0), nil
}

func (m *MockStore) CreateMoodLog(_ context.Context, mood store.MoodLog) (*store.MoodLog, error) {
	if m.CreateMoodLogErr != nil {
		return nil, m.CreateMoodLogErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Users[mood.UserID]; !ok {
		return nil, store.NewForeignKeyViolation(store.ConstraintMoodLogsUser)
	}
	if m.moodLoggedLocked(mood.UserID, mood.LogDate, 0) {
		return nil, store.NewUniqueViolation(store.ConstraintMoodLogDate)
	}
	mood.ID = m.newID()
	mood.CreatedAt = time.Now().UTC()
	m.Moods[mood.ID] = &mood
	cp := mood
	return &cp, nil
}

func (m *MockStore) GetMoodLog(_ context.Context, id, userID int64) (*store.MoodLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mood, ok := m.Moods[id]
	if !ok || mood.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	cp := *mood
	return &cp, nil
}

func (m *MockStore) UpdateMoodLog(_ context.Context, mood store.MoodLog) (*store.MoodLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.Moods[mood.ID]
	if !ok || cur.UserID != mood.UserID {
		return nil, pgx.ErrNoRows
	}
	if m.moodLoggedLocked(mood.UserID, mood.LogDate, mood.ID) {
		return nil, store.NewUniqueViolation(store.ConstraintMoodLogDate)
	}
	mood.CreatedAt = cur.CreatedAt
	m.Moods[mood.ID] = &mood
	cp := mood
	return &cp, nil
}

func (m *MockStore) DeleteMoodLog(_ context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mood, ok := m.Moods[id]
	if !ok || mood.UserID != userID {
		return pgx.ErrNoRows
	}
	delete(m.Moods, id)
	return nil
}

// moodLoggedLocked reports whether userID has a mood on date other than row exceptID.
func (m *MockStore) moodLoggedLocked(userID int64, date store.Date, exceptID int64) bool {
	for id, mood := range m.Moods {
		if id != exceptID && mood.UserID == userID && mood.LogDate.Equal(date) {
			return true
		}
	}
	return false
}

func inRange(d store.Date, r store.DateRange) bool {
	if r.From != nil && d.Before(*r.From) {
		return false
	}
	if r.To != nil && r.To.Before(d) {
		return false
	}
	return true
}

// MockRateLimiter implements auth.RateLimiter for tests.
// Counts attempts per key and locks out once a key passes MaxAttempts.
type MockRateLimiter struct {
	AllowErr error // returned from every Allow when set

	Attempts map[string]int

	mu sync.Mutex
}

// NewMockRateLimiter returns an empty MockRateLimiter ready for use.
func NewMockRateLimiter() *MockRateLimiter {
	return &MockRateLimiter{Attempts: make(map[string]int)}
}

func (l *MockRateLimiter) Allow(_ context.Context, key string, policy store.RateLimit) error {
	if l.AllowErr != nil {
		return l.AllowErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Attempts == nil {
		l.Attempts = make(map[string]int)
	}
	l.Attempts[key]++
	if policy.MaxAttempts > 0 && l.Attempts[key] > policy.MaxAttempts {
		return &store.RateLimitError{RetryAfter: policy.LockoutTTL}
	}
	return nil
}

func (l *MockRateLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.Attempts, key)
	return nil
}

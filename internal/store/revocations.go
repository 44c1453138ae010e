// revocations.go -- in-process revocation set.
//
// Used in tests and when REDIS_URL is unset. Entries live until the revoked
// token's own expiry; reads ignore stale entries and PurgeExpired drops them.
// Revocations are lost on restart.
package store

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocations is a mutex-guarded jti -> expiry map.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocations returns an empty set using the wall clock.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke records jti until expiresAt. Already-expired tokens are not stored.
func (m *MemoryRevocations) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !expiresAt.After(m.now()) {
		return nil
	}
	m.entries[jti] = expiresAt
	return nil
}

// IsRevoked reports whether jti was revoked and its token has not yet expired.
func (m *MemoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[jti]
	if !ok {
		return false, nil
	}
	if !exp.After(m.now()) {
		delete(m.entries, jti)
		return false, nil
	}
	return true, nil
}

// PurgeExpired drops entries whose tokens have expired and returns how many went.
func (m *MemoryRevocations) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for jti, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, jti)
			n++
		}
	}
	return n
}

// Len returns the number of tracked entries, expired or not.
func (m *MemoryRevocations) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// CheckHealth always reports ErrCacheDisabled; there is no Redis behind this store.
func (m *MemoryRevocations) CheckHealth(context.Context) error {
	return ErrCacheDisabled
}

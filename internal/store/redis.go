// redis.go -- go-redis client for the token revocation set and login throttling.
//
// Revoked token ids are stored as plain keys whose TTL equals the token's
// remaining lifetime, so Redis evicts them exactly when the token would have
// expired anyway.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses redisURL, connects and pings.
// Call once at startup from main.go...all Redis structs share the returned client.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	// Parse redisURL to get option values, if err return it
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Try and test client to ensure it works correctly
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// RedisRevocations keeps the revocation set in Redis.
// Survives restarts and is shared by every replica.
type RedisRevocations struct {
	rdb *redis.Client
}

// NewRedisRevocations wraps an existing client.
func NewRedisRevocations(rdb *redis.Client) *RedisRevocations {
	return &RedisRevocations{rdb}
}

func revokedKey(jti string) string {
	return fmt.Sprintf("revoked:%s", jti)
}

// Revoke records jti until expiresAt. Already-expired tokens are skipped:
// SET with a zero TTL would mean "never expire", and the token can no longer
// pass the expiry check anyway.
func (s *RedisRevocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, revokedKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti is in the revocation set.
func (s *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("checking revocation: %w", err)
	}
	return n > 0, nil
}

// CheckHealth pings Redis.
func (s *RedisRevocations) CheckHealth(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// RedisRateLimiter implements fixed-window attempt counting with a lockout key.
type RedisRateLimiter struct {
	rdb *redis.Client
}

// NewRedisRateLimiter wraps an existing client.
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{rdb}
}

// allowScript atomically:
//  1. returns the lockout PTTL if KEYS[2] exists,
//  2. INCRs KEYS[1] and starts its window on the first hit,
//  3. sets KEYS[2] for the lockout once the count passes ARGV[1].
//
// Returns 0 when allowed, otherwise the remaining lockout in milliseconds.
var allowScript = redis.NewScript(`
local locked = redis.call("PTTL", KEYS[2])
if locked > 0 then
	return locked
end
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
	redis.call("SET", KEYS[2], 1, "PX", ARGV[3])
	redis.call("DEL", KEYS[1])
	return tonumber(ARGV[3])
end
return 0
`)

// Allow records an attempt under key and checks it against policy.
// Returns nil if allowed, a *RateLimitError (errors.Is ErrRateLimitExceeded)
// if locked out, or a wrapped Redis error.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, policy RateLimit) error {
	if policy.MaxAttempts <= 0 {
		return nil
	}
	ms, err := allowScript.Run(ctx, l.rdb,
		[]string{"ratelimit:count:" + key, "ratelimit:lock:" + key},
		policy.MaxAttempts, policy.Window.Milliseconds(), policy.LockoutTTL.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if ms > 0 {
		return &RateLimitError{RetryAfter: time.Duration(ms) * time.Millisecond}
	}
	return nil
}

// Reset clears the counter and any lockout for key (after a successful login).
func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	err := l.rdb.Del(ctx, "ratelimit:count:"+key, "ratelimit:lock:"+key).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}

// NopRateLimiter allows everything. Used when Redis is not configured.
type NopRateLimiter struct{}

func (NopRateLimiter) Allow(context.Context, string, RateLimit) error { return nil }

func (NopRateLimiter) Reset(context.Context, string) error { return nil }

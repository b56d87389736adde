// Package distlock provides the per-campaign mutual exclusion used by the
// dispatcher: at most one dispatch invocation per campaign across all worker
// processes. Redis is the preferred backend; PostgreSQL advisory locks are
// the fallback when no Redis is configured.
package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is the interface for distributed locking. A Lock instance belongs to
// a single goroutine; concurrent lockers create their own instances.
type Lock interface {
	// Acquire tries to take the lock without blocking. Returns true on success.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if this instance still owns it.
	Release(ctx context.Context) error
	// Extend refreshes the lock's TTL if this instance still owns it.
	// Backends without expiry treat this as a no-op.
	Extend(ctx context.Context, ttl time.Duration) error
}

// CampaignKey builds the lock key for a campaign's dispatch exclusion.
func CampaignKey(campaignID string) string {
	return "campaign:" + campaignID
}

// New creates a lock using the best available backend: Redis when a client
// is provided (cross-host safe with TTL expiry), PostgreSQL advisory locks
// otherwise (session-scoped, released on connection loss).
func New(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) Lock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// PGAdvisoryLock implements Lock using pg_try_advisory_lock, with a lock ID
// derived deterministically from the key. Crash-safety comes from session
// scoping: a dropped connection releases the lock.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

// NewPGAdvisoryLock creates an advisory lock for the given key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte("autopilot:" + key))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

// Acquire tries to take the advisory lock (non-blocking).
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("advisory lock %d: %w", l.lockID, err)
	}
	return acquired, nil
}

// Release releases the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

// Extend is a no-op: advisory locks are session-scoped and never expire on
// their own.
func (l *PGAdvisoryLock) Extend(_ context.Context, _ time.Duration) error {
	return nil
}

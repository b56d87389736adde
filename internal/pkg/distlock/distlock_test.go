package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func redisLockPair(t *testing.T, key string) (*RedisLock, *RedisLock) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisLock(client, key, time.Minute), NewRedisLock(client, key, time.Minute)
}

func TestRedisLockMutualExclusion(t *testing.T) {
	ctx := context.Background()
	first, second := redisLockPair(t, CampaignKey("camp-1"))

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first Acquire = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if ok {
		t.Fatal("second locker should not acquire a held lock")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}

	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("Acquire after release = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestRedisLockReleaseRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	owner, intruder := redisLockPair(t, CampaignKey("camp-2"))

	if ok, _ := owner.Acquire(ctx); !ok {
		t.Fatal("owner should acquire")
	}

	// Intruder's release is a no-op: its token doesn't match.
	if err := intruder.Release(ctx); err != nil {
		t.Fatalf("intruder Release: %v", err)
	}
	if ok, _ := intruder.Acquire(ctx); ok {
		t.Fatal("lock should still be held by owner")
	}
}

func TestRedisLockExtend(t *testing.T) {
	ctx := context.Background()
	owner, _ := redisLockPair(t, CampaignKey("camp-3"))

	if ok, _ := owner.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	if err := owner.Extend(ctx, 2*time.Minute); err != nil {
		t.Fatalf("Extend: %v", err)
	}
}

func TestPGAdvisoryLockExtendIsNoOp(t *testing.T) {
	// No DB call: session-scoped locks have no TTL to refresh.
	l := NewPGAdvisoryLock(nil, CampaignKey("camp-4"))
	if err := l.Extend(context.Background(), time.Minute); err != nil {
		t.Fatalf("Extend: %v", err)
	}
}

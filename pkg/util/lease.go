package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lease guards at-most-one active sync epoch per mailbox identity.
// Holders refresh the TTL on every heartbeat; a stalled epoch loses the
// lease and may be superseded by a fresh one.
type Lease struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLease(rdb *redis.Client, ttl time.Duration) *Lease {
	return &Lease{rdb: rdb, ttl: ttl}
}

func leaseKey(name, identity string) string {
	return fmt.Sprintf("lease:%s:%s", name, identity)
}

// Acquire tries to take the lease for identity on behalf of holder.
// Returns false if another holder currently owns it.
func (l *Lease) Acquire(ctx context.Context, name, identity, holder string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, leaseKey(name, identity), holder, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	return ok, nil
}

// Refresh extends the lease TTL. Called from workflow heartbeats.
func (l *Lease) Refresh(ctx context.Context, name, identity string) error {
	return l.rdb.Expire(ctx, leaseKey(name, identity), l.ttl).Err()
}

// Release frees the lease if holder still owns it.
func (l *Lease) Release(ctx context.Context, name, identity, holder string) error {
	key := leaseKey(name, identity)
	owner, err := l.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if owner != holder {
		return nil
	}
	return l.rdb.Del(ctx, key).Err()
}

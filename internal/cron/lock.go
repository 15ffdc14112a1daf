package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 4 * time.Minute

// Lock gives one cron-worker replica the right to run a cycle. TryLock
// returns an unlock func bound to this acquisition when ok is true.
type Lock interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// RedisLock is a SETNX lease with an owner token. The TTL bounds how long a
// crashed holder can block the other replicas.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
}

// NewRedisLock builds a lock on key; ttl <= 0 falls back to four minutes.
func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error { return l.release(ctx, owner) }, true, nil
}

// release deletes the key only while this owner still holds it; after a TTL
// expiry another replica may own it.
func (l *RedisLock) release(ctx context.Context, owner string) error {
	if _, err := l.store.CompareAndDelete(ctx, l.key, owner); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

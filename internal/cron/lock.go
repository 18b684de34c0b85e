package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 9 * time.Minute

// Lock grants one replica at a time the right to run a cycle. Acquire
// reports false, without error, when another replica holds it.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
	LockKey(name string) string
}

// RedisLock is a lease: SETNX of an owner token with a TTL. The TTL should
// stay below the cron interval so a crashed holder never blocks the next
// cycle.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	token func() string
	held  string
}

func NewRedisLock(store lockStore, name string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("cron lock: redis store is required")
	case name == "":
		return nil, errors.New("cron lock: name is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: store.LockKey(name), ttl: ttl, token: ownerToken}, nil
}

func (l *RedisLock) Key() string { return l.key }

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := l.token()
	won, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", l.key, err)
	}
	if won {
		l.held = token
	}
	return won, nil
}

// Release deletes the key only while it still carries our token, so a lease
// that expired and was taken over stays with its new owner. Ownership is
// dropped locally either way.
func (l *RedisLock) Release(ctx context.Context) error {
	token := l.held
	if token == "" {
		return nil
	}
	l.held = ""
	if _, err := l.store.ReleaseIfOwner(ctx, l.key, token); err != nil {
		return fmt.Errorf("free %s: %w", l.key, err)
	}
	return nil
}

// ownerToken names the host so a stuck lease can be traced.
func ownerToken() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + "/" + uuid.NewString()
}

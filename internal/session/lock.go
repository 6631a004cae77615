package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 12 * time.Hour

// RegisterLock keeps one operator session per register across processes.
type RegisterLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// lockStore defines the operations used by RedisLock.
type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock implements RegisterLock using Redis SETNX + TTL. The owner token
// lets the holding process re-acquire its own lock on operator switch.
type RedisLock struct {
	client lockStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed register lock.
func NewRedisLock(client lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for register lock")
	}
	if key == "" {
		return nil, errors.New("register lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire claims the register. It succeeds when the key is free or already ours.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	if l.owner != "" {
		value, err := l.client.Get(ctx, l.key)
		switch {
		case err == nil && value == l.owner:
			return true, nil
		case err != nil && !errors.Is(err, redis.Nil):
			return false, fmt.Errorf("read register owner: %w", err)
		}
		l.owner = ""
	}
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if the owner value still matches.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read register owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete register lock: %w", err)
	}
	l.owner = ""
	return nil
}

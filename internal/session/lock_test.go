package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLockDown = errors.New("redis down")

type memoryLockStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockAcquireRelease(t *testing.T) {
	store := newMemoryLockStore()
	ctx := context.Background()
	lock, err := NewRedisLock(store, "pos:session:register:r1", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "owner re-acquires its own lock")

	other, err := NewRedisLock(store, "pos:session:register:r1", time.Hour)
	require.NoError(t, err)
	ok, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, other.Release(ctx))
	assert.Len(t, store.values, 1, "non-owner release leaves the lock")

	require.NoError(t, lock.Release(ctx))
	assert.Empty(t, store.values)
	require.NoError(t, lock.Release(ctx))
}

func TestRedisLockReacquiresAfterExpiry(t *testing.T) {
	store := newMemoryLockStore()
	ctx := context.Background()
	lock, err := NewRedisLock(store, "k", time.Hour)
	require.NoError(t, err)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Del(ctx, "k"))
	ok, err = lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReadError(t *testing.T) {
	store := newMemoryLockStore()
	ctx := context.Background()
	lock, err := NewRedisLock(store, "k", time.Hour)
	require.NoError(t, err)
	_, err = lock.Acquire(ctx)
	require.NoError(t, err)

	store.getErr = errLockDown
	_, err = lock.Acquire(ctx)
	assert.ErrorIs(t, err, errLockDown)
	assert.ErrorIs(t, lock.Release(ctx), errLockDown)
}

func TestNewRedisLockValidation(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Hour)
	assert.Error(t, err)
	_, err = NewRedisLock(newMemoryLockStore(), "", time.Hour)
	assert.Error(t, err)
}

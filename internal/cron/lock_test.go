package cron

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLockStore) DeleteIfValue(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	first, err := NewRedisLock(store, "ledger:cron-worker:lock:test", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "ledger:cron-worker:lock:test", 0)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, defaultLockTTL, store.ttls["ledger:cron-worker:lock:test"])

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "ledger:cron-worker:lock:test", "non-owner must not release")

	require.NoError(t, first.Release(ctx))
	assert.NotContains(t, store.values, "ledger:cron-worker:lock:test")

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseAfterLeaseExpiredKeepsSuccessorLock(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	stale, _ := NewRedisLock(store, "k", time.Minute)
	_, err := stale.Acquire(ctx)
	require.NoError(t, err)

	// lease expires and another worker takes over
	delete(store.values, "k")
	successor, _ := NewRedisLock(store, "k", time.Minute)
	ok, err := successor.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, stale.Release(ctx))
	assert.Contains(t, store.values, "k")
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(newMemoryLockStore(), "", time.Minute)
	assert.Error(t, err)
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(RedisStoreOptions{Addr: mr.Addr()})
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestOperationsBeforeConnect(t *testing.T) {
	ctx := context.Background()
	s := NewRedisStore(RedisStoreOptions{Addr: "localhost:0"})

	_, err := s.Get(ctx, "k")
	assert.True(t, IsNotConnected(err))

	err = s.Set(ctx, "k", "v", 0)
	assert.True(t, IsNotConnected(err))

	_, err = s.HGetAll(ctx, "h")
	assert.True(t, IsNotConnected(err))

	err = s.WithLock(ctx, "lock", func(ctx context.Context) error { return nil })
	assert.True(t, IsNotConnected(err))
}

func TestConnectIdempotent(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := NewRedisStore(RedisStoreOptions{Addr: mr.Addr()})
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Close())

	_, err := s.Get(ctx, "k")
	assert.True(t, IsNotConnected(err))
}

func TestKeyValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "missing")
	assert.True(t, IsNil(err))

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	ok, err := s.SetNX(ctx, "k", "other", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, "k"))
	exists, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.HSet(ctx, "h", "f1", "v1"))
	ok, err := s.HSetNX(ctx, "h", "f1", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := s.HGet(ctx, "h", "f1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	_, err = s.HGet(ctx, "h", "missing")
	assert.True(t, IsNil(err))

	require.NoError(t, s.HSet(ctx, "h", "f2", "v2"))
	all, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"f1": "v1", "f2": "v2"}, all)

	n, err := s.HLen(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.HDel(ctx, "h", "f1"))
	_, err = s.HGet(ctx, "h", "f1")
	assert.True(t, IsNil(err))
}

func TestListFIFO(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.LPush(ctx, "q", "a"))
	require.NoError(t, s.LPush(ctx, "q", "b"))
	require.NoError(t, s.LPush(ctx, "q", "c"))

	n, err := s.LLen(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	removed, err := s.LRem(ctx, "q", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// LPush + RPop is first-in first-out.
	v, err := s.RPop(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	v, err = s.RPop(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "c", v)

	_, err = s.RPop(ctx, "q")
	assert.True(t, IsNil(err))
}

func TestWithLockMutualExclusion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.WithLock(ctx, "lock:test", func(ctx context.Context) error {
		inner := s.WithLock(ctx, "lock:test", func(ctx context.Context) error {
			t.Fatal("inner critical section must not run")
			return nil
		})
		assert.True(t, IsLockNotAcquired(inner))
		return nil
	})
	require.NoError(t, err)

	// The lock is released afterwards.
	require.NoError(t, s.WithLock(ctx, "lock:test", func(ctx context.Context) error { return nil }))
}

func TestWithLockReleasesOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	wantErr := assert.AnError
	err := s.WithLock(ctx, "lock:test", func(ctx context.Context) error { return wantErr })
	assert.Equal(t, wantErr, err)

	require.NoError(t, s.WithLock(ctx, "lock:test", func(ctx context.Context) error { return nil }))
}

func TestConnectExhaustsRetries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping retry exhaustion in short mode")
	}
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	s := NewRedisStore(RedisStoreOptions{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := s.Connect(ctx)
	require.Error(t, err)
	assert.True(t, IsConnectionExhausted(err))
}

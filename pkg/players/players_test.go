package players

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuberace/cuberace/pkg/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	s := store.NewRedisStore(store.RedisStoreOptions{Addr: mr.Addr()})
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
	})
	return NewService(s)
}

func TestInsertGetDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	p := &Player{
		ID:       "p1",
		Username: "alice",
		State:    StateWaiting,
		Rating:   1200,
	}
	ok, err := svc.Insert(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second insert with the same id does not overwrite.
	ok, err = svc.Insert(ctx, &Player{ID: "p1", Username: "mallory"})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := svc.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.State = StatePlaying
	require.NoError(t, svc.Upsert(ctx, p))
	got, err = svc.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, got.State)

	require.NoError(t, svc.Delete(ctx, "p1"))
	_, err = svc.Get(ctx, "p1")
	require.Error(t, err)
	assert.True(t, IsPlayerNotFound(err))

	// Deleting again is a no-op.
	require.NoError(t, svc.Delete(ctx, "p1"))
}

func TestWaitingQueue(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	variant := "3x3 cube"

	require.NoError(t, svc.EnqueueWaiting(ctx, "p1", variant))
	require.NoError(t, svc.EnqueueWaiting(ctx, "p2", variant))

	alive, err := svc.WaitingAlive(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, alive)

	ids, err := svc.WaitingList(ctx, variant)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, ids)

	// First in, first out; the marker is cleared on dequeue.
	id, err := svc.DequeueWaiting(ctx, variant)
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
	alive, err = svc.WaitingAlive(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, alive)

	removed, err := svc.RemoveWaiting(ctx, "p2", variant)
	require.NoError(t, err)
	assert.True(t, removed)
	_, err = svc.DequeueWaiting(ctx, variant)
	assert.True(t, store.IsNil(err))

	// Removing an entry a dequeue already claimed reports false.
	removed, err = svc.RemoveWaiting(ctx, "p1", variant)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestQueuesAreSeparatePerVariant(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.EnqueueWaiting(ctx, "p1", "3x3 cube"))

	_, err := svc.DequeueWaiting(ctx, "4x4 cube")
	assert.True(t, store.IsNil(err))

	id, err := svc.DequeueWaiting(ctx, "3x3 cube")
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
}

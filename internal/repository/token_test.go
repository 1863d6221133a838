package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"pulseboard/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisTokenStore_PutGetDelete(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRedisTokenStore(rdb)
	ctx := context.Background()
	id := model.Identity{ID: "u1", Email: "a@b.com"}

	require.NoError(t, store.Put(ctx, AccessKey("at"), id, time.Hour))
	assert.True(t, mr.Exists("token:at"))

	got, ok, err := store.Get(ctx, AccessKey("at"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	exists, err := store.Exists(ctx, AccessKey("at"))
	require.NoError(t, err)
	assert.True(t, exists)

	n, err := store.Delete(ctx, AccessKey("at"), RefreshKey("missing"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err = store.Get(ctx, AccessKey("at"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisTokenStore_ReadDoesNotExtendTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRedisTokenStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, AccessKey("at"), model.Identity{ID: "u1"}, time.Minute))

	mr.FastForward(50 * time.Second)
	_, ok, err := store.Get(ctx, AccessKey("at"))
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)
	_, ok, err = store.Get(ctx, AccessKey("at"))
	require.NoError(t, err)
	assert.False(t, ok, "a read must not postpone expiry")
}

func TestRedisTokenStore_Unavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRedisTokenStore(rdb)
	mr.Close()

	_, _, err := store.Get(context.Background(), AccessKey("at"))
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestMemoryTokenStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryTokenStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, RefreshKey("rt"), model.Identity{ID: "u1"}, time.Hour))
	ok, _ := store.Exists(ctx, RefreshKey("rt"))
	assert.True(t, ok)

	now = now.Add(time.Hour)
	ok, _ = store.Exists(ctx, RefreshKey("rt"))
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

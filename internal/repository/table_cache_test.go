package repository

import (
	"context"
	"testing"
	"time"

	"pulseboard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTableCacheStore_RoundTrip(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRedisTableCacheStore(rdb)
	ctx := context.Background()

	rows := []model.Row{{"id": float64(1), "statut": "livree"}}
	require.NoError(t, store.SetTable(ctx, "commandeclient", rows, 5*time.Minute))
	assert.True(t, mr.Exists("table_cache:commandeclient"))
	assert.Equal(t, 5*time.Minute, mr.TTL("table_cache:commandeclient"))

	got, ok, err := store.GetTable(ctx, "commandeclient")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rows, got)

	deleted, err := store.DeleteTable(ctx, "commandeclient")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteTable(ctx, "commandeclient")
	require.NoError(t, err)
	assert.False(t, deleted, "deleting an absent key is a no-op")
}

func TestRedisTableCacheStore_EmptyTableIsCached(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewRedisTableCacheStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.SetTable(ctx, "stock", nil, time.Minute))
	rows, ok, err := store.GetTable(ctx, "stock")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, rows)
}

package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"pulseboard/internal/model"
	"pulseboard/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidate_Idempotent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := repository.NewRedisTableCacheStore(rdb)
	inv := NewInvalidator(store, false, nil)
	ctx := context.Background()

	require.NoError(t, store.SetTable(ctx, "produit", []model.Row{{"id": 1}}, time.Minute))

	_, existed, err := inv.Invalidate(ctx, "produit", SourceWebhook)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.False(t, mr.Exists("table_cache:produit"))

	key, existed, err := inv.Invalidate(ctx, "produit", SourceWebhook)
	require.NoError(t, err)
	assert.Equal(t, "table_cache:produit", key)
	assert.False(t, existed)
}

func TestInvalidate_InvalidTable(t *testing.T) {
	_, rdb := newTestRedis(t)
	inv := NewInvalidator(repository.NewRedisTableCacheStore(rdb), false, nil)

	_, _, err := inv.Invalidate(context.Background(), "a b", SourceWebhook)
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestShouldInvalidate(t *testing.T) {
	record := json.RawMessage(`{"id":1}`)

	tests := []struct {
		name     string
		ev       model.ChangeEvent
		onInsert bool
		want     bool
	}{
		{name: "update", ev: model.ChangeEvent{Table: "commande", Type: "UPDATE", Record: record}, want: true},
		{name: "delete lower case", ev: model.ChangeEvent{Table: "commande", Type: "delete", OldRecord: record}, want: true},
		{name: "update without record", ev: model.ChangeEvent{Table: "commande", Type: "UPDATE"}, want: false},
		{name: "null record", ev: model.ChangeEvent{Table: "commande", Type: "UPDATE", Record: json.RawMessage("null")}, want: false},
		{name: "insert ignored", ev: model.ChangeEvent{Table: "commande", Type: "INSERT", Record: record}, want: false},
		{name: "insert enabled", ev: model.ChangeEvent{Table: "commande", Type: "INSERT", Record: record}, onInsert: true, want: true},
		{name: "no table", ev: model.ChangeEvent{Type: "UPDATE", Record: record}, want: false},
		{name: "unknown type", ev: model.ChangeEvent{Table: "commande", Type: "TRUNCATE", Record: record}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := NewInvalidator(nil, tt.onInsert, nil)
			assert.Equal(t, tt.want, inv.ShouldInvalidate(tt.ev))
		})
	}
}

func TestHandleEvent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := repository.NewRedisTableCacheStore(rdb)
	inv := NewInvalidator(store, false, nil)
	ctx := context.Background()
	require.NoError(t, store.SetTable(ctx, "commande", []model.Row{}, time.Minute))

	done, err := inv.HandleEvent(ctx, model.ChangeEvent{Table: "commande", Type: "INSERT", Record: json.RawMessage(`{"id":1}`)}, SourcePush)
	require.NoError(t, err)
	assert.False(t, done)
	assert.True(t, mr.Exists("table_cache:commande"))

	done, err = inv.HandleEvent(ctx, model.ChangeEvent{Table: "commande", Type: "UPDATE", Record: json.RawMessage(`{"id":1}`)}, SourcePush)
	require.NoError(t, err)
	assert.True(t, done)
	assert.False(t, mr.Exists("table_cache:commande"))
}

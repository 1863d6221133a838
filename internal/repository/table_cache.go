package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"pulseboard/internal/model"

	"github.com/redis/go-redis/v9"
)

const TableCachePrefix = "table_cache:"

func TableCacheKey(table string) string { return TableCachePrefix + table }

// TableCacheStore keeps serialized table rows with a TTL. Entries are only ever
// written whole or deleted, never updated in place.
type TableCacheStore interface {
	GetTable(ctx context.Context, table string) ([]model.Row, bool, error)
	SetTable(ctx context.Context, table string, rows []model.Row, ttl time.Duration) error
	DeleteTable(ctx context.Context, table string) (bool, error)
}

type RedisTableCacheStore struct {
	rdb redis.UniversalClient
}

func NewRedisTableCacheStore(rdb redis.UniversalClient) *RedisTableCacheStore {
	return &RedisTableCacheStore{rdb: rdb}
}

func (s *RedisTableCacheStore) GetTable(ctx context.Context, table string) ([]model.Row, bool, error) {
	raw, err := s.rdb.Get(ctx, TableCacheKey(table)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("table cache get", err)
	}
	var rows []model.Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false, nil
	}
	return rows, true, nil
}

func (s *RedisTableCacheStore) SetTable(ctx context.Context, table string, rows []model.Row, ttl time.Duration) error {
	if rows == nil {
		rows = []model.Row{}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, TableCacheKey(table), payload, ttl).Err(); err != nil {
		return unavailable("table cache set", err)
	}
	return nil
}

func (s *RedisTableCacheStore) DeleteTable(ctx context.Context, table string) (bool, error) {
	n, err := s.rdb.Del(ctx, TableCacheKey(table)).Result()
	if err != nil {
		return false, unavailable("table cache delete", err)
	}
	return n > 0, nil
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"pulseboard/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	AccessKeyPrefix  = "token:"
	RefreshKeyPrefix = "refresh:"
)

func AccessKey(token string) string  { return AccessKeyPrefix + token }
func RefreshKey(token string) string { return RefreshKeyPrefix + token }

// TokenStore caches identity snapshots under namespaced token keys.
// The TTL is fixed at write time; reads never extend it.
type TokenStore interface {
	Put(ctx context.Context, key string, id model.Identity, ttl time.Duration) error
	Get(ctx context.Context, key string) (model.Identity, bool, error)
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type RedisTokenStore struct {
	rdb redis.UniversalClient
}

func NewRedisTokenStore(rdb redis.UniversalClient) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb}
}

func (s *RedisTokenStore) Put(ctx context.Context, key string, id model.Identity, ttl time.Duration) error {
	payload, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return unavailable("token put", err)
	}
	return nil
}

func (s *RedisTokenStore) Get(ctx context.Context, key string) (model.Identity, bool, error) {
	var id model.Identity
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return id, false, nil
	}
	if err != nil {
		return id, false, unavailable("token get", err)
	}
	if err := json.Unmarshal(raw, &id); err != nil {
		// a corrupt entry is as good as absent
		return model.Identity{}, false, nil
	}
	return id, true, nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable("token delete", err)
	}
	return n, nil
}

func (s *RedisTokenStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable("token exists", err)
	}
	return n > 0, nil
}

type memoryEntry struct {
	id        model.Identity
	expiresAt time.Time
}

// MemoryTokenStore is a process-local TokenStore for tests and single-node dev runs.
type MemoryTokenStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock replaces the time source, used by tests to expire entries.
func (s *MemoryTokenStore) WithClock(now func() time.Time) *MemoryTokenStore {
	s.now = now
	return s
}

func (s *MemoryTokenStore) Put(_ context.Context, key string, id model.Identity, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{id: id, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryTokenStore) Get(_ context.Context, key string) (model.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	return e.id, ok, nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := s.live(k); ok {
			n++
		}
		delete(s.entries, k)
	}
	return n, nil
}

func (s *MemoryTokenStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(key)
	return ok, nil
}

// Len counts live entries.
func (s *MemoryTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if _, ok := s.live(k); ok {
			n++
		}
	}
	return n
}

// live must be called with mu held.
func (s *MemoryTokenStore) live(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

package service

import (
	"context"
	"sync"
	"testing"

	"pulseboard/internal/authbackend"
	"pulseboard/internal/model"
	"pulseboard/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func init() {
	logger.InitLogger("test")
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// fakeBackend records calls and returns canned sessions.
type fakeBackend struct {
	mu           sync.Mutex
	signInCalls  int
	refreshCalls int
	signOutCalls int

	signInFn  func(email, password string) (*authbackend.Session, error)
	refreshFn func(refresh string) (*authbackend.Session, error)
}

func (f *fakeBackend) SignIn(_ context.Context, email, password string) (*authbackend.Session, error) {
	f.mu.Lock()
	f.signInCalls++
	f.mu.Unlock()
	if f.signInFn == nil {
		return nil, authbackend.ErrUnavailable
	}
	return f.signInFn(email, password)
}

func (f *fakeBackend) Refresh(_ context.Context, refresh string) (*authbackend.Session, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()
	if f.refreshFn == nil {
		return nil, authbackend.ErrInvalidToken
	}
	return f.refreshFn(refresh)
}

func (f *fakeBackend) GetUser(context.Context, string) (model.Identity, error) {
	return model.Identity{}, authbackend.ErrInvalidToken
}

func (f *fakeBackend) SignOut(context.Context, string) error {
	f.mu.Lock()
	f.signOutCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) calls() (signIn, refresh int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signInCalls, f.refreshCalls
}

// spyRowStore serves fixed tables and counts SelectAll calls per table.
type spyRowStore struct {
	mu     sync.Mutex
	tables map[string][]model.Row
	fail   map[string]error
	calls  map[string]int
}

func newSpyRowStore(tables map[string][]model.Row) *spyRowStore {
	return &spyRowStore{
		tables: tables,
		fail:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (s *spyRowStore) SelectAll(_ context.Context, table string) ([]model.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[table]++
	if err := s.fail[table]; err != nil {
		return nil, err
	}
	return s.tables[table], nil
}

func (s *spyRowStore) SelectWhere(_ context.Context, table, column string, value any) ([]model.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[table]; err != nil {
		return nil, err
	}
	var out []model.Row
	for _, r := range s.tables[table] {
		if r[column] == value {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *spyRowStore) count(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[table]
}

// spyLoader records every Load call made by the dispatcher.
type spyLoader struct {
	calls    [][]string
	snapshot model.Snapshot
	err      error
}

func (l *spyLoader) Load(_ context.Context, names []string) (model.Snapshot, error) {
	l.calls = append(l.calls, names)
	return l.snapshot, l.err
}

// hangingRowStore never answers on its own; every call returns only once ctx is done.
type hangingRowStore struct{}

func (hangingRowStore) SelectAll(ctx context.Context, _ string) ([]model.Row, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (hangingRowStore) SelectWhere(ctx context.Context, _, _ string, _ any) ([]model.Row, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"pulseboard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/etcdserverpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type mockEtcd struct {
	clientv3.KV
	clientv3.Watcher

	puts   map[string]string
	rev    int64
	getErr error
	getOps []clientv3.Op
}

func (m *mockEtcd) Close() error { return nil }

func (m *mockEtcd) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	if m.puts == nil {
		m.puts = map[string]string{}
	}
	m.rev++
	m.puts[key] = val
	return &clientv3.PutResponse{Header: &etcdserverpb.ResponseHeader{Revision: m.rev}}, nil
}

func (m *mockEtcd) Get(_ context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	m.getOps = append(m.getOps, clientv3.OpGet(key, opts...))
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &clientv3.GetResponse{Header: &etcdserverpb.ResponseHeader{Revision: m.rev}}, nil
}

func TestEventRepository_PublishAndRevision(t *testing.T) {
	etcd := &mockEtcd{rev: 41}
	repo := NewEventRepository(etcd)
	ctx := context.Background()

	rev, err := repo.Publish(ctx, "/pulseboard/events/1", `{"table":"stock","type":"UPDATE"}`)
	require.NoError(t, err)
	assert.Equal(t, int64(42), rev)
	assert.Equal(t, `{"table":"stock","type":"UPDATE"}`, etcd.puts["/pulseboard/events/1"])

	current, err := repo.CurrentRevision(ctx, "/pulseboard/events/")
	require.NoError(t, err)
	assert.Equal(t, int64(42), current)

	require.Len(t, etcd.getOps, 1)
	assert.True(t, etcd.getOps[0].IsCountOnly())
	assert.Equal(t, "/pulseboard/events/", string(etcd.getOps[0].KeyBytes()))
}

func TestEventRepository_Unavailable(t *testing.T) {
	repo := NewEventRepository(&mockEtcd{getErr: errors.New("connection refused")})

	_, err := repo.CurrentRevision(context.Background(), "/p/")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Error(t, repo.Health(context.Background()))
}

func TestEventRepository_PublishEvent(t *testing.T) {
	etcd := &mockEtcd{rev: 7}
	repo := NewEventRepository(etcd)

	key, rev, err := repo.PublishEvent(context.Background(), "/pulseboard/events/", model.ChangeEvent{
		Table:  "commandeclient",
		Type:   "UPDATE",
		Record: json.RawMessage(`{"id":3}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), rev)
	assert.True(t, strings.HasPrefix(key, "/pulseboard/events/"))

	var stored model.ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(etcd.puts[key]), &stored))
	assert.Equal(t, "commandeclient", stored.Table)
	assert.Equal(t, "UPDATE", stored.Type)
	assert.JSONEq(t, `{"id":3}`, string(stored.Record))

	other, _, err := repo.PublishEvent(context.Background(), "/pulseboard/events/", model.ChangeEvent{Table: "stock", Type: "DELETE"})
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

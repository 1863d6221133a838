package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"pulseboard/internal/model"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type EtcdInterface interface {
	clientv3.KV
	clientv3.Watcher
	Close() error
}

// EventRepository carries table change events through etcd. Producers put JSON
// events under a prefix; the invalidation worker watches that prefix.
type EventRepository struct {
	client EtcdInterface
}

func NewEventRepository(client EtcdInterface) *EventRepository {
	return &EventRepository{client: client}
}

// Publish writes one event and returns the etcd revision it was committed at.
func (r *EventRepository) Publish(ctx context.Context, key, payload string) (int64, error) {
	resp, err := r.client.Put(ctx, key, payload)
	if err != nil {
		return 0, unavailable("etcd put", err)
	}
	return resp.Header.Revision, nil
}

// PublishEvent stores ev as JSON under prefix with a fresh key and returns that key
// and the commit revision.
func (r *EventRepository) PublishEvent(ctx context.Context, prefix string, ev model.ChangeEvent) (string, int64, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", 0, fmt.Errorf("marshal change event: %w", err)
	}
	key := prefix + uuid.NewString()
	rev, err := r.Publish(ctx, key, string(payload))
	if err != nil {
		return "", 0, err
	}
	return key, rev, nil
}

func (r *EventRepository) CurrentRevision(ctx context.Context, prefix string) (int64, error) {
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return 0, unavailable("etcd get", err)
	}
	return resp.Header.Revision, nil
}

// WatchFrom streams puts and deletes under prefix starting at startRev.
func (r *EventRepository) WatchFrom(ctx context.Context, prefix string, startRev int64) clientv3.WatchChan {
	return r.client.Watch(ctx, prefix, clientv3.WithPrefix(), clientv3.WithRev(startRev))
}

func (r *EventRepository) Health(ctx context.Context) error {
	_, err := r.client.Get(ctx, "health_check")
	return err
}

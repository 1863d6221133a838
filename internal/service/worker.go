package service

import (
	"context"
	"encoding/json"
	"time"

	"pulseboard/internal/model"
	"pulseboard/internal/repository"
	"pulseboard/pkg/logger"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// EventHandler consumes decoded change events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev model.ChangeEvent, source string) (bool, error)
}

// RedisInvalidationWorker consumes change events published on Redis channels.
type RedisInvalidationWorker struct {
	rdb      redis.UniversalClient
	channels []string
	handler  EventHandler
}

func NewRedisInvalidationWorker(rdb redis.UniversalClient, channels []string, handler EventHandler) *RedisInvalidationWorker {
	return &RedisInvalidationWorker{
		rdb:      rdb,
		channels: channels,
		handler:  handler,
	}
}

func (w *RedisInvalidationWorker) Run(ctx context.Context) {
	if len(w.channels) == 0 {
		return
	}
	sub := w.rdb.Subscribe(ctx, w.channels...)
	defer sub.Close()
	logger.Info("redis invalidation worker started", zap.Strings("channels", w.channels))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			logger.Info("redis invalidation worker stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				logger.Warn("redis subscription closed")
				return
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *RedisInvalidationWorker) handle(ctx context.Context, msg *redis.Message) {
	var ev model.ChangeEvent
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		logger.Warn("malformed change event", zap.String("channel", msg.Channel), zap.Error(err))
		return
	}
	if _, err := w.handler.HandleEvent(ctx, ev, SourceRedis); err != nil {
		logger.Error("failed to apply change event",
			zap.String("channel", msg.Channel),
			zap.String("table", ev.Table),
			zap.Error(err))
	}
}

// EtcdInvalidationWorker watches a key prefix whose values are JSON change events.
type EtcdInvalidationWorker struct {
	repo    *repository.EventRepository
	prefix  string
	handler EventHandler
	backoff time.Duration
}

func NewEtcdInvalidationWorker(repo *repository.EventRepository, prefix string, handler EventHandler) *EtcdInvalidationWorker {
	return &EtcdInvalidationWorker{
		repo:    repo,
		prefix:  prefix,
		handler: handler,
		backoff: time.Second,
	}
}

func (w *EtcdInvalidationWorker) Run(ctx context.Context) {
	rev0, ok := w.initialRevision(ctx)
	if !ok {
		return
	}
	logger.Info("etcd invalidation worker started", zap.String("prefix", w.prefix), zap.Int64("rev", rev0))

	// start right after the snapshot so nothing between Get and Watch is lost
	next := rev0 + 1
	for {
		last, ok := w.watch(ctx, next)
		if !ok {
			logger.Info("etcd invalidation worker stopped")
			return
		}
		if last >= next {
			next = last + 1
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.backoff):
		}
	}
}

// initialRevision retries CurrentRevision every backoff until it succeeds or ctx ends.
func (w *EtcdInvalidationWorker) initialRevision(ctx context.Context) (int64, bool) {
	for {
		rev, err := w.repo.CurrentRevision(ctx, w.prefix)
		if err == nil {
			return rev, true
		}
		logger.Warn("failed to read initial etcd revision, retrying",
			zap.Duration("backoff", w.backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			logger.Info("etcd invalidation worker stopped")
			return 0, false
		case <-time.After(w.backoff):
		}
	}
}

// watch consumes one watch stream. It returns the last applied revision and whether
// the caller should re-watch.
func (w *EtcdInvalidationWorker) watch(ctx context.Context, from int64) (int64, bool) {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	last := from - 1
	watchChan := w.repo.WatchFrom(watchCtx, w.prefix, from)
	for {
		select {
		case <-ctx.Done():
			return last, false
		case wresp, ok := <-watchChan:
			if !ok {
				logger.Warn("etcd watch channel closed, re-watching", zap.Int64("from", last+1))
				return last, true
			}
			if wresp.Canceled {
				logger.Warn("etcd watch canceled, re-watching", zap.Error(wresp.Err()))
				if wresp.CompactRevision > last {
					last = wresp.CompactRevision - 1
				}
				return last, true
			}
			for _, ev := range wresp.Events {
				w.apply(ctx, ev)
				last = ev.Kv.ModRevision
			}
		}
	}
}

func (w *EtcdInvalidationWorker) apply(ctx context.Context, ev *clientv3.Event) {
	if ev.Type != clientv3.EventTypePut {
		return
	}
	var change model.ChangeEvent
	if err := json.Unmarshal(ev.Kv.Value, &change); err != nil {
		logger.Warn("malformed change event", zap.ByteString("key", ev.Kv.Key), zap.Error(err))
		return
	}
	if _, err := w.handler.HandleEvent(ctx, change, SourceEtcd); err != nil {
		logger.Error("failed to apply change event",
			zap.ByteString("key", ev.Kv.Key),
			zap.String("table", change.Table),
			zap.Error(err))
	}
}

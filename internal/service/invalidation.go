package service

import (
	"context"
	"fmt"

	"pulseboard/internal/metrics"
	"pulseboard/internal/model"
	"pulseboard/internal/repository"
	"pulseboard/pkg/logger"

	"go.uber.org/zap"
)

// Invalidation trigger labels.
const (
	SourceWebhook = "webhook"
	SourceRedis   = "redis"
	SourceEtcd    = "etcd"
	SourcePush    = "push"
)

// Invalidator evicts whole tables from the table cache. Snapshots already pulled
// into a running dispatch are unaffected.
type Invalidator struct {
	cache              repository.TableCacheStore
	invalidateOnInsert bool
	observer           metrics.CacheObserver
}

func NewInvalidator(cache repository.TableCacheStore, invalidateOnInsert bool, observer metrics.CacheObserver) *Invalidator {
	if observer == nil {
		observer = metrics.Nop()
	}
	return &Invalidator{
		cache:              cache,
		invalidateOnInsert: invalidateOnInsert,
		observer:           observer,
	}
}

// Invalidate deletes table_cache:<table>. Deleting an absent key is a no-op.
func (i *Invalidator) Invalidate(ctx context.Context, table, source string) (string, bool, error) {
	if !repository.ValidIdentifier(table) {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	key := repository.TableCacheKey(table)
	existed, err := i.cache.DeleteTable(ctx, table)
	if err != nil {
		return key, false, err
	}
	i.observer.Invalidated(table, source)
	logger.Info("table cache invalidated",
		zap.String("table", table),
		zap.String("source", source),
		zap.Bool("existed", existed))
	return key, existed, nil
}

// ShouldInvalidate applies the event filter: updates and deletes with a row payload
// evict the table, inserts only when configured to.
func (i *Invalidator) ShouldInvalidate(ev model.ChangeEvent) bool {
	if ev.Table == "" || !ev.HasRecord() {
		return false
	}
	switch ev.NormalizedType() {
	case model.EventUpdate, model.EventDelete:
		return true
	case model.EventInsert:
		return i.invalidateOnInsert
	default:
		return false
	}
}

// HandleEvent evicts the event's table when the filter accepts it.
func (i *Invalidator) HandleEvent(ctx context.Context, ev model.ChangeEvent, source string) (bool, error) {
	if !i.ShouldInvalidate(ev) {
		logger.Debug("change event ignored",
			zap.String("table", ev.Table),
			zap.String("type", ev.Type),
			zap.String("source", source))
		return false, nil
	}
	if _, _, err := i.Invalidate(ctx, ev.Table, source); err != nil {
		return false, err
	}
	return true, nil
}

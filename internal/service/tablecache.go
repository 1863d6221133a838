package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"pulseboard/internal/metrics"
	"pulseboard/internal/model"
	"pulseboard/internal/repository"
	"pulseboard/pkg/logger"

	"go.uber.org/zap"
)

// Projector maps raw upstream rows onto the canonical field names computations read.
type Projector interface {
	Project(table string, rows []model.Row) []model.Row
}

// LoadError lists the tables that could not be fetched from the row store.
// The snapshot returned alongside it holds every table that did load.
type LoadError struct {
	Failed map[string]error
}

func (e *LoadError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for n := range e.Failed {
		names = append(names, n)
	}
	sort.Strings(names)
	return fmt.Sprintf("failed to load tables: %s", strings.Join(names, ", "))
}

func (e *LoadError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

type TableCacheConfig struct {
	TTL time.Duration
	// StoreTimeout bounds each Redis get and set.
	StoreTimeout time.Duration
	// RowTimeout bounds each row store fetch. Zero means defaultRowTimeout.
	RowTimeout time.Duration
}

const defaultRowTimeout = 10 * time.Second

// TableCache fronts the row store with a TTL cache keyed table_cache:<name>.
type TableCache struct {
	cache     repository.TableCacheStore
	rows      repository.RowStore
	projector Projector
	cfg       TableCacheConfig
	observer  metrics.CacheObserver
}

func NewTableCache(cache repository.TableCacheStore, rows repository.RowStore, projector Projector, cfg TableCacheConfig, observer metrics.CacheObserver) *TableCache {
	if observer == nil {
		observer = metrics.Nop()
	}
	return &TableCache{
		cache:     cache,
		rows:      rows,
		projector: projector,
		cfg:       cfg,
		observer:  observer,
	}
}

// Load returns one snapshot holding every requested table. Names are deduplicated so
// each table is fetched at most once per call. Cache failures fall back to the row
// store; row store failures are reported per table through *LoadError.
func (c *TableCache) Load(ctx context.Context, names []string) (model.Snapshot, error) {
	names = uniqueSorted(names)
	snapshot := make(model.Snapshot, len(names))
	var failed map[string]error

	for _, name := range names {
		rows, err := c.loadOne(ctx, name)
		if err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[name] = err
			continue
		}
		if c.projector != nil {
			rows = c.projector.Project(name, rows)
		}
		snapshot[name] = rows
	}

	if failed != nil {
		return snapshot, &LoadError{Failed: failed}
	}
	return snapshot, nil
}

func (c *TableCache) loadOne(ctx context.Context, name string) ([]model.Row, error) {
	if !repository.ValidIdentifier(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}

	cacheCtx, cancel := c.storeContext(ctx)
	rows, hit, err := c.cache.GetTable(cacheCtx, name)
	cancel()
	if err != nil {
		logger.Warn("table cache read failed, using row store", zap.String("table", name), zap.Error(err))
		c.observer.CacheError("get")
	}
	if hit {
		logger.Debug("table served from cache", zap.String("table", name))
		c.observer.CacheHit(name)
		return rows, nil
	}

	c.observer.CacheMiss(name)
	logger.Debug("loading table from row store", zap.String("table", name))
	rowCtx, cancel := context.WithTimeout(ctx, rowTimeout(c.cfg.RowTimeout))
	rows, err = c.rows.SelectAll(rowCtx, name)
	cancel()
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.Row{}
	}

	cacheCtx, cancel = c.storeContext(ctx)
	defer cancel()
	if err := c.cache.SetTable(cacheCtx, name, rows, c.cfg.TTL); err != nil {
		logger.Warn("table cache write failed", zap.String("table", name), zap.Error(err))
		c.observer.CacheError("set")
	}
	return rows, nil
}

func (c *TableCache) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.StoreTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.StoreTimeout)
	}
	return context.WithCancel(ctx)
}

func rowTimeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return defaultRowTimeout
}

func uniqueSorted(names []string) []string {
	out := slices.Clone(names)
	slices.Sort(out)
	return slices.Compact(out)
}

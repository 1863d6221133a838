package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pulseboard/internal/metrics"
	"pulseboard/internal/model"
	"pulseboard/pkg/logger"

	"go.uber.org/zap"
)

// TableLoader loads a set of tables into one snapshot.
type TableLoader interface {
	Load(ctx context.Context, names []string) (model.Snapshot, error)
}

// Dispatcher runs a batch of named computations over one shared snapshot.
type Dispatcher struct {
	registry *Registry
	tables   TableLoader
	observer metrics.DispatchObserver
}

func NewDispatcher(registry *Registry, tables TableLoader, observer metrics.DispatchObserver) *Dispatcher {
	if observer == nil {
		observer = metrics.Nop()
	}
	return &Dispatcher{
		registry: registry,
		tables:   tables,
		observer: observer,
	}
}

// RequiredTables is the union of the declared tables of every known request.
func (d *Dispatcher) RequiredTables(requests []model.RpcRequest) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range requests {
		c, ok := d.registry.Lookup(r.RpcName)
		if !ok {
			continue
		}
		for _, t := range c.Tables {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Dispatch never fails as a whole: every request gets exactly one outcome slot.
func (d *Dispatcher) Dispatch(ctx context.Context, requests []model.RpcRequest) model.WidgetResult {
	result := make(model.WidgetResult, len(requests))

	needed := d.RequiredTables(requests)
	snapshot := model.Snapshot{}
	var failed map[string]error
	if len(needed) > 0 {
		var err error
		snapshot, err = d.tables.Load(ctx, needed)
		if err != nil {
			failed = failedTables(needed, err)
			logger.Warn("some widget tables failed to load", zap.Error(err))
		}
		if snapshot == nil {
			snapshot = model.Snapshot{}
		}
	}

	for _, r := range requests {
		key := resultKey(result, r)
		result[key] = d.run(snapshot, failed, r)
	}
	return result
}

func (d *Dispatcher) run(snapshot model.Snapshot, failed map[string]error, r model.RpcRequest) model.Outcome {
	c, ok := d.registry.Lookup(r.RpcName)
	if !ok {
		d.observer.RPCCompleted("unknown", "not_defined", 0)
		return model.Outcome{Err: fmt.Sprintf("%s not defined", r.RpcName)}
	}
	for _, t := range c.Tables {
		if err, bad := failed[t]; bad {
			d.observer.RPCCompleted(c.Name, "table_unavailable", 0)
			return model.Outcome{Err: fmt.Sprintf("table %s unavailable: %v", t, err)}
		}
	}

	params := r.Params
	if params == nil {
		params = model.Params{}
	}

	start := time.Now()
	value, err := invoke(c, snapshot, params)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		logger.Warn("widget computation failed", zap.String("rpc", c.Name), zap.Error(err))
		d.observer.RPCCompleted(c.Name, "error", elapsed)
		return model.Outcome{Err: err.Error()}
	}
	d.observer.RPCCompleted(c.Name, "ok", elapsed)
	return model.Outcome{Value: value}
}

// invoke turns both returned errors and panics into a ComputationError.
func invoke(c Computation, snapshot model.Snapshot, params model.Params) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &ComputationError{Name: c.Name, Err: fmt.Errorf("%v", rec)}
		}
	}()
	value, err = c.Invoke(snapshot, params)
	if err != nil {
		err = &ComputationError{Name: c.Name, Err: err}
	}
	return value, err
}

func failedTables(needed []string, err error) map[string]error {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Failed
	}
	// not a per-table failure: every table is unusable
	failed := make(map[string]error, len(needed))
	for _, t := range needed {
		failed[t] = err
	}
	return failed
}

// resultKey picks the caller's id, else the rpc name, suffixing duplicates so each
// request keeps its own slot.
func resultKey(result model.WidgetResult, r model.RpcRequest) string {
	base := r.ID
	if base == "" {
		base = r.RpcName
	}
	if _, taken := result[base]; !taken {
		return base
	}
	for n := 2; ; n++ {
		k := base + "#" + strconv.Itoa(n)
		if _, taken := result[k]; !taken {
			return k
		}
	}
}

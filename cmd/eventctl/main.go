// Command eventctl emits one table change event the way an upstream database
// trigger would, either into the etcd event prefix or onto a Redis channel.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"pulseboard/internal/config"
	"pulseboard/internal/model"
	"pulseboard/internal/repository"
	"pulseboard/pkg/constraints"
	"pulseboard/pkg/logger"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

var (
	table     = flag.String("table", "", "changed table")
	eventType = flag.String("type", constraints.EventUpdate, "INSERT, UPDATE or DELETE")
	record    = flag.String("record", "", "new row as JSON")
	oldRecord = flag.String("old-record", "", "previous row as JSON")
	channel   = flag.String("channel", "", "publish on this Redis channel instead of etcd")
	timeout   = flag.Duration("timeout", 5*time.Second, "publish timeout")
)

func main() {
	flag.Parse()
	cfg := config.Load()
	logger.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	ev, err := buildEvent()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *channel != "" {
		err = publishRedis(ctx, cfg.Redis, *channel, ev)
	} else {
		err = publishEtcd(ctx, cfg, ev)
	}
	if err != nil {
		logger.Error("failed to publish change event", zap.String("table", ev.Table), zap.Error(err))
		os.Exit(1)
	}
}

func buildEvent() (model.ChangeEvent, error) {
	if !repository.ValidIdentifier(*table) {
		return model.ChangeEvent{}, fmt.Errorf("invalid table %q", *table)
	}
	ev := model.ChangeEvent{Table: *table, Type: strings.ToUpper(*eventType)}
	switch ev.Type {
	case constraints.EventInsert, constraints.EventUpdate, constraints.EventDelete:
	default:
		return model.ChangeEvent{}, fmt.Errorf("unknown event type %q", *eventType)
	}
	fields := []struct {
		src string
		dst *json.RawMessage
	}{
		{*record, &ev.Record},
		{*oldRecord, &ev.OldRecord},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		if !json.Valid([]byte(f.src)) {
			return model.ChangeEvent{}, fmt.Errorf("record is not valid JSON: %s", f.src)
		}
		*f.dst = json.RawMessage(f.src)
	}
	return ev, nil
}

func publishEtcd(ctx context.Context, cfg *config.Config, ev model.ChangeEvent) error {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Etcd.Endpoints,
		DialTimeout: cfg.Etcd.DialTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to etcd: %w", err)
	}
	defer cli.Close()

	key, rev, err := repository.NewEventRepository(cli).PublishEvent(ctx, cfg.Invalidation.EtcdPrefix, ev)
	if err != nil {
		return err
	}
	logger.Info("change event published to etcd",
		zap.String("key", key),
		zap.Int64("rev", rev),
		zap.String("table", ev.Table),
		zap.String("type", ev.Type))
	return nil
}

func publishRedis(ctx context.Context, cfg config.RedisConfig, ch string, ev model.ChangeEvent) error {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	defer rdb.Close()

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	receivers, err := rdb.Publish(ctx, ch, payload).Result()
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	logger.Info("change event published to redis",
		zap.String("channel", ch),
		zap.Int64("receivers", receivers),
		zap.String("table", ev.Table),
		zap.String("type", ev.Type))
	return nil
}

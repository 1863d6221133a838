package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pulseboard/client"
	v1 "pulseboard/pkg/api/v1"
	"pulseboard/pkg/logger"

	"go.uber.org/zap"
)

var (
	targetURL = flag.String("url", "http://localhost:8000", "pulseboard base URL")
	email     = flag.String("email", "loadtest@pulseboard.local", "login email")
	password  = flag.String("password", "", "login password")
	module    = flag.String("module", "orders", "dashboard module")
	rpcs      = flag.String("rpcs", "kpi_nb_commandes,kpi_taux_retards,kpi_otif", "comma separated widget names")
	totalVUs  = flag.Int("c", 50, "virtual users")
	rampUp    = flag.Duration("ramp", 10*time.Second, "ramp up duration")
	duration  = flag.Duration("d", time.Minute, "test duration after ramp up")
)

var (
	activeClients  int64
	batches        int64
	totalBatches   int64
	batchErrors    int64
	widgetFailures int64
	latencySum     int64 // milliseconds
	latencyCount   int64
)

func main() {
	flag.Parse()
	logger.InitLogger("dev")
	defer logger.Sync()

	calls := parseCalls(*rpcs)
	logger.Info("starting load test",
		zap.String("target", *targetURL),
		zap.Int("vus", *totalVUs),
		zap.Duration("ramp", *rampUp),
		zap.Int("rpcs", len(calls)))

	http.DefaultTransport.(*http.Transport).MaxIdleConnsPerHost = *totalVUs

	ctx, cancel := context.WithTimeout(context.Background(), *rampUp+*duration)
	defer cancel()

	go report(ctx)

	var wg sync.WaitGroup
	interval := *rampUp / time.Duration(*totalVUs)
	for i := 0; i < *totalVUs; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runClient(ctx, id, calls)
		}(i)
		time.Sleep(interval)
	}
	wg.Wait()

	fmt.Printf("done: batches=%d errors=%d widget_failures=%d\n",
		atomic.LoadInt64(&totalBatches), atomic.LoadInt64(&batchErrors), atomic.LoadInt64(&widgetFailures))
	if atomic.LoadInt64(&totalBatches) == 0 {
		os.Exit(1)
	}
}

func parseCalls(list string) []v1.RpcCall {
	var calls []v1.RpcCall
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			calls = append(calls, v1.RpcCall{RpcName: name})
		}
	}
	return calls
}

func report(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := atomic.SwapInt64(&batches, 0)
			latSum := atomic.SwapInt64(&latencySum, 0)
			latCnt := atomic.SwapInt64(&latencyCount, 0)
			avg := float64(0)
			if latCnt > 0 {
				avg = float64(latSum) / float64(latCnt)
			}
			fmt.Printf("[%s] active: %d | batches/s: %d | errors: %d | widget failures: %d | avg latency: %.2f ms\n",
				time.Now().Format("15:04:05"), atomic.LoadInt64(&activeClients), n,
				atomic.LoadInt64(&batchErrors), atomic.LoadInt64(&widgetFailures), avg)
		}
	}
}

func runClient(ctx context.Context, id int, calls []v1.RpcCall) {
	c, err := client.New(*targetURL, client.WithRetry(0, 0))
	if err != nil {
		logger.Error("client init failed", zap.Int("vu", id), zap.Error(err))
		return
	}
	if _, err := c.Login(ctx, *email, *password); err != nil {
		atomic.AddInt64(&batchErrors, 1)
		logger.Warn("login failed", zap.Int("vu", id), zap.Error(err))
		return
	}

	atomic.AddInt64(&activeClients, 1)
	defer atomic.AddInt64(&activeClients, -1)

	for ctx.Err() == nil {
		start := time.Now()
		result, err := c.Widgets(ctx, *module, calls...)
		if err != nil {
			if ctx.Err() == nil {
				atomic.AddInt64(&batchErrors, 1)
			}
			continue
		}
		atomic.AddInt64(&batches, 1)
		atomic.AddInt64(&totalBatches, 1)
		atomic.AddInt64(&latencySum, time.Since(start).Milliseconds())
		atomic.AddInt64(&latencyCount, 1)
		for _, outcome := range result {
			if outcome.Failed() {
				atomic.AddInt64(&widgetFailures, 1)
			}
		}
	}
}

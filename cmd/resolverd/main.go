// Command resolverd runs the iterative DNS resolver daemon. It takes no
// flags and reads no config file: every knob is an environment variable.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nslookup-labs/resolverd/internal/cache"
	"github.com/nslookup-labs/resolverd/internal/dispatcher"
	"github.com/nslookup-labs/resolverd/internal/resolver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("resolverd failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	listenAddr := os.Getenv("RESOLVERD_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = "127.0.0.1:10053"
	}

	recordCache := cache.New()
	recordCache.MergeMinTTL = os.Getenv("RESOLVERD_MERGE_MIN_TTL") == "true"
	stopJanitor := recordCache.StartJanitor(5 * time.Minute)
	defer stopJanitor()

	if redisAddr := os.Getenv("RESOLVERD_REDIS_ADDR"); redisAddr != "" {
		remote := cache.NewRedisRemote(redisAddr, os.Getenv("RESOLVERD_REDIS_PASSWORD"), 0)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := remote.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", redisAddr, err)
		}
		recordCache.SetRemote(remote)
		logger.Info("connected to redis remote cache", "addr", redisAddr)
	}

	res := &resolver.Resolver{
		Cache:    recordCache,
		Logger:   logger,
		Timeout:  getEnvDuration("RESOLVERD_QUERY_TIMEOUT", resolver.DefaultTimeout),
		MaxDepth: getEnvInt("RESOLVERD_MAX_RECURSION_DEPTH", resolver.DefaultMaxDepth),
	}

	if metricsAddr := os.Getenv("RESOLVERD_METRICS_ADDR"); metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{
			Addr:              metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics server starting", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	d := &dispatcher.Dispatcher{
		Resolver: res,
		Logger:   logger,
		Workers:  getEnvInt("RESOLVERD_WORKERS", 0),
	}

	logger.Info("resolverd starting", "addr", listenAddr)
	if err := d.Run(ctx, listenAddr); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

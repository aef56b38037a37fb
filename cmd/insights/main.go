package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/persona-insights/pkg/analytics"
	"github.com/platinummonkey/persona-insights/pkg/api"
	"github.com/platinummonkey/persona-insights/pkg/async"
	"github.com/platinummonkey/persona-insights/pkg/config"
	"github.com/platinummonkey/persona-insights/pkg/middleware"
	"github.com/platinummonkey/persona-insights/pkg/observability"
	"github.com/platinummonkey/persona-insights/pkg/storage/postgres"
)

const replicaCheckInterval = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", cfg.Observability.OTelServiceName)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	conns, err := postgres.NewConnectionManager(postgres.ConnectionConfigFrom(cfg.Storage), logger)
	if err != nil {
		return err
	}
	if err := postgres.Migrate(ctx, conns.Primary(), conns.Dialect()); err != nil {
		conns.Close()
		return err
	}
	conns.StartHealthCheckRoutine(ctx, replicaCheckInterval, metrics)
	store := postgres.NewSQLStore(conns)

	var (
		benchmarks analytics.BenchmarkStore = store
		redis      *postgres.RedisClient
	)
	if cfg.Storage.CacheEnabled {
		if cfg.Storage.RedisURL != "" {
			redis, err = postgres.NewRedisClient(cfg.Storage)
			if err != nil {
				// L1 keeps serving benchmarks without Redis.
				logger.WithError(err).Warn("Redis unavailable, benchmark cache running without L2")
				redis = nil
			}
		}
		benchmarks = postgres.NewBenchmarkCache(store, redis, cfg.Storage.L1CacheSize, cfg.Storage.CacheTTL, metrics, logger)
	}

	tracker := async.NewTracker()
	service := analytics.NewService(store,
		analytics.WithLogger(logger),
		analytics.WithMetrics(metrics),
		analytics.WithConfig(cfg.Analytics.ServiceConfig()),
		analytics.WithBenchmarkStore(benchmarks),
		analytics.WithDispatcher(tracker.Go),
	)

	var redisClient *goredis.Client
	if redis != nil {
		redisClient = redis.Client()
	}
	health := observability.NewHealthChecker(conns.Primary(), redisClient, cfg.Observability.OTelServiceVersion)

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithHealthChecker(health),
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
	}
	if cfg.Observability.MetricsEnabled {
		opts = append(opts, api.WithMetrics(metrics, registry))
	}
	if cfg.Server.RateLimitRequests > 0 {
		opts = append(opts, api.WithRateLimiter(newRateLimiter(ctx, cfg.Server, redisClient)))
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewServer(service, opts...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Hooks run in reverse: background refreshes drain before the stores close.
	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.Register("otel", otelProviders.Shutdown)
	shutdown.Register("database", func(context.Context) error { return conns.Close() })
	if redis != nil {
		shutdown.Register("redis", func(context.Context) error { return redis.Close() })
	}
	shutdown.Register("background tasks", tracker.Shutdown)

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":     server.Addr,
			"storage":  cfg.Storage.Type,
			"replicas": conns.ReplicaCount(),
			"cache":    cfg.Storage.CacheEnabled,
		}).Info("Starting persona insights server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	waitCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		if err := <-serverErr; err != nil {
			logger.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	if err := shutdown.WaitForShutdown(waitCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// newRateLimiter shares limits through Redis when it is available
func newRateLimiter(ctx context.Context, cfg config.ServerConfig, redisClient *goredis.Client) middleware.Limiter {
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitRequests,
		WindowDuration:    cfg.RateLimitWindow,
		BurstSize:         cfg.RateLimitBurst,
	}
	if redisClient != nil {
		return middleware.NewDistributedRateLimiter(redisClient, limits, "")
	}

	limiter := middleware.NewRateLimiter(limits)
	limiter.StartCleanup(ctx)
	return limiter
}

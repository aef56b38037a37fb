package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/persona-insights/pkg/analytics"
	"github.com/platinummonkey/persona-insights/pkg/config"
	"github.com/platinummonkey/persona-insights/pkg/observability"
	"github.com/platinummonkey/persona-insights/pkg/storage/postgres"
)

var (
	runOnce         = flag.Bool("run-once", false, "Run every job once and exit (for testing or backfilling)")
	aggregationDate = flag.String("date", "", "Date to aggregate (YYYY-MM-DD format). If empty, aggregates yesterday. Only used with --run-once")
	metricsAddr     = flag.String("metrics-addr", "", "Address to serve Prometheus metrics on (disabled when empty)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "insights-aggregator")
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Aggregator exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conns, err := postgres.NewConnectionManager(postgres.ConnectionConfigFrom(cfg.Storage), logger)
	if err != nil {
		return err
	}
	defer conns.Close()

	if err := postgres.Migrate(ctx, conns.Primary(), conns.Dialect()); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	j := newJobs(postgres.NewSQLStore(conns), cfg.Analytics, metrics, logger)

	// Run once mode (for testing or backfilling)
	if *runOnce {
		date := time.Now().UTC().AddDate(0, 0, -1)
		if *aggregationDate != "" {
			date, err = time.Parse("2006-01-02", *aggregationDate)
			if err != nil {
				return err
			}
		}

		logger.WithField("date", date.Format("2006-01-02")).Info("Running all jobs once")
		return j.runAll(ctx, date)
	}

	// Scheduled mode
	c := cron.New(cron.WithLocation(time.UTC))

	if _, err := c.AddFunc(cfg.Analytics.AggregationSchedule, func() {
		if err := j.aggregate(ctx, time.Now().UTC()); err != nil {
			logger.WithError(err).Error("Scheduled aggregation failed")
		}
	}); err != nil {
		return err
	}

	if _, err := c.AddFunc(cfg.Analytics.BenchmarkSchedule, func() {
		if err := j.benchmarks(ctx); err != nil {
			logger.WithError(err).Error("Scheduled benchmark generation failed")
		}
	}); err != nil {
		return err
	}

	if _, err := c.AddFunc(cfg.Analytics.AlertSchedule, func() {
		if _, err := j.alerts(ctx); err != nil {
			logger.WithError(err).Error("Scheduled revenue alert check failed")
		}
	}); err != nil {
		return err
	}

	var server *http.Server
	if *metricsAddr != "" {
		server = &http.Server{
			Addr:              *metricsAddr,
			Handler:           observability.MetricsHandler(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	c.Start()
	logger.WithFields(map[string]interface{}{
		"aggregation_schedule": cfg.Analytics.AggregationSchedule,
		"benchmark_schedule":   cfg.Analytics.BenchmarkSchedule,
		"alert_schedule":       cfg.Analytics.AlertSchedule,
		"categories":           cfg.Analytics.BenchmarkCategories,
	}).Info("Persona insights aggregator started")

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.Register("cron", func(ctx context.Context) error {
		select {
		case <-c.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return shutdown.WaitForShutdown(ctx)
}

func newJobs(store analytics.Store, cfg config.AnalyticsConfig, metrics *observability.Metrics, logger *observability.Logger) *jobs {
	aggregator := analytics.NewAggregator(store, logger)
	aggregator.SetWorkers(cfg.AggregationWorkers)

	return &jobs{
		aggregator: aggregator,
		generator:  analytics.NewBenchmarkGenerator(store, store),
		alerter:    analytics.NewRevenueAlerter(store, store, cfg.AlertThresholds()),
		categories: cfg.BenchmarkCategories,
		metrics:    metrics,
		logger:     logger,
	}
}

// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes and graceful shutdown.
//
// Logging is JSON through logrus:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("creator_id", id).Info("Creator analytics updated")
//
// Request-scoped loggers travel in the context; FromContext attaches the
// request id and the active trace and span ids.
//
// Metrics are registered on a caller-owned registry:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// The Record* helpers accept a nil *Metrics.
package observability

// Package config loads application configuration from defaults, an optional
// YAML file and environment variables.
//
// # Precedence
//
// Built-in defaults are applied first. If INSIGHTS_CONFIG_FILE names a YAML
// file its keys replace the defaults; keys absent from the file are left
// alone. INSIGHTS_* environment variables are applied last.
//
// # Configuration Structure
//
// Server settings:
//
//	INSIGHTS_HOST="0.0.0.0"
//	INSIGHTS_PORT="8080"
//	INSIGHTS_READ_TIMEOUT="15s"
//	INSIGHTS_CORS_ORIGINS="https://app.example.com"
//
// Storage settings:
//
//	INSIGHTS_STORAGE_TYPE="postgres"  # postgres or sqlite
//	INSIGHTS_POSTGRES_URL="postgres://localhost/insights"
//	INSIGHTS_POSTGRES_REPLICA_URLS="postgres://replica1/insights,postgres://replica2/insights"
//	INSIGHTS_SQLITE_PATH="insights.db"
//
// Benchmark cache settings:
//
//	INSIGHTS_CACHE_ENABLED="true"
//	INSIGHTS_CACHE_TTL="1h"
//	INSIGHTS_L1_CACHE_SIZE="1024"
//	INSIGHTS_REDIS_URL="redis://localhost:6379"
//
// Analytics settings:
//
//	INSIGHTS_HISTORY_PERIODS="24"
//	INSIGHTS_DEFAULT_FORECAST_MONTHS="6"
//	INSIGHTS_MAX_FORECAST_MONTHS="24"
//	INSIGHTS_BENCHMARK_CATEGORIES="fitness,cooking,music"
//	INSIGHTS_ALERT_WARNING_DROP="0.2"
//	INSIGHTS_ALERT_CRITICAL_DROP="0.5"
//	INSIGHTS_AGGREGATION_SCHEDULE="0 1 * * *"
//
// Observability settings:
//
//	INSIGHTS_LOG_LEVEL="info"  # debug, info, warn, error
//	INSIGHTS_METRICS_ENABLED="true"
//	INSIGHTS_OTEL_ENABLED="true"
//	INSIGHTS_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	svc := analytics.NewService(store, analytics.WithConfig(cfg.Analytics.ServiceConfig()))
package config

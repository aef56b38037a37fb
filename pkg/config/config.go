package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/persona-insights/pkg/analytics"
	"github.com/platinummonkey/persona-insights/pkg/observability"
	"github.com/platinummonkey/persona-insights/pkg/storage"
	"github.com/platinummonkey/persona-insights/pkg/storage/postgres"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML file
const ConfigFileEnv = "INSIGHTS_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Analytics     AnalyticsConfig     `yaml:"analytics"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	// per client IP; zero disables rate limiting
	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
	RateLimitBurst    int           `yaml:"rate_limit_burst"`
}

// AnalyticsConfig tunes forecasting, refreshes and the batch jobs
type AnalyticsConfig struct {
	HistoryPeriods        int           `yaml:"history_periods"`
	DefaultForecastMonths int           `yaml:"default_forecast_months"`
	MaxForecastMonths     int           `yaml:"max_forecast_months"`
	RefreshTimeout        time.Duration `yaml:"refresh_timeout"`
	AggregationWorkers    int           `yaml:"aggregation_workers"`

	BenchmarkCategories []string `yaml:"benchmark_categories"`

	AlertWarningDrop  float64 `yaml:"alert_warning_drop"`
	AlertCriticalDrop float64 `yaml:"alert_critical_drop"`

	// cron specs used by the aggregator binary
	AggregationSchedule string `yaml:"aggregation_schedule"`
	BenchmarkSchedule   string `yaml:"benchmark_schedule"`
	AlertSchedule       string `yaml:"alert_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevelName string                 `yaml:"log_level"`
	LogLevel     observability.LogLevel `yaml:"-"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the built-in configuration
func Default() *Config {
	svc := analytics.DefaultConfig()
	alerts := analytics.DefaultAlertThresholds()

	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,

			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
			RateLimitBurst:    50,
		},
		Storage: storage.DefaultConfig(),
		Analytics: AnalyticsConfig{
			HistoryPeriods:        svc.HistoryPeriods,
			DefaultForecastMonths: svc.DefaultForecastMonths,
			MaxForecastMonths:     svc.MaxForecastMonths,
			RefreshTimeout:        svc.RefreshTimeout,
			AggregationWorkers:    4,
			BenchmarkCategories:   []string{analytics.DefaultCategory},
			AlertWarningDrop:      alerts.Warning,
			AlertCriticalDrop:     alerts.Critical,
			AggregationSchedule:   "0 1 * * *",
			BenchmarkSchedule:     "0 2 * * *",
			AlertSchedule:         "0 3 * * *",
		},
		Observability: ObservabilityConfig{
			LogLevelName:       "info",
			LogLevel:           observability.InfoLevel,
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "persona-insights",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file named
// by INSIGHTS_CONFIG_FILE if set, then INSIGHTS_* environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := getEnv(ConfigFileEnv, ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.Observability.LogLevel = parseLogLevel(cfg.Observability.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile overlays the YAML file onto cfg. Keys absent from the file keep
// their current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("INSIGHTS_HOST", s.Host)
	s.Port = getEnv("INSIGHTS_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("INSIGHTS_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("INSIGHTS_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("INSIGHTS_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("INSIGHTS_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.CORSOrigins = getEnvList("INSIGHTS_CORS_ORIGINS", s.CORSOrigins)
	s.RateLimitRequests = getEnvInt("INSIGHTS_RATE_LIMIT_REQUESTS", s.RateLimitRequests)
	s.RateLimitWindow = getEnvDuration("INSIGHTS_RATE_LIMIT_WINDOW", s.RateLimitWindow)
	s.RateLimitBurst = getEnvInt("INSIGHTS_RATE_LIMIT_BURST", s.RateLimitBurst)

	st := &c.Storage
	st.Type = getEnv("INSIGHTS_STORAGE_TYPE", st.Type)
	st.PostgresURL = getEnv("INSIGHTS_POSTGRES_URL", st.PostgresURL)
	if replicas := getEnv("INSIGHTS_POSTGRES_REPLICA_URLS", ""); replicas != "" {
		st.PostgresReplicaURLs = postgres.ParseReplicaURLs(replicas)
	}
	st.PostgresMaxConns = getEnvInt("INSIGHTS_POSTGRES_MAX_CONNS", st.PostgresMaxConns)
	st.PostgresMinConns = getEnvInt("INSIGHTS_POSTGRES_MIN_CONNS", st.PostgresMinConns)
	st.PostgresTimeout = getEnvDuration("INSIGHTS_POSTGRES_TIMEOUT", st.PostgresTimeout)
	st.SQLitePath = getEnv("INSIGHTS_SQLITE_PATH", st.SQLitePath)
	st.RedisURL = getEnv("INSIGHTS_REDIS_URL", st.RedisURL)
	st.RedisPassword = getEnv("INSIGHTS_REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = getEnvInt("INSIGHTS_REDIS_DB", st.RedisDB)
	st.RedisMaxRetries = getEnvInt("INSIGHTS_REDIS_MAX_RETRIES", st.RedisMaxRetries)
	st.RedisPoolSize = getEnvInt("INSIGHTS_REDIS_POOL_SIZE", st.RedisPoolSize)
	st.CacheEnabled = getEnvBool("INSIGHTS_CACHE_ENABLED", st.CacheEnabled)
	st.CacheTTL = getEnvDuration("INSIGHTS_CACHE_TTL", st.CacheTTL)
	st.L1CacheSize = getEnvInt("INSIGHTS_L1_CACHE_SIZE", st.L1CacheSize)

	a := &c.Analytics
	a.HistoryPeriods = getEnvInt("INSIGHTS_HISTORY_PERIODS", a.HistoryPeriods)
	a.DefaultForecastMonths = getEnvInt("INSIGHTS_DEFAULT_FORECAST_MONTHS", a.DefaultForecastMonths)
	a.MaxForecastMonths = getEnvInt("INSIGHTS_MAX_FORECAST_MONTHS", a.MaxForecastMonths)
	a.RefreshTimeout = getEnvDuration("INSIGHTS_REFRESH_TIMEOUT", a.RefreshTimeout)
	a.AggregationWorkers = getEnvInt("INSIGHTS_AGGREGATION_WORKERS", a.AggregationWorkers)
	a.BenchmarkCategories = getEnvList("INSIGHTS_BENCHMARK_CATEGORIES", a.BenchmarkCategories)
	a.AlertWarningDrop = getEnvFloat("INSIGHTS_ALERT_WARNING_DROP", a.AlertWarningDrop)
	a.AlertCriticalDrop = getEnvFloat("INSIGHTS_ALERT_CRITICAL_DROP", a.AlertCriticalDrop)
	a.AggregationSchedule = getEnv("INSIGHTS_AGGREGATION_SCHEDULE", a.AggregationSchedule)
	a.BenchmarkSchedule = getEnv("INSIGHTS_BENCHMARK_SCHEDULE", a.BenchmarkSchedule)
	a.AlertSchedule = getEnv("INSIGHTS_ALERT_SCHEDULE", a.AlertSchedule)

	o := &c.Observability
	o.LogLevelName = getEnv("INSIGHTS_LOG_LEVEL", o.LogLevelName)
	o.MetricsEnabled = getEnvBool("INSIGHTS_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("INSIGHTS_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("INSIGHTS_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("INSIGHTS_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("INSIGHTS_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("INSIGHTS_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("INSIGHTS_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive when rate limiting is enabled")
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	a := c.Analytics
	if a.HistoryPeriods < 2 {
		return fmt.Errorf("history periods must be at least 2")
	}
	if a.DefaultForecastMonths < 1 || a.MaxForecastMonths < a.DefaultForecastMonths {
		return fmt.Errorf("forecast months must satisfy 1 <= default (%d) <= max (%d)",
			a.DefaultForecastMonths, a.MaxForecastMonths)
	}
	if a.RefreshTimeout <= 0 {
		return fmt.Errorf("refresh timeout must be positive")
	}
	if a.AggregationWorkers < 1 {
		return fmt.Errorf("aggregation workers must be at least 1")
	}
	if len(a.BenchmarkCategories) == 0 {
		return fmt.Errorf("at least one benchmark category is required")
	}
	if a.AlertWarningDrop <= 0 || a.AlertCriticalDrop < a.AlertWarningDrop || a.AlertCriticalDrop > 1 {
		return fmt.Errorf("alert thresholds must satisfy 0 < warning (%.2f) <= critical (%.2f) <= 1",
			a.AlertWarningDrop, a.AlertCriticalDrop)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	return nil
}

// ServiceConfig returns the query layer settings
func (a AnalyticsConfig) ServiceConfig() analytics.Config {
	return analytics.Config{
		HistoryPeriods:        a.HistoryPeriods,
		DefaultForecastMonths: a.DefaultForecastMonths,
		MaxForecastMonths:     a.MaxForecastMonths,
		RefreshTimeout:        a.RefreshTimeout,
	}
}

// AlertThresholds returns the revenue alert thresholds
func (a AnalyticsConfig) AlertThresholds() analytics.AlertThresholds {
	return analytics.AlertThresholds{Warning: a.AlertWarningDrop, Critical: a.AlertCriticalDrop}
}

// OTel returns the tracing and metrics exporter settings
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
